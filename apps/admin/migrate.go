package main

import (
	"github.com/pressly/goose/v3"

	appfs "github.com/darasa/backend/fs"
)

func (cli *commandLine) migrate(args []string) error {
	goose.SetBaseFS(appfs.FS)

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "up":
		return goose.Up(cli.db, "migrations")
	case "down":
		return goose.Down(cli.db, "migrations")
	case "status":
		return goose.Status(cli.db, "migrations")
	case "version":
		return goose.Version(cli.db, "migrations")
	default:
		return goose.Run(command, cli.db, "migrations", args[1:]...)
	}
}
