package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darasa/backend/apps/api/echo"
	"github.com/darasa/backend/core"
	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/core/class"
	"github.com/darasa/backend/core/quiz"
	"github.com/darasa/backend/services/email"
	"github.com/darasa/backend/services/logger"
	"github.com/darasa/backend/storage/database"
	"github.com/darasa/backend/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	wd, err := os.Getwd()
	errAndDie(std, err)
	conf, err := core.NewConfig(wd)
	errAndDie(std, err)

	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(std, err)
	defer func() { _ = db.Close() }()
	errAndDie(std, db.Ping())

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	acctSvc := account.NewService(sqlxrepos.NewAccountRepository(db), mailSvc, conf)
	classSvc := class.NewService(sqlxrepos.NewClassRepository(db), acctSvc, mailSvc, conf)
	quizSvc := quiz.NewService(sqlxrepos.NewQuizRepository(db), classSvc, acctSvc)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address:    conf.Server.Address(),
			Logger:     logger,
			AccountSvc: acctSvc,
			ClassSvc:   classSvc,
			QuizSvc:    quizSvc,
			Shutdown:   shutdown,
		},
	)
	go app.Start()

	sig := <-shutdown
	logger.Info("shutting down: " + sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = app.Stop(ctx); err != nil {
		logger.Error("graceful shutdown failed", err)
	}
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
