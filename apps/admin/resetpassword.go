package main

import (
	"github.com/darasa/backend/core/account"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	acct, err := cli.acctSvc.GetByUsernameOrEmail(uname)
	if err != nil {
		return err
	}
	ua := account.UpdateAccount{
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err = ua.Validate(acct, cli.acctSvc); err != nil {
		return err
	}
	_, err = cli.acctSvc.Update(acct.ID, ua)
	return err
}
