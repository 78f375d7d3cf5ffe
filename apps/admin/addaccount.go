package main

import (
	"github.com/darasa/backend/core"
	"github.com/darasa/backend/core/account"
)

// addAccount updates or creates an account.Account.
func (cli *commandLine) addAccount(uname, email, pwd string, isAdmin bool) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	acct, err := cli.acctSvc.GetByUsernameOrEmail(lookup)
	if err != nil {
		if err != account.ErrNotFound {
			return err
		}
		na := account.NewAccount{
			Name:            uname,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
		}
		if isAdmin {
			na.Roles = account.AllRoles
		}
		_, err = cli.acctSvc.Create(na)
		return err
	}

	ua := account.UpdateAccount{
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if isAdmin {
		ua.Roles = account.AllRoles
	}
	active := true
	ua.IsActive = &active
	if err = ua.Validate(acct, cli.acctSvc); err != nil {
		return err
	}
	_, err = cli.acctSvc.Update(acct.ID, ua)
	return err
}
