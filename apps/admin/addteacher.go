package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// addTeacher updates or creates an active teacher account.
func (cli *commandLine) addTeacher(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if usr, err = cli.usrRepo.GetUserByUsernameOrEmail(ctx, email); err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return err
			}
			usr = user.User{CreatedAt: core.NowFunc().UTC()}
		}
	}

	usr.Name = name
	usr.Username = uname
	usr.Email = email
	usr.Roles = user.TeacherRoles
	if isAdmin {
		usr.Roles = append(user.AdminRoles, user.RoleTeacher)
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc().UTC()

	active := true
	if usr.ID == "" {
		usr.IsActive = &active
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &active)
	return err
}
