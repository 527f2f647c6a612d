package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// addUser creates an active user.User, typically the first admin.
func (cli *commandLine) addUser(ctx context.Context, name, email string, role core.Role, pwd string) error {
	usr, err := cli.usrSvc.CreateUnchecked(ctx, user.NewUser{
		Name:            name,
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %s (%s)\n", usr.Role, usr.Email, usr.ID)
	return nil
}
