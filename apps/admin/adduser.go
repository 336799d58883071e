package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		email, name string
		isAdmin     bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Update or create an active user. The password is prompted next",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if core.CleanString(email) == "" || core.CleanString(name) == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(name, email, pwd, isAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "saved %s <%s> as %s\n", usr.Name, usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&name, "name", "", "The user's name")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant the admin role")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) (user.User, error) {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{
			Email: email,
			Role:  user.RoleMember,
		}
	}
	usr.Name = name
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.IsActive = true
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.Save(ctx, usr)
}
