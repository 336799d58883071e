package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
)

func (cli *commandLine) setRoleCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "setrole",
		Short: "Replace a user's role (" + strings.Join(user.AllRoles, "|") + ")",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if core.CleanString(email) == "" || core.CleanString(role) == "" {
				_ = cmd.Usage()
				return errHelp
			}
			usr, err := cli.setRole(email, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s is now %s\n", usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&role, "role", "", "The new role")
	return cmd
}

func (cli *commandLine) setRole(email, role string) (user.User, error) {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.SetRole(ctx, usr, core.CleanString(role, true /* lower */))
}
