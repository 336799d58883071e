package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ministerio/escalas/core"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if core.CleanString(email) == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			if err = cli.resetPassword(email, pwd); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, "password updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	return cmd
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrSvc.Save(ctx, usr)
	return err
}
