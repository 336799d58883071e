package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB // nil with the memory engine
	usrSvc   *user.Service
	songSvc  *song.Service
	validate *validator.Validate
	in       int // fd the passwords are read from
	out      io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Escalas administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.setRoleCmd(),
		cli.importSongsCmd(),
	)
	return root
}

// run executes the command line args, program name included.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

// promptPassword asks for a password without echoing it. An empty answer prints the usage.
func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(cli.in)
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func newCommandLine(db *sqlx.DB, usrSvc *user.Service, songSvc *song.Service, validate *validator.Validate) *commandLine {
	return &commandLine{
		db:       db,
		usrSvc:   usrSvc,
		songSvc:  songSvc,
		validate: validate,
		in:       int(os.Stdin.Fd()),
		out:      os.Stdout,
	}
}
