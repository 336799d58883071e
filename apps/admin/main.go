package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
	emailsvc "github.com/ministerio/escalas/services/email"
	logsvc "github.com/ministerio/escalas/services/logger"
	"github.com/ministerio/escalas/storage/database"
	inmemdb "github.com/ministerio/escalas/storage/database/inmem"
	"github.com/ministerio/escalas/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)

	// set up DB & repos
	var (
		db       *sqlx.DB
		usrRepo  user.Repository
		songRepo song.Repository
	)
	if conf.Database.Engine == "memory" {
		mem := inmemdb.Open()
		usrRepo = inmemdb.NewUserRepository(mem)
		songRepo = inmemdb.NewSongRepository(mem)
	} else {
		if db, err = database.Open(conf); err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		usrRepo = sqlxrepos.NewUserRepository(db)
		songRepo = sqlxrepos.NewSongRepository(db)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	song.InitValidators(validate, translator)

	// the CLI never sends emails
	mailSvc := emailsvc.NewConsoleService(conf, logger)

	cli := newCommandLine(db, user.NewService(usrRepo, mailSvc, conf), song.NewService(songRepo), validate)
	err = cli.run(os.Args)

	if db != nil {
		_ = db.Close()
	}
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
