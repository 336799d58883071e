package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	_ "time/tzdata"    // the configured timezone must load on bare images

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/ministerio/escalas/apps/api/echo"
	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/dashboard"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
	emailsvc "github.com/ministerio/escalas/services/email"
	logsvc "github.com/ministerio/escalas/services/logger"
	"github.com/ministerio/escalas/services/tokenstore"
	"github.com/ministerio/escalas/storage/database"
	inmemdb "github.com/ministerio/escalas/storage/database/inmem"
	"github.com/ministerio/escalas/storage/database/sqlxrepos"
)

type repositories struct {
	users     user.Repository
	songs     song.Repository
	schedules schedule.Repository
	close     func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	defer logger.Sync()

	// set up DB
	repos, err := setUpRepos(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err := repos.close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var tokens tokenstore.Store
	if conf.Redis.Addr != "" {
		store := tokenstore.NewRedisStore(tokenstore.NewRedisClient(conf))
		defer func() { _ = store.Close() }()
		tokens = store
	} else {
		tokens = tokenstore.NewMemoryStore()
	}

	usrSvc := user.NewService(repos.users, mailSvc, conf)
	songSvc := song.NewService(repos.songs)
	schedSvc := schedule.NewService(repos.schedules, repos.users, repos.songs, mailSvc, conf)
	dashSvc := dashboard.NewService(schedSvc, usrSvc, songSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	song.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		SongSvc:      songSvc,
		ScheduleSvc:  schedSvc,
		DashboardSvc: dashSvc,
		TokenStore:   tokens,
		Validate:     validate,
		Translator:   translator,
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	debugSrv := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}

	// =========================================================================
	// Start API Service & wait for shutdown

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
		return nil
	})
	g.Go(server.Start)
	g.Go(func() error {
		select {
		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		case <-gctx.Done():
			logger.Warn("server stopped unexpectedly, shutting down")
		}

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		_ = debugSrv.Shutdown(ctx)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}

		// deliver the emails still queued
		if w, ok := mailSvc.(interface{ Wait() }); ok {
			w.Wait()
		}
		return nil
	})

	if err = g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("server error: %v", err), err)
	}
}

func setUpRepos(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		return repositories{
			users:     inmemdb.NewUserRepository(db),
			songs:     inmemdb.NewSongRepository(db),
			schedules: inmemdb.NewScheduleRepository(db),
			close:     func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		users:     sqlxrepos.NewUserRepository(db),
		songs:     sqlxrepos.NewSongRepository(db),
		schedules: sqlxrepos.NewScheduleRepository(db),
		close:     db.Close,
	}, nil
}
