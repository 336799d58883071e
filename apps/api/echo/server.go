package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/dashboard"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
	"github.com/ministerio/escalas/services/tokenstore"
)

type (
	ServerDeps struct {
		Conf         *core.Config
		Logger       core.Logger
		UserSvc      *user.Service
		SongSvc      *song.Service
		ScheduleSvc  *schedule.Service
		DashboardSvc *dashboard.Service
		TokenStore   tokenstore.Store
		Validate     *validator.Validate
		Translator   ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc, deps.TokenStore),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(s.auth.jwtConfig),
		s.auth.revocationMiddleware,
		s.auth.contextUserMiddleware,
	}
	limiter := newIPRateLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateBurst, conf.Server.TrustProxyHeaders)

	registerUserAPI(v1, authed, limiter.middleware, s.auth, s.deps)
	registerMemberAPI(v1, authed, s.deps)
	registerSongAPI(v1, authed, s.deps)
	registerScheduleAPI(v1, authed, s.deps)
	registerDashboardAPI(v1, authed, s.deps)
}

// Start listens on the configured host until the server is shut down.
func (s *Server) Start() error {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "starting server")
	}
	return nil
}

// ShutdownSignal is fed by SIGINT, SIGTERM and shutdown errors caught by the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
