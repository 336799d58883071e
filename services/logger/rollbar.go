package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
)

// RollbarLogger reports to Rollbar and writes the same entries locally through zap.
type RollbarLogger struct {
	zl *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZapLogger builds the local logger: human friendly in debug, JSON otherwise.
func NewZapLogger(conf *core.Config) (*zap.Logger, error) {
	if conf.TestMode {
		return zap.NewNop(), nil
	}
	if conf.Debug {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.InitialFields = map[string]interface{}{"app": conf.AppName, "env": conf.Env, "build": conf.Build}
	return zc.Build()
}

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")
	return &RollbarLogger{zl: zl.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes both Rollbar's queue and zap's buffers.
func (l *RollbarLogger) Sync() {
	rollbar.Wait()
	_ = l.zl.Sync()
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, fields []interface{}) {
	var usrSet bool
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			// only set one User
			if !usrSet {
				rollbar.SetPerson(a.ID, a.Name, a.Email)
				fields = append(fields, "user_id", a.ID)
				usrSet = true
			}
		case error:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			rbArgs = append(rbArgs, a)
			for k, v := range a {
				fields = append(fields, k, v)
			}
		default:
			rbArgs = append(rbArgs, a)
			fields = append(fields, "extra", a)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.zl.Debugw(msg, fields...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.zl.Infow(msg, fields...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.zl.Warnw(msg, fields...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.zl.Errorw(msg, fields...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.zl.Fatalw(msg, fields...)
}
