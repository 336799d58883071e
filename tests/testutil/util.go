// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
)

// NewConfig loads the TEST configuration with rate limiting disabled.
func NewConfig() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.AllowSignup = true
	conf.Server.DisableReqLogs = true
	conf.Server.AuthRateLimit = 0
	return conf
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	song.InitValidators(validate, translator)
	return validate, translator
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleMember
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd), "SetPassword()")
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "CreateUser()")
	return usr
}

// AddFunctions gives usr the named team functions and returns the refreshed user.
func AddFunctions(t *testing.T, repo user.Repository, usr user.User, names ...string) user.User {
	t.Helper()

	ctx := context.Background()
	for _, name := range names {
		_, err := repo.CreateFunction(ctx, user.Function{UserID: usr.ID, Name: name, CreatedAt: time.Now().UTC()})
		require.NoError(t, err, "CreateFunction()")
	}
	usr, err := repo.GetUserByID(ctx, usr.ID)
	require.NoError(t, err, "GetUserByID()")
	return usr
}

func CreateSong(t *testing.T, repo song.Repository, title, artist string, createdAt ...time.Time) song.Song {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s := song.Song{Title: title, CreatedAt: tstamp, UpdatedAt: tstamp}
	if artist != "" {
		s.Artist.SetValid(artist)
	}
	s, err := repo.CreateSong(context.Background(), s)
	require.NoError(t, err, "CreateSong()")
	return s
}

func CreateSchedule(t *testing.T, repo schedule.Repository, date civil.Date, title string, createdBy ...user.User) schedule.Schedule {
	t.Helper()

	now := time.Now().UTC()
	s := schedule.Schedule{Date: date, Title: title, CreatedAt: now, UpdatedAt: now}
	if len(createdBy) > 0 {
		s.CreatedBy.SetValid(createdBy[0].ID)
	}
	s, err := repo.CreateSchedule(context.Background(), s)
	require.NoError(t, err, "CreateSchedule()")
	return s
}

func Assign(t *testing.T, repo schedule.Repository, s schedule.Schedule, usr user.User, function string) schedule.Assignment {
	t.Helper()

	a, err := repo.CreateAssignment(context.Background(), schedule.Assignment{
		ScheduleID: s.ID,
		UserID:     usr.ID,
		UserName:   usr.Name,
		Function:   function,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err, "CreateAssignment()")
	return a
}
