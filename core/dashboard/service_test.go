package dashboard_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministerio/escalas/core/dashboard"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
	emailsvc "github.com/ministerio/escalas/services/email"
	inmemdb "github.com/ministerio/escalas/storage/database/inmem"
	"github.com/ministerio/escalas/tests/testutil"
)

type failingCounter struct{}

func (failingCounter) Count(context.Context) (int, error) {
	return 0, errors.New("boom")
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	songRepo := inmemdb.NewSongRepository(db)
	schedRepo := inmemdb.NewScheduleRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	songSvc := song.NewService(songRepo)
	schedSvc := schedule.NewService(schedRepo, usrRepo, songRepo, mailSvc, conf)
	svc := dashboard.NewService(schedSvc, usrSvc, songSvc)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@example.com", "", user.RoleAdmin, true)
	ana := testutil.CreateUser(t, usrRepo, "Ana", "ana@example.com", "", "", true)

	t.Run("nothing scheduled", func(t *testing.T) {
		d, err := svc.Get(ctx, ana)
		require.NoError(t, err)
		assert.Empty(t, d.Upcoming)
		assert.Nil(t, d.Next)
		assert.NotNil(t, d.NextSongs)
		assert.Empty(t, d.NextSongs)
		assert.Nil(t, d.Stats)
	})

	today := schedSvc.Today()
	past := testutil.CreateSchedule(t, schedRepo, today.AddDays(-7), "Past")
	next := testutil.CreateSchedule(t, schedRepo, today.AddDays(2), "Next")
	later := testutil.CreateSchedule(t, schedRepo, today.AddDays(9), "Later")
	testutil.Assign(t, schedRepo, past, ana, "Keys")
	testutil.Assign(t, schedRepo, later, ana, "Keys")
	testutil.Assign(t, schedRepo, next, ana, "Bass")

	oceanos := testutil.CreateSong(t, songRepo, "Oceanos", "Hillsong")
	_, err := schedSvc.AddSong(ctx, next, schedule.NewSetlistEntry{SongID: oceanos.ID})
	require.NoError(t, err)

	t.Run("member", func(t *testing.T) {
		d, err := svc.Get(ctx, ana)
		require.NoError(t, err)
		require.Len(t, d.Upcoming, 2)
		require.NotNil(t, d.Next)
		assert.Equal(t, next.ID, d.Next.Schedule.ID)
		assert.Equal(t, "Bass", d.Next.Function)
		require.Len(t, d.NextSongs, 1)
		assert.Equal(t, oceanos.ID, d.NextSongs[0].Song.ID)
		assert.Nil(t, d.Stats)
	})

	t.Run("admin", func(t *testing.T) {
		d, err := svc.Get(ctx, admin)
		require.NoError(t, err)
		assert.Empty(t, d.Upcoming)
		require.NotNil(t, d.Stats)
		assert.Equal(t, dashboard.Stats{Members: 2, Songs: 1, UpcomingSchedules: 2}, *d.Stats)
	})

	t.Run("failing stats", func(t *testing.T) {
		broken := dashboard.NewService(schedSvc, failingCounter{}, songSvc)
		_, err := broken.Get(ctx, admin)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "counting members")

		d, err := broken.Get(ctx, ana)
		require.NoError(t, err)
		assert.Len(t, d.Upcoming, 2)
	})
}
