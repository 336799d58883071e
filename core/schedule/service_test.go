package schedule_test

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
	emailsvc "github.com/ministerio/escalas/services/email"
	inmemdb "github.com/ministerio/escalas/storage/database/inmem"
	"github.com/ministerio/escalas/tests/testutil"
)

type fixture struct {
	svc       *schedule.Service
	mailSvc   *emailsvc.ConsoleServiceMock
	usrRepo   user.Repository
	songRepo  song.Repository
	schedRepo schedule.Repository
}

func newFixture() fixture {
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	f := fixture{
		mailSvc:   emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{}),
		usrRepo:   inmemdb.NewUserRepository(db),
		songRepo:  inmemdb.NewSongRepository(db),
		schedRepo: inmemdb.NewScheduleRepository(db),
	}
	f.svc = schedule.NewService(f.schedRepo, f.usrRepo, f.songRepo, f.mailSvc, conf)
	return f
}

func entryIDs(entries []schedule.SetlistEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError; got %T", err)
	require.NotEmpty(t, vErr.Fields)
	return vErr.Fields[0].Field
}

func TestStatusOf(t *testing.T) {
	today := civil.Date{Year: 2024, Month: 3, Day: 10}

	assert.Equal(t, schedule.StatusToday, schedule.StatusOf(today, today))
	assert.Equal(t, schedule.StatusPast, schedule.StatusOf(today.AddDays(-1), today))
	assert.Equal(t, schedule.StatusUpcoming, schedule.StatusOf(today.AddDays(1), today))
	assert.True(t, schedule.StatusPast.IsPast())
	assert.False(t, schedule.StatusToday.IsPast())
}

func TestQueryFilter_Contains(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 3, Day: 10}

	assert.True(t, schedule.QueryFilter{}.Contains(d))
	assert.True(t, schedule.QueryFilter{From: d, To: d}.Contains(d))
	assert.False(t, schedule.QueryFilter{From: d.AddDays(1)}.Contains(d))
	assert.False(t, schedule.QueryFilter{To: d.AddDays(-1)}.Contains(d))
}

func TestService_AddMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	today := f.svc.Today()
	ana := testutil.CreateUser(t, f.usrRepo, "Ana Souza", "ana@example.com", "", "", true)
	upcoming := testutil.CreateSchedule(t, f.schedRepo, today.AddDays(3), "Culto de Domingo")
	past := testutil.CreateSchedule(t, f.schedRepo, today.AddDays(-3), "Culto Passado")

	a, err := f.svc.AddMember(ctx, upcoming, schedule.NewAssignment{UserID: ana.ID, Function: "Keys", Note: "chegar cedo"})
	require.NoError(t, err)
	assert.Equal(t, ana.Name, a.UserName)
	assert.Equal(t, "Keys", a.Function)
	assert.Equal(t, "chegar cedo", a.Note.String)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Hello Ana,")
	assert.Contains(t, sent[0].TextContent, `as Keys for "Culto de Domingo"`)
	assert.Contains(t, sent[0].TextContent, "Note: chegar cedo")
	assert.Contains(t, sent[0].TextContent, "/schedules/"+upcoming.ID)

	t.Run("same function twice", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, upcoming, schedule.NewAssignment{UserID: ana.ID, Function: "Keys"})
		require.Error(t, err)
		assert.Equal(t, "user_id", fieldOf(t, err))
	})

	t.Run("another function", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, upcoming, schedule.NewAssignment{UserID: ana.ID, Function: "Backing Vocal"})
		require.NoError(t, err)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, upcoming, schedule.NewAssignment{UserID: "nope", Function: "Bass"})
		require.Error(t, err)
		assert.Equal(t, "user_id", fieldOf(t, err))
	})

	t.Run("no email for past schedules", func(t *testing.T) {
		f.mailSvc.Reset()
		_, err := f.svc.AddMember(ctx, past, schedule.NewAssignment{UserID: ana.ID, Function: "Drums"})
		require.NoError(t, err)
		assert.Empty(t, f.mailSvc.SentMessages())
	})
}

func TestService_Detail(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ana := testutil.CreateUser(t, f.usrRepo, "Ana", "ana@example.com", "", "", true)
	bia := testutil.CreateUser(t, f.usrRepo, "Bia", "bia@example.com", "", "", true)
	s := testutil.CreateSchedule(t, f.schedRepo, f.svc.Today(), "Ensaio")
	testutil.Assign(t, f.schedRepo, s, ana, "Bass")

	d, err := f.svc.Detail(ctx, s, ana)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusToday, d.Status)
	assert.Len(t, d.Members, 1)
	assert.Empty(t, d.Songs)
	assert.Equal(t, "Bass", d.MyFunction.String)

	d, err = f.svc.Detail(ctx, s, bia)
	require.NoError(t, err)
	assert.False(t, d.MyFunction.Valid)
}

func TestService_Setlist(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ana := testutil.CreateUser(t, f.usrRepo, "Ana", "ana@example.com", "", "", true)
	s := testutil.CreateSchedule(t, f.schedRepo, f.svc.Today().AddDays(7), "Culto")
	songs := []song.Song{
		testutil.CreateSong(t, f.songRepo, "Oceanos", "Hillsong"),
		testutil.CreateSong(t, f.songRepo, "Bondade de Deus", "Isaias Saad"),
		testutil.CreateSong(t, f.songRepo, "Lugar Secreto", "Gabriela Rocha"),
	}

	var entries []schedule.SetlistEntry
	for i, sng := range songs {
		ne := schedule.NewSetlistEntry{SongID: sng.ID}
		if i == 0 {
			ne.MinisterID = ana.ID
		}
		e, err := f.svc.AddSong(ctx, s, ne)
		require.NoError(t, err)
		assert.Equal(t, i, e.Position)
		entries = append(entries, e)
	}
	assert.Equal(t, "Ana", entries[0].MinisterName.String)

	t.Run("duplicate song", func(t *testing.T) {
		_, err := f.svc.AddSong(ctx, s, schedule.NewSetlistEntry{SongID: songs[1].ID})
		require.Error(t, err)
		assert.Equal(t, "song_id", fieldOf(t, err))
	})

	t.Run("unknown song", func(t *testing.T) {
		_, err := f.svc.AddSong(ctx, s, schedule.NewSetlistEntry{SongID: "nope"})
		require.Error(t, err)
		assert.Equal(t, "song_id", fieldOf(t, err))
	})

	t.Run("unknown minister", func(t *testing.T) {
		extra := testutil.CreateSong(t, f.songRepo, "Extra", "")
		_, err := f.svc.AddSong(ctx, s, schedule.NewSetlistEntry{SongID: extra.ID, MinisterID: "nope"})
		require.Error(t, err)
		assert.Equal(t, "minister_id", fieldOf(t, err))
	})

	t.Run("reorder", func(t *testing.T) {
		order := []string{entries[2].ID, entries[0].ID, entries[1].ID}
		setlist, err := f.svc.ReorderSongs(ctx, s, order)
		require.NoError(t, err)
		assert.Equal(t, order, entryIDs(setlist))
		for i, e := range setlist {
			assert.Equal(t, i, e.Position)
		}
	})

	t.Run("reorder requires a permutation", func(t *testing.T) {
		for _, ids := range [][]string{
			{entries[0].ID, entries[1].ID},
			{entries[0].ID, entries[0].ID, entries[1].ID},
			{entries[0].ID, entries[1].ID, "nope"},
		} {
			_, err := f.svc.ReorderSongs(ctx, s, ids)
			require.Error(t, err)
			assert.Equal(t, "entry_ids", fieldOf(t, err))
		}
	})

	t.Run("remove closes the gap", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveSong(ctx, s, entries[0].ID)) // currently in the middle

		setlist, err := f.svc.Setlist(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{entries[2].ID, entries[1].ID}, entryIDs(setlist))
		for i, e := range setlist {
			assert.Equal(t, i, e.Position)
		}

		err = f.svc.RemoveSong(ctx, s, entries[0].ID)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	today := f.svc.Today()
	ana := testutil.CreateUser(t, f.usrRepo, "Ana", "ana@example.com", "", "", true)
	past := testutil.CreateSchedule(t, f.schedRepo, today.AddDays(-7), "Past")
	now := testutil.CreateSchedule(t, f.schedRepo, today, "Today")
	next := testutil.CreateSchedule(t, f.schedRepo, today.AddDays(7), "Next")
	testutil.Assign(t, f.schedRepo, next, ana, "Drums")

	summaries, err := f.svc.List(ctx, schedule.QueryFilter{}, ana)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, []string{past.ID, now.ID, next.ID}, []string{summaries[0].ID, summaries[1].ID, summaries[2].ID})
	assert.Equal(t, schedule.StatusPast, summaries[0].Status)
	assert.Equal(t, schedule.StatusToday, summaries[1].Status)
	assert.Equal(t, schedule.StatusUpcoming, summaries[2].Status)
	assert.Equal(t, 1, summaries[2].MemberCount)
	assert.Equal(t, "Drums", summaries[2].MyFunction.String)

	summaries, err = f.svc.List(ctx, schedule.QueryFilter{From: today}, ana)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	count, err := f.svc.CountUpcoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestService_Upcoming(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	today := f.svc.Today()
	ana := testutil.CreateUser(t, f.usrRepo, "Ana", "ana@example.com", "", "", true)
	past := testutil.CreateSchedule(t, f.schedRepo, today.AddDays(-1), "Past")
	later := testutil.CreateSchedule(t, f.schedRepo, today.AddDays(14), "Later")
	sooner := testutil.CreateSchedule(t, f.schedRepo, today, "Sooner")
	testutil.Assign(t, f.schedRepo, past, ana, "Keys")
	testutil.Assign(t, f.schedRepo, later, ana, "Keys")
	testutil.Assign(t, f.schedRepo, sooner, ana, "Bass")

	upcoming, err := f.svc.Upcoming(ctx, ana, 5)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, sooner.ID, upcoming[0].Schedule.ID)
	assert.Equal(t, schedule.StatusToday, upcoming[0].Status)
	assert.Equal(t, later.ID, upcoming[1].Schedule.ID)

	upcoming, err = f.svc.Upcoming(ctx, ana, 1)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ana := testutil.CreateUser(t, f.usrRepo, "Ana", "ana@example.com", "", "", true)
	s := testutil.CreateSchedule(t, f.schedRepo, f.svc.Today(), "Culto")
	testutil.Assign(t, f.schedRepo, s, ana, "Keys")

	require.NoError(t, f.svc.Delete(ctx, s.ID))
	_, err := f.svc.GetByID(ctx, s.ID)
	assert.Equal(t, schedule.ErrNotFound, errors.Cause(err))

	upcoming, err := f.svc.Upcoming(ctx, ana, 5)
	require.NoError(t, err)
	assert.Empty(t, upcoming)
}

func TestService_SongDeletedFromCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	s := testutil.CreateSchedule(t, f.schedRepo, f.svc.Today().AddDays(3), "Culto")
	songs := []song.Song{
		testutil.CreateSong(t, f.songRepo, "Oceanos", "Hillsong"),
		testutil.CreateSong(t, f.songRepo, "Bondade de Deus", "Isaias Saad"),
		testutil.CreateSong(t, f.songRepo, "Lugar Secreto", "Gabriela Rocha"),
	}
	for _, sng := range songs {
		_, err := f.svc.AddSong(ctx, s, schedule.NewSetlistEntry{SongID: sng.ID})
		require.NoError(t, err)
	}

	require.NoError(t, f.songRepo.DeleteSong(ctx, songs[1].ID))

	setlist, err := f.schedRepo.QuerySetlist(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, setlist, 2)
	assert.Equal(t, songs[0].ID, setlist[0].Song.ID)
	assert.Equal(t, 0, setlist[0].Position)
	assert.Equal(t, songs[2].ID, setlist[1].Song.ID)
	assert.Equal(t, 1, setlist[1].Position)

	// the next song goes to the end without colliding
	e, err := f.svc.AddSong(ctx, s, schedule.NewSetlistEntry{SongID: songs[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, e.Position)
}
