package inmemdb

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/user"
	"github.com/ministerio/escalas/tests/testutil"
)

func TestSortBy(t *testing.T) {
	type item struct {
		name string
		age  int
	}
	less := map[string]func(a, b item) bool{
		"name": func(a, b item) bool { return a.name < b.name },
		"age":  func(a, b item) bool { return a.age < b.age },
	}
	names := func(items []item) []string {
		res := make([]string, 0, len(items))
		for _, it := range items {
			res = append(res, it.name)
		}
		return res
	}
	def := core.DBOrdering{Field: "name", Ascending: true}

	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "default", want: []string{"ana", "bia", "caio", "duda"}},
		{name: "unknown fields fall back to default", ordering: []core.DBOrdering{{Field: "lol"}}, want: []string{"ana", "bia", "caio", "duda"}},
		{name: "descending", ordering: []core.DBOrdering{{Field: "name"}}, want: []string{"duda", "caio", "bia", "ana"}},
		{
			name:     "several keys",
			ordering: []core.DBOrdering{{Field: "age", Ascending: false}, {Field: "name", Ascending: true}},
			want:     []string{"bia", "duda", "ana", "caio"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []item{{"caio", 20}, {"ana", 30}, {"duda", 40}, {"bia", 40}}
			sortBy(items, tt.ordering, less, def)
			assert.Equal(t, tt.want, names(items))
		})
	}
}

func TestUserRepository_emailUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())

	ana := testutil.CreateUser(t, repo, "Ana", "ana@example.com", "", "", true)

	assert.Equal(t, user.ErrEmailExists, repo.CheckEmailUniqueness(ctx, "ana@example.com"))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "ana@example.com", ana.ID))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "bia@example.com"))

	_, err := repo.CreateUser(ctx, user.User{Name: "Other", Email: "ana@example.com"})
	assert.Equal(t, user.ErrEmailExists, err)

	created, err := repo.UpdateOrCreateUser(ctx, user.User{Name: "Bia", Email: "bia@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	created.Email = "ana@example.com"
	_, err = repo.UpdateOrCreateUser(ctx, created)
	assert.Equal(t, user.ErrEmailExists, err)
}

func TestUserRepository_deleteCascades(t *testing.T) {
	ctx := context.Background()
	db := Open()
	usrRepo := NewUserRepository(db)
	songRepo := NewSongRepository(db)
	schedRepo := NewScheduleRepository(db)

	ana := testutil.CreateUser(t, usrRepo, "Ana", "ana@example.com", "", "", true)
	ana = testutil.AddFunctions(t, usrRepo, ana, "Keys", "Bass")
	s := testutil.CreateSchedule(t, schedRepo, civil.DateOf(time.Now()).AddDays(2), "Culto", ana)
	testutil.Assign(t, schedRepo, s, ana, "Keys")
	sng := testutil.CreateSong(t, songRepo, "Oceanos", "Hillsong")
	_, err := schedRepo.CreateSetlistEntry(ctx, schedule.SetlistEntry{
		ScheduleID: s.ID,
		Song:       sng,
		MinisterID: null.StringFrom(ana.ID),
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	n, err := usrRepo.DeleteUsersByID(ctx, []string{ana.ID, "nope"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Empty(t, db.functions)
	members, err := schedRepo.QueryAssignments(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	refreshed, err := schedRepo.GetScheduleByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.CreatedBy.Valid)

	setlist, err := schedRepo.QuerySetlist(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, setlist, 1)
	assert.False(t, setlist[0].MinisterID.Valid)
	assert.False(t, setlist[0].MinisterName.Valid)
}

func TestScheduleRepository_QueryUpcomingLimit(t *testing.T) {
	ctx := context.Background()
	db := Open()
	usrRepo := NewUserRepository(db)
	schedRepo := NewScheduleRepository(db)

	today := civil.DateOf(time.Now())
	ana := testutil.CreateUser(t, usrRepo, "Ana", "ana@example.com", "", "", true)
	ana = testutil.AddFunctions(t, usrRepo, ana, "Keys")
	for i := 1; i <= 3; i++ {
		s := testutil.CreateSchedule(t, schedRepo, today.AddDays(i), "Culto", ana)
		testutil.Assign(t, schedRepo, s, ana, "Keys")
	}
	past := testutil.CreateSchedule(t, schedRepo, today.AddDays(-1), "Culto", ana)
	testutil.Assign(t, schedRepo, past, ana, "Keys")

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero returns all", limit: 0, want: 3},
		{name: "negative returns all", limit: -1, want: 3},
		{name: "limited", limit: 2, want: 2},
		{name: "above total", limit: 10, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upcoming, err := schedRepo.QueryUpcoming(ctx, ana.ID, today, tt.limit)
			require.NoError(t, err)
			require.Len(t, upcoming, tt.want)
			assert.Equal(t, today.AddDays(1), upcoming[0].Schedule.Date)
		})
	}
}
