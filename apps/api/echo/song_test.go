package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
	"github.com/ministerio/escalas/tests/testutil"
)

func Test_songApi_query(t *testing.T) {
	resetDB()

	ana := testutil.CreateUser(t, usrRepo, "Ana Souza", "ana@example.com", "", "", true)
	now := time.Now()
	oceanos := testutil.CreateSong(t, songRepo, "Oceanos", "Hillsong", now.Add(2*time.Hour))
	bondade := testutil.CreateSong(t, songRepo, "Bondade de Deus", "Isaias Saad", now)
	lugar := testutil.CreateSong(t, songRepo, "Lugar Secreto", "Gabriela Rocha", now.Add(time.Hour))

	token := getToken(t, ana)

	runHTTPTests(t, []httpTest{
		{name: "Auth required", path: "/v1/songs", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Get all", path: "/v1/songs", token: token, wantData: marshalList(t, bondade, lugar, oceanos)},
		{name: "search=hill", path: "/v1/songs?search=hill", token: token, wantData: marshalList(t, oceanos)},
		{name: "search (unknown)", path: "/v1/songs?search=lol", token: token, wantData: marshalList(t)},
		{name: "order by -created_at", path: "/v1/songs?ordering=-created_at", token: token, wantData: marshalList(t, oceanos, lugar, bondade)},
		{name: "Retrieve", path: "/v1/songs/" + lugar.ID, token: token, wantData: marshalObj(t, lugar)},
		{
			name: "Unknown", path: "/v1/songs/unknown", token: token, wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: song.ErrNotFound.Error()}),
		},
	})
}

func Test_songApi_mutations(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Zeca Admin", "zeca@example.com", "", user.RoleAdmin, true)
	ana := testutil.CreateUser(t, usrRepo, "Ana Souza", "ana@example.com", "", "", true)
	adminToken := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/songs",
			body: marshalObj(t, song.NewSong{Title: "Oceanos"}), token: getToken(t, ana),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermission),
		},
		{
			name: "Invalid data", method: http.MethodPost, path: "/v1/songs",
			body: marshalObj(t, song.NewSong{Title: " ", Key: "H"}), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"title": "this field is required",
				"key":   "key must be a musical key such as C, F#m or Bb",
			}),
		},
	})

	rec := do(http.MethodPost, "/v1/songs", adminToken, marshalObj(t, song.NewSong{Title: " Oceanos ", Artist: "Hillsong", Key: "D"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created song.Song
	unmarshal(t, rec, &created)
	assert.Equal(t, "Oceanos", created.Title)
	assert.Equal(t, "D", created.Key.String)
	assert.False(t, created.Link.Valid)

	rec = do(http.MethodPut, "/v1/songs/"+created.ID, adminToken, marshalObj(t, song.NewSong{Title: "Oceans", Key: "Bm"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated song.Song
	unmarshal(t, rec, &updated)
	assert.Equal(t, "Oceans", updated.Title)
	assert.False(t, updated.Artist.Valid)
	assert.Equal(t, "Bm", updated.Key.String)

	runHTTPTests(t, []httpTest{
		{name: "Delete requires admin", method: http.MethodDelete, path: "/v1/songs/" + created.ID, token: getToken(t, ana), wantCode: http.StatusForbidden},
		{name: "Deleted", method: http.MethodDelete, path: "/v1/songs/" + created.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "Already deleted", method: http.MethodDelete, path: "/v1/songs/" + created.ID, token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "Update unknown", method: http.MethodPut, path: "/v1/songs/" + created.ID,
			body: marshalObj(t, song.NewSong{Title: "X"}), token: adminToken, wantCode: http.StatusNotFound,
		},
	})
}

func Test_songApi_options(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Zeca Admin", "zeca@example.com", "", user.RoleAdmin, true)
	ana := testutil.CreateUser(t, usrRepo, "Ana Souza", "ana@example.com", "", "", true)
	oceanos := testutil.CreateSong(t, songRepo, "Oceanos", "Hillsong")
	bondade := testutil.CreateSong(t, songRepo, "Bondade de Deus", "")

	today := schedSvc.Today()
	s := testutil.CreateSchedule(t, schedRepo, today.AddDays(-7), "Culto")
	_, err := schedSvc.AddSong(context.Background(), s, schedule.NewSetlistEntry{SongID: oceanos.ID, MinisterID: ana.ID})
	require.NoError(t, err)

	runHTTPTests(t, []httpTest{
		{name: "Admin required", path: "/v1/songs/options", token: getToken(t, ana), wantCode: http.StatusForbidden},
	})

	rec := do(http.MethodGet, "/v1/songs/options", getToken(t, admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var opts []song.Option
	unmarshal(t, rec, &opts)
	require.Len(t, opts, 2)
	assert.Equal(t, bondade.ID, opts[0].ID)
	assert.Nil(t, opts[0].LastPlayedOn)
	assert.Equal(t, oceanos.ID, opts[1].ID)
	require.NotNil(t, opts[1].LastPlayedOn)
	assert.Equal(t, s.Date, *opts[1].LastPlayedOn)
	assert.Equal(t, "Ana Souza", opts[1].LastMinister.String)
}
