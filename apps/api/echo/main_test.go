package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	. "github.com/ministerio/escalas/apps/api/echo"
	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/dashboard"
	"github.com/ministerio/escalas/core/schedule"
	"github.com/ministerio/escalas/core/song"
	"github.com/ministerio/escalas/core/user"
	emailsvc "github.com/ministerio/escalas/services/email"
	logsvc "github.com/ministerio/escalas/services/logger"
	"github.com/ministerio/escalas/services/tokenstore"
	inmemdb "github.com/ministerio/escalas/storage/database/inmem"
	"github.com/ministerio/escalas/tests/testutil"
)

const strongPwd = "Xk9#mQ2$vLp7"

var (
	conf      *core.Config
	db        *inmemdb.DB
	app       *Server
	mailSvc   *emailsvc.ConsoleServiceMock
	usrRepo   user.Repository
	songRepo  song.Repository
	schedRepo schedule.Repository
	schedSvc  *schedule.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errPermission   = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	validate, translator := testutil.NewValidator()
	user.LoadCommonPasswords(logger)

	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	songRepo = inmemdb.NewSongRepository(db)
	schedRepo = inmemdb.NewScheduleRepository(db)

	// set up services
	mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	songSvc := song.NewService(songRepo)
	schedSvc = schedule.NewService(schedRepo, usrRepo, songRepo, mailSvc, conf)

	// set up server
	app = NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		SongSvc:      songSvc,
		ScheduleSvc:  schedSvc,
		DashboardSvc: dashboard.NewService(schedSvc, usrSvc, songSvc),
		TokenStore:   tokenstore.NewMemoryStore(),
		Validate:     validate,
		Translator:   translator,
	})

	code := m.Run()
	_ = app.Close()
	os.Exit(code)
}

func resetDB() {
	db.Reset()
	mailSvc.Reset()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a single request.
func do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	require.NoError(t, err, "GenerateToken()")
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marshalObj()")
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	return marshalObj(t, objs)
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), "unmarshal(%s)", rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
