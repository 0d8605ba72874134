package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangehq/rangeboard/internal/auth"
	"github.com/rangehq/rangeboard/internal/game"
	"github.com/rangehq/rangeboard/internal/password"
	"github.com/rangehq/rangeboard/internal/probe"
	"github.com/rangehq/rangeboard/internal/render"
	"github.com/rangehq/rangeboard/internal/save"
)

const adminPassword = "admin-secret"

type stubProber struct{}

func (stubProber) Check(_ context.Context, command string, _ []string) (probe.Result, error) {
	return probe.Result{Up: command == "up"}, nil
}

type testEnv struct {
	t      *testing.T
	server *httptest.Server
	store  *game.Store
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := game.New()
	require.NoError(t, cfg.AddService(game.NewService("web", "up", 1)))
	require.NoError(t, cfg.AddTeam("open"))
	require.NoError(t, cfg.AddTeam("closed"))
	require.NoError(t, cfg.AddTeamEnv("closed", game.PasswordEnvKey, "hunter2"))
	store := game.NewStore(cfg)

	passwords := password.NewStore(dir)
	passwords.ValidateFS(cfg.TeamNames())
	saves := save.NewManager(dir, passwords)
	require.NoError(t, saves.ValidateFS())

	renderer, err := render.NewRenderer()
	require.NoError(t, err)
	t.Cleanup(renderer.Close)

	handler := SetupRoutes(Deps{
		Store:       store,
		Gate:        auth.NewGate(adminPassword, store),
		Saves:       saves,
		Passwords:   passwords,
		Renderer:    renderer,
		Prober:      stubProber{},
		ResourceDir: dir,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testEnv{t: t, server: server, store: store, dir: dir}
}

// do sends one JSON request, optionally with a session cookie.
func (e *testEnv) do(method, path string, body any, session *http.Cookie) *http.Response {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	if session != nil {
		req.AddCookie(session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// login authenticates and returns the session cookie.
func (e *testEnv) login(username, pass string) *http.Cookie {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/login", loginRequest{Username: username, Password: pass}, nil)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	e.t.Fatal("no session cookie in login response")
	return nil
}

func TestLogin(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	resp := e.do(http.MethodPost, "/api/login", loginRequest{Username: "closed", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(http.MethodPost, "/api/login", loginRequest{Username: "admin", Password: adminPassword}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	principal := decodeBody[auth.Principal](t, resp)
	assert.True(t, principal.Admin)
}

func TestLoginRateLimit(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	status := 0
	for range 8 {
		resp := e.do(http.MethodPost, "/api/login", loginRequest{Username: "closed", Password: "wrong"}, nil)
		status = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, status, "hammering login trips the limiter")
}

func TestLogout(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	session := e.login("admin", adminPassword)

	resp := e.do(http.MethodPost, "/api/logout", nil, session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(http.MethodGet, "/api/admin/config", nil, session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "the session is gone")
}

func TestPublicScoreboard(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	require.NoError(t, e.store.Update(func(cfg *game.Config) error {
		cfg.ApplyResult("open", "web", true)
		return nil
	}))

	resp := e.do(http.MethodGet, "/api/scores", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	board := decodeBody[scoreboardResponse](t, resp)

	assert.Equal(t, []string{"web"}, board.Services)
	require.Len(t, board.Teams, 2)
	assert.Equal(t, "closed", board.Teams[0].Name, "teams come out name-sorted")
	assert.Equal(t, "open", board.Teams[1].Name)
	assert.Equal(t, uint32(1), board.Teams[1].Score)
	require.Len(t, board.Teams[1].Services, 1)
	assert.True(t, board.Teams[1].Services[0].Up)
	assert.Equal(t, []bool{true}, board.Teams[1].Services[0].Ups)
}

func TestTimeEndpoint(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	resp := e.do(http.MethodGet, "/api/time", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	clock := decodeBody[timeResponse](t, resp)
	assert.True(t, clock.Active)
}

func TestTeamTierAuthorization(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	// Open teams admit anonymous requests.
	resp := e.do(http.MethodGet, "/api/teams/open/injects", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Closed teams do not.
	resp = e.do(http.MethodGet, "/api/teams/closed/injects", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Unknown teams are a 404, not a 401.
	resp = e.do(http.MethodGet, "/api/teams/ghost/injects", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The team's own session gets through.
	session := e.login("closed", "hunter2")
	resp = e.do(http.MethodGet, "/api/teams/closed/injects", nil, session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// So does the admin.
	admin := e.login("admin", adminPassword)
	resp = e.do(http.MethodGet, "/api/teams/closed/injects", nil, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminTierAuthorization(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	resp := e.do(http.MethodPost, "/api/admin/teams", teamRequest{Name: "charlie"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	session := e.login("closed", "hunter2")
	resp = e.do(http.MethodPost, "/api/admin/teams", teamRequest{Name: "charlie"}, session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "team sessions are not admins")
}

func TestAdminTeamLifecycle(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	resp := e.do(http.MethodPost, "/api/admin/teams", teamRequest{Name: "charlie"}, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(http.MethodPost, "/api/admin/teams", teamRequest{Name: "charlie"}, admin)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(http.MethodPut, "/api/admin/teams/charlie", teamRequest{Name: "delta"}, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(http.MethodDelete, "/api/admin/teams/delta", nil, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(http.MethodDelete, "/api/admin/teams/delta", nil, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The password tree followed along.
	_, err := os.Stat(filepath.Join(e.dir, "PW", "delta"))
	assert.True(t, os.IsNotExist(err))
}

func TestAdminServiceEndpoints(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	resp := e.do(http.MethodPost, "/api/admin/services",
		game.NewService("dns", "down", 2), admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(http.MethodPost, "/api/admin/services", game.Service{Name: "broken"}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The ad-hoc test endpoint probes every team.
	resp = e.do(http.MethodGet, "/api/admin/services/web/test", nil, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := decodeBody[[]serviceTestResult](t, resp)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Up)
	}

	resp = e.do(http.MethodGet, "/api/admin/services/ghost/test", nil, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClockEndpoints(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	resp := e.do(http.MethodPost, "/api/admin/stop", nil, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	clock := decodeBody[timeResponse](t, e.do(http.MethodGet, "/api/time", nil, nil))
	assert.False(t, clock.Active)

	resp = e.do(http.MethodPost, "/api/admin/start", nil, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	clock = decodeBody[timeResponse](t, e.do(http.MethodGet, "/api/time", nil, nil))
	assert.True(t, clock.Active)
}

func (e *testEnv) createInject(admin *http.Cookie, payload game.CreateInject) string {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/admin/injects", payload, admin)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var id string
	e.store.View(func(cfg *game.Config) {
		for i := range cfg.Injects {
			if cfg.Injects[i].Name == payload.Name {
				id = cfg.Injects[i].UUID.String()
			}
		}
	})
	require.NotEmpty(e.t, id)
	return id
}

func (e *testEnv) upload(path, filename, contents string, session *http.Cookie) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(e.t, err)
	_, err = fw.Write([]byte(contents))
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, &buf)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if session != nil {
		req.AddCookie(session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestInjectWorkflow(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	duration := uint32(30)
	id := e.createInject(admin, game.CreateInject{
		Name:     "Firewall Audit",
		Markdown: "# Audit\nCheck {{HOST}}.",
		Duration: &duration,
		FileType: []string{"pdf"},
	})

	// The open team sees the inject with rendered HTML.
	resp := e.do(http.MethodGet, "/api/teams/open/injects/"+id, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decodeBody[injectDetail](t, resp)
	assert.Contains(t, detail.HTML, "<h1")
	assert.Empty(t, detail.Responses)

	// Wrong extension is refused.
	resp = e.upload("/api/teams/open/injects/"+id, "report.txt", "text", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A pdf lands on disk under the team's inject directory.
	resp = e.upload("/api/teams/open/injects/"+id, "report.pdf", "pdf-bytes", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	submitted := decodeBody[game.InjectResponse](t, resp)
	assert.False(t, submitted.Late)
	assert.Equal(t, "Firewall_Audit_response.pdf", submitted.Filename)

	data, err := os.ReadFile(filepath.Join(e.dir, "injects", "open", submitted.Filename))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	// Once the inject is completed, further uploads are late.
	require.NoError(t, e.store.Update(func(cfg *game.Config) error {
		in, ok := cfg.InjectByUUID(id)
		require.True(t, ok)
		edited := *in
		edited.Completed = true
		return cfg.EditInject(edited)
	}))
	resp = e.upload("/api/teams/open/injects/"+id, "report.pdf", "late-bytes", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	late := decodeBody[game.InjectResponse](t, resp)
	assert.True(t, late.Late)
	assert.Equal(t, "Firewall_Audit_late_response.pdf", late.Filename)
}

func TestInjectUploadRefusedWhenNoSubmit(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	id := e.createInject(admin, game.CreateInject{Name: "FYI", NoSubmit: true})
	resp := e.upload("/api/teams/open/injects/"+id, "note.txt", "x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInjectUploadTooLarge(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	duration := uint32(30)
	id := e.createInject(admin, game.CreateInject{Name: "Big Report", Duration: &duration})

	body := strings.Repeat("a", 11<<20)
	resp := e.upload("/api/teams/open/injects/"+id, "report.zip", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	// Nothing lands on disk for a refused upload.
	_, err := os.Stat(filepath.Join(e.dir, "injects", "open"))
	assert.True(t, os.IsNotExist(err))
}

func TestDormantInjectHidden(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	duration := uint32(30)
	id := e.createInject(admin, game.CreateInject{
		Name:     "Later",
		Start:    120,
		Duration: &duration,
	})

	// Not listed before its window opens, and not readable by uuid either.
	resp := e.do(http.MethodGet, "/api/teams/open/injects", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]teamInject](t, resp))

	resp = e.do(http.MethodGet, "/api/teams/open/injects/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The admin still sees it in the full config.
	resp = e.do(http.MethodGet, "/api/admin/config", nil, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTeamPasswordEndpoints(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	// Admin seeds a group wholesale.
	resp := e.do(http.MethodPost, "/api/admin/teams/open/passwords/domain",
		passwordGroup{Passwords: "alice:a1\nbob:b2"}, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(http.MethodGet, "/api/teams/open/passwords", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	groups := decodeBody[[]passwordGroup](t, resp)
	require.Len(t, groups, 1)
	assert.Equal(t, "domain", groups[0].Group)
	assert.Equal(t, "alice:a1\nbob:b2\n", groups[0].Passwords)

	// The team rotates a credential it holds; unknown users are ignored.
	resp = e.do(http.MethodPost, "/api/teams/open/passwords/domain",
		passwordGroup{Passwords: "alice:rotated\nmallory:nope"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	groups = decodeBody[[]passwordGroup](t, e.do(http.MethodGet, "/api/teams/open/passwords", nil, nil))
	assert.Equal(t, "alice:rotated\nbob:b2\n", groups[0].Passwords)

	// Admin removes the group.
	resp = e.do(http.MethodDelete, "/api/admin/teams/open/passwords/domain", nil, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	resp := e.do(http.MethodPost, "/api/admin/saves", saveRequest{Name: "checkpoint"}, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Destroy some state.
	resp = e.do(http.MethodDelete, "/api/admin/teams/open", nil, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeBody[saveListResponse](t, e.do(http.MethodGet, "/api/admin/saves", nil, admin))
	require.Len(t, list.Saves, 1)
	assert.Equal(t, "checkpoint", list.Saves[0].Name)

	resp = e.do(http.MethodPost, "/api/admin/saves/load", saveRequest{Name: "checkpoint"}, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e.store.View(func(cfg *game.Config) {
		_, ok := cfg.Teams["open"]
		assert.True(t, ok, "the load resurrects the deleted team")
		assert.False(t, cfg.IsActive(), "a loaded game comes back stopped")
	})

	resp = e.do(http.MethodPost, "/api/admin/saves/load", saveRequest{Name: "ghost"}, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveRejectsBadName(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	admin := e.login("admin", adminPassword)

	resp := e.do(http.MethodPost, "/api/admin/saves", saveRequest{Name: "../escape"}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	resp := e.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	resp := e.do(http.MethodGet, "/healthz", nil, nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, e.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "fixed-id-1234")
	echo, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer echo.Body.Close()
	assert.Equal(t, "fixed-id-1234", echo.Header.Get("X-Request-ID"))
}
