package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangehq/rangeboard/internal/game"
)

func testStore(t *testing.T) *game.Store {
	t.Helper()
	cfg := game.New()
	require.NoError(t, cfg.AddTeam("closed"))
	require.NoError(t, cfg.AddTeamEnv("closed", game.PasswordEnvKey, "hunter2"))
	require.NoError(t, cfg.AddTeam("open"))
	return game.NewStore(cfg)
}

func TestAdminLogin(t *testing.T) {
	t.Parallel()

	gate := NewGate("topsecret", testStore(t))

	_, _, ok := gate.Login(AdminName, "wrong")
	assert.False(t, ok)

	principal, token, ok := gate.Login(AdminName, "topsecret")
	require.True(t, ok)
	assert.True(t, principal.Admin)
	assert.Equal(t, AdminID, principal.ID)
	assert.NotEmpty(t, token)

	resolved, ok := gate.Authenticate(token)
	require.True(t, ok)
	assert.Equal(t, principal, resolved)
}

func TestAdminLoginDisabled(t *testing.T) {
	t.Parallel()

	gate := NewGate("", testStore(t))
	_, _, ok := gate.Login(AdminName, "")
	assert.False(t, ok, "empty configured secret disables admin login outright")
}

func TestTeamLogin(t *testing.T) {
	t.Parallel()

	gate := NewGate("topsecret", testStore(t))

	_, _, ok := gate.Login("closed", "wrong")
	assert.False(t, ok)
	_, _, ok = gate.Login("open", "")
	assert.False(t, ok, "open teams have nothing to log in to")
	_, _, ok = gate.Login("nobody", "x")
	assert.False(t, ok)

	principal, token, ok := gate.Login("closed", "hunter2")
	require.True(t, ok)
	assert.False(t, principal.Admin)
	assert.Equal(t, "closed", principal.Name)
	assert.NotEmpty(t, token)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	gate := NewGate("topsecret", testStore(t))
	_, token, ok := gate.Login(AdminName, "topsecret")
	require.True(t, ok)

	gate.Logout(token)
	_, ok = gate.Authenticate(token)
	assert.False(t, ok)
}

func TestAuthorizeTeam(t *testing.T) {
	t.Parallel()

	gate := NewGate("topsecret", testStore(t))
	admin := &Principal{Name: AdminName, Admin: true}
	closedTeam := &Principal{Name: "closed"}

	tests := []struct {
		name      string
		principal *Principal
		team      string
		allowed   bool
		exists    bool
	}{
		{"anonymous open team", nil, "open", true, true},
		{"anonymous closed team", nil, "closed", false, true},
		{"own session", closedTeam, "closed", true, true},
		{"other closed team", &Principal{Name: "other"}, "closed", false, true},
		{"admin anywhere", admin, "closed", true, true},
		{"unknown team", nil, "ghost", false, false},
		{"admin unknown team", admin, "ghost", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			allowed, exists := gate.AuthorizeTeam(tt.principal, tt.team)
			assert.Equal(t, tt.allowed, allowed)
			assert.Equal(t, tt.exists, exists)
		})
	}
}
