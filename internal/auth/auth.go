// Package auth implements the scoreboard's three principals: the admin
// (shared secret), credentialed teams (TEAM_PASSWORD in the team env), and
// open teams (no password set, silently authorized for their own scope).
package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rangehq/rangeboard/internal/game"
)

// AdminName is the admin's login username.
const AdminName = "admin"

// AdminID is the fixed sentinel identity of the admin principal. The value
// is stable, not secret.
var AdminID = uuid.MustParse("00000000-0000-4000-8000-000000000001")

// Principal is an authenticated actor.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Admin bool      `json:"admin"`
}

// Gate authenticates logins and authorizes team-scoped access.
type Gate struct {
	// adminHash is the pre-computed SHA-256 of the admin secret; the
	// comparison runs constant-time to avoid leaking prefix matches.
	adminHash [32]byte
	store     *game.Store
	sessions  *SessionStore
}

// NewGate creates a Gate over the game state. An empty adminPassword
// disables admin login entirely.
func NewGate(adminPassword string, store *game.Store) *Gate {
	g := &Gate{store: store, sessions: NewSessionStore()}
	if adminPassword != "" {
		g.adminHash = sha256.Sum256([]byte(adminPassword))
	} else {
		log.Warn().Msg("no admin password configured; admin login disabled")
	}
	return g
}

// Sessions exposes the session store for middleware.
func (g *Gate) Sessions() *SessionStore { return g.sessions }

// Login authenticates a username/password pair as either the admin or a
// credentialed team and returns a fresh session token.
func (g *Gate) Login(username, password string) (Principal, string, bool) {
	if username == AdminName && g.checkAdmin(password) {
		p := Principal{ID: AdminID, Name: AdminName, Admin: true}
		return p, g.sessions.Create(p), true
	}

	var principal Principal
	ok := false
	g.store.View(func(cfg *game.Config) {
		if team, found := cfg.TeamWithPassword(username, password); found {
			principal = Principal{ID: team.ID, Name: team.Name}
			ok = true
		}
	})
	if !ok {
		return Principal{}, "", false
	}
	return principal, g.sessions.Create(principal), true
}

// Logout discards a session token.
func (g *Gate) Logout(token string) {
	g.sessions.Delete(token)
}

// Authenticate resolves a session token to its principal.
func (g *Gate) Authenticate(token string) (Principal, bool) {
	return g.sessions.Get(token)
}

// AuthorizeTeam decides whether a request may act in a team's scope. Admin
// sessions and the team's own session always may; anyone may when the team
// has no password configured. The second return distinguishes "no" from
// "no such team".
func (g *Gate) AuthorizeTeam(p *Principal, teamName string) (allowed, exists bool) {
	if p != nil && p.Admin {
		allowed = true
	}
	g.store.View(func(cfg *game.Config) {
		team, ok := cfg.Teams[teamName]
		if !ok {
			return
		}
		exists = true
		if !team.HasPassword() {
			allowed = true
		}
		if p != nil && !p.Admin && p.Name == teamName {
			allowed = true
		}
	})
	return allowed, exists
}

func (g *Gate) checkAdmin(password string) bool {
	if g.adminHash == [32]byte{} {
		return false
	}
	providedHash := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(providedHash[:], g.adminHash[:]) == 1
}
