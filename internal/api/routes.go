package api

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/rangehq/rangeboard/internal/auth"
	"github.com/rangehq/rangeboard/internal/game"
	"github.com/rangehq/rangeboard/internal/metrics"
	"github.com/rangehq/rangeboard/internal/password"
	"github.com/rangehq/rangeboard/internal/render"
	"github.com/rangehq/rangeboard/internal/save"
	"github.com/rangehq/rangeboard/internal/scheduler"
)

// Deps collects everything the handlers touch.
type Deps struct {
	Store     *game.Store
	Gate      *auth.Gate
	Saves     *save.Manager
	Passwords *password.Store
	Renderer  *render.Renderer
	Prober    scheduler.Prober
	// ResourceDir is the root for inject response uploads.
	ResourceDir string
}

type handlers struct {
	Deps
	loginLimiter *auth.LoginLimiter
}

// SetupRoutes creates the HTTP handler with all routes configured.
// Routes fall in three tiers: public endpoints, team-scoped endpoints
// authorized per request, and the admin console.
func SetupRoutes(deps Deps) http.Handler {
	h := &handlers{
		Deps: deps,
		// A short burst, then one attempt per two seconds per address.
		loginLimiter: auth.NewLoginLimiter(rate.Limit(0.5), 5),
	}

	mux := http.NewServeMux()

	// Public tier.
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.handleLogout)
	mux.HandleFunc("GET /api/scores", h.handleScores)
	mux.HandleFunc("GET /api/scores/{team}", h.handleTeamScores)
	mux.HandleFunc("GET /api/time", h.handleTime)
	mux.HandleFunc("GET /api/info", h.handleInfo)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	// Team tier. Authorization is per team name, resolved inside
	// requireTeam; open teams need no session at all.
	mux.HandleFunc("GET /api/teams/{team}/scores", h.requireTeam(h.handleTeamScores))
	mux.HandleFunc("GET /api/teams/{team}/passwords", h.requireTeam(h.handleTeamPasswords))
	mux.HandleFunc("POST /api/teams/{team}/passwords/{group}", h.requireTeam(h.handleTeamPasswordOverwrite))
	mux.HandleFunc("GET /api/teams/{team}/injects", h.requireTeam(h.handleTeamInjects))
	mux.HandleFunc("GET /api/teams/{team}/injects/{uuid}", h.requireTeam(h.handleTeamInjectDetail))
	mux.HandleFunc("POST /api/teams/{team}/injects/{uuid}", h.requireTeam(h.handleInjectUpload))

	// Admin tier.
	mux.HandleFunc("GET /api/admin/config", h.requireAdmin(h.handleAdminConfig))
	mux.HandleFunc("POST /api/admin/start", h.requireAdmin(h.handleStart))
	mux.HandleFunc("POST /api/admin/stop", h.requireAdmin(h.handleStop))
	mux.HandleFunc("POST /api/admin/reset", h.requireAdmin(h.handleReset))

	mux.HandleFunc("POST /api/admin/services", h.requireAdmin(h.handleServiceAdd))
	mux.HandleFunc("PUT /api/admin/services/{name}", h.requireAdmin(h.handleServiceEdit))
	mux.HandleFunc("DELETE /api/admin/services/{name}", h.requireAdmin(h.handleServiceDelete))
	mux.HandleFunc("GET /api/admin/services/{name}/test", h.requireAdmin(h.handleServiceTest))

	mux.HandleFunc("POST /api/admin/teams", h.requireAdmin(h.handleTeamAdd))
	mux.HandleFunc("PUT /api/admin/teams/{team}", h.requireAdmin(h.handleTeamRename))
	mux.HandleFunc("DELETE /api/admin/teams/{team}", h.requireAdmin(h.handleTeamDelete))

	mux.HandleFunc("POST /api/admin/teams/{team}/env", h.requireAdmin(h.handleEnvAdd))
	mux.HandleFunc("PUT /api/admin/teams/{team}/env/{key}", h.requireAdmin(h.handleEnvEdit))
	mux.HandleFunc("DELETE /api/admin/teams/{team}/env/{key}", h.requireAdmin(h.handleEnvDelete))

	mux.HandleFunc("GET /api/admin/teams/{team}/passwords", h.requireAdmin(h.handleAdminPasswordGroups))
	mux.HandleFunc("POST /api/admin/teams/{team}/passwords/{group}", h.requireAdmin(h.handleAdminPasswordSet))
	mux.HandleFunc("DELETE /api/admin/teams/{team}/passwords/{group}", h.requireAdmin(h.handleAdminPasswordDelete))

	mux.HandleFunc("POST /api/admin/injects", h.requireAdmin(h.handleInjectAdd))
	mux.HandleFunc("PUT /api/admin/injects/{uuid}", h.requireAdmin(h.handleInjectEdit))
	mux.HandleFunc("DELETE /api/admin/injects/{uuid}", h.requireAdmin(h.handleInjectDelete))

	mux.HandleFunc("GET /api/admin/saves", h.requireAdmin(h.handleSaveList))
	mux.HandleFunc("POST /api/admin/saves", h.requireAdmin(h.handleSaveWrite))
	mux.HandleFunc("POST /api/admin/saves/load", h.requireAdmin(h.handleSaveLoad))

	var handler http.Handler = mux
	handler = SessionMiddleware(deps.Gate)(handler)
	handler = LoggingMiddleware()(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

// requireAdmin rejects anything but an admin session.
func (h *handlers) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p == nil || !p.Admin {
			WriteError(w, http.StatusUnauthorized, "authentication_error", "admin access required")
			return
		}
		next(w, r)
	}
}

// requireTeam authorizes the request against the {team} path segment. Open
// teams admit anyone, credentialed teams only their own session or the
// admin.
func (h *handlers) requireTeam(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamName := r.PathValue("team")
		allowed, exists := h.Gate.AuthorizeTeam(PrincipalFrom(r.Context()), teamName)
		if !exists && !allowed {
			WriteError(w, http.StatusNotFound, "not_found", "no such team")
			return
		}
		if !allowed {
			WriteError(w, http.StatusUnauthorized, "authentication_error", "not your team")
			return
		}
		next(w, r)
	}
}
