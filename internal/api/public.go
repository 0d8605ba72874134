package api

import (
	"net"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/rangehq/rangeboard/internal/game"
	"github.com/rangehq/rangeboard/internal/version"
)

// scoreboardEntry is one team row on the public scoreboard.
type scoreboardEntry struct {
	Name     string         `json:"name"`
	Score    uint32         `json:"score"`
	Services []serviceScore `json:"services"`
}

// serviceScore is one team's standing on one service. The score value is
// omitted on the public board; only status and recent up/down results show.
type serviceScore struct {
	Name string `json:"name"`
	Up   bool   `json:"up"`
	Ups  []bool `json:"ups"`
}

type scoreboardResponse struct {
	Services []string          `json:"services"`
	Teams    []scoreboardEntry `json:"teams"`
}

func (h *handlers) handleScores(w http.ResponseWriter, r *http.Request) {
	var resp scoreboardResponse
	h.Store.View(func(cfg *game.Config) {
		resp.Services = lo.Map(cfg.Services, func(s game.Service, _ int) string { return s.Name })
		for _, team := range cfg.SortedTeams() {
			resp.Teams = append(resp.Teams, scoreboardEntry{
				Name:     team.Name,
				Score:    team.TotalScore(),
				Services: serviceScores(cfg, team),
			})
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleTeamScores(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	var entry scoreboardEntry
	found := false
	h.Store.View(func(cfg *game.Config) {
		team, ok := cfg.Teams[teamName]
		if !ok {
			return
		}
		found = true
		entry = scoreboardEntry{
			Name:     team.Name,
			Score:    team.TotalScore(),
			Services: serviceScores(cfg, team),
		}
	})
	if !found {
		WriteError(w, http.StatusNotFound, "not_found", "no such team")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// serviceScores walks the catalog, not the team's score map, so stale
// entries for deleted services never show.
func serviceScores(cfg *game.Config, team *game.Team) []serviceScore {
	out := make([]serviceScore, 0, len(cfg.Services))
	for _, svc := range cfg.Services {
		entry := serviceScore{Name: svc.Name}
		if score, ok := team.Scores[svc.Name]; ok {
			entry.Up = score.Up
			entry.Ups = score.History
		}
		out = append(out, entry)
	}
	return out
}

type timeResponse struct {
	Minutes uint32 `json:"minutes"`
	Seconds int64  `json:"seconds"`
	Active  bool   `json:"active"`
}

func (h *handlers) handleTime(w http.ResponseWriter, _ *http.Request) {
	var resp timeResponse
	h.Store.View(func(cfg *game.Config) {
		resp.Minutes = cfg.NowMinutes()
		resp.Seconds = int64(cfg.RunTime().Seconds())
		resp.Active = cfg.IsActive()
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "rangeboard",
		"version": version.Version,
	})
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	addr, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		addr = r.RemoteAddr
	}
	if !h.loginLimiter.Allow(addr) {
		WriteError(w, http.StatusTooManyRequests, "rate_limit_error",
			"too many login attempts, slow down")
		return
	}

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	principal, token, ok := h.Gate.Login(req.Username, req.Password)
	if !ok {
		zerolog.Ctx(r.Context()).Warn().Str("username", req.Username).Msg("login failed")
		WriteError(w, http.StatusUnauthorized, "authentication_error", "bad credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, principal)
}

func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		h.Gate.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
