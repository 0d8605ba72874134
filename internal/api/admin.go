package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rangehq/rangeboard/internal/game"
	"github.com/rangehq/rangeboard/internal/save"
)

func (h *handlers) handleAdminConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Snapshot())
}

// Game clock.

func (h *handlers) handleStart(w http.ResponseWriter, r *http.Request) {
	h.clockOp(w, r, "game started", (*game.Config).Start)
}

func (h *handlers) handleStop(w http.ResponseWriter, r *http.Request) {
	h.clockOp(w, r, "game stopped", (*game.Config).Stop)
}

func (h *handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	h.clockOp(w, r, "scores reset", (*game.Config).ResetScores)
}

func (h *handlers) clockOp(w http.ResponseWriter, r *http.Request, msg string, op func(*game.Config)) {
	_ = h.Store.Update(func(cfg *game.Config) error {
		op(cfg)
		return nil
	})
	zerolog.Ctx(r.Context()).Info().Msg(msg)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Services.

func (h *handlers) handleServiceAdd(w http.ResponseWriter, r *http.Request) {
	var svc game.Service
	if !decodeJSON(w, r, &svc) {
		return
	}
	h.mutate(w, func(cfg *game.Config) error { return cfg.AddService(svc) })
}

func (h *handlers) handleServiceEdit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var svc game.Service
	if !decodeJSON(w, r, &svc) {
		return
	}
	h.mutate(w, func(cfg *game.Config) error { return cfg.EditService(name, svc) })
}

func (h *handlers) handleServiceDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	h.mutate(w, func(cfg *game.Config) error { return cfg.RemoveService(name) })
}

// serviceTestResult is one team's outcome of an ad-hoc probe.
type serviceTestResult struct {
	Team   string `json:"team"`
	Up     bool   `json:"up"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Error  string `json:"error,omitempty"`
}

// handleServiceTest probes one service against every team right now,
// outside the tick cycle, so an admin can debug a check command.
func (h *handlers) handleServiceTest(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	type target struct {
		team string
		env  []string
	}
	var (
		command string
		targets []target
		found   bool
	)
	h.Store.View(func(cfg *game.Config) {
		svc, ok := cfg.ServiceNamed(name)
		if !ok {
			return
		}
		found = true
		command = svc.Command
		for _, team := range cfg.SortedTeams() {
			targets = append(targets, target{team: team.Name, env: team.EnvStrings()})
		}
	})
	if !found {
		WriteError(w, http.StatusNotFound, "not_found", "no such service")
		return
	}

	results := make([]serviceTestResult, 0, len(targets))
	for _, t := range targets {
		out, err := h.Prober.Check(r.Context(), command, t.env)
		entry := serviceTestResult{Team: t.team, Up: out.Up, Stdout: out.Stdout, Stderr: out.Stderr}
		if err != nil {
			entry.Error = err.Error()
		}
		results = append(results, entry)
	}
	writeJSON(w, http.StatusOK, results)
}

// Teams.

type teamRequest struct {
	Name string `json:"name"`
}

func (h *handlers) handleTeamAdd(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.Store.Update(func(cfg *game.Config) error { return cfg.AddTeam(req.Name) })
	if err != nil {
		WriteGameError(w, err)
		return
	}
	h.Passwords.ValidateFS(h.teamNames())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleTeamRename(w http.ResponseWriter, r *http.Request) {
	oldName := r.PathValue("team")
	var req teamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.Store.Update(func(cfg *game.Config) error { return cfg.RenameTeam(oldName, req.Name) })
	if err != nil {
		WriteGameError(w, err)
		return
	}
	h.Passwords.ValidateFS(h.teamNames())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleTeamDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("team")
	err := h.Store.Update(func(cfg *game.Config) error { return cfg.DeleteTeam(name) })
	if err != nil {
		WriteGameError(w, err)
		return
	}
	h.Passwords.ValidateFS(h.teamNames())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) teamNames() []string {
	var names []string
	h.Store.View(func(cfg *game.Config) { names = cfg.TeamNames() })
	return names
}

// Team environment.

type envRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *handlers) handleEnvAdd(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	var req envRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, func(cfg *game.Config) error {
		return cfg.AddTeamEnv(teamName, req.Key, req.Value)
	})
}

func (h *handlers) handleEnvEdit(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	oldKey := r.PathValue("key")
	var req envRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, func(cfg *game.Config) error {
		return cfg.EditTeamEnv(teamName, oldKey, req.Key, req.Value)
	})
}

func (h *handlers) handleEnvDelete(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	key := r.PathValue("key")
	h.mutate(w, func(cfg *game.Config) error {
		return cfg.DeleteTeamEnv(teamName, key)
	})
}

// Password groups. The admin path writes groups wholesale; the team path
// in team.go only merges by username.

func (h *handlers) handleAdminPasswordGroups(w http.ResponseWriter, r *http.Request) {
	h.handleTeamPasswords(w, r)
}

func (h *handlers) handleAdminPasswordSet(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	group := r.PathValue("group")
	var req passwordGroup
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Passwords.Write(teamName, group, req.Passwords); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "failed to write password group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleAdminPasswordDelete(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	group := r.PathValue("group")
	if err := h.Passwords.Remove(teamName, group); err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "no such password group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Injects.

func (h *handlers) handleInjectAdd(w http.ResponseWriter, r *http.Request) {
	var req game.CreateInject
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, func(cfg *game.Config) error { return cfg.AddInject(req) })
}

func (h *handlers) handleInjectEdit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "bad inject uuid")
		return
	}
	var req game.Inject
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UUID = id
	h.mutate(w, func(cfg *game.Config) error { return cfg.EditInject(req) })
}

func (h *handlers) handleInjectDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")
	h.mutate(w, func(cfg *game.Config) error { return cfg.DeleteInject(id) })
}

// Saves.

type saveListResponse struct {
	Saves     []save.Info `json:"saves"`
	Autosaves []save.Info `json:"autosaves"`
}

func (h *handlers) handleSaveList(w http.ResponseWriter, _ *http.Request) {
	resp := saveListResponse{Saves: h.Saves.Saves(), Autosaves: h.Saves.Autosaves()}
	if resp.Saves == nil {
		resp.Saves = []save.Info{}
	}
	if resp.Autosaves == nil {
		resp.Autosaves = []save.Info{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type saveRequest struct {
	Name string `json:"name"`
}

func (h *handlers) handleSaveWrite(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var err error
	h.Store.View(func(cfg *game.Config) {
		err = h.Saves.Write(cfg, req.Name)
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSaveLoad restores a save wholesale: config swapped in stopped,
// password tree rewritten. The admin starts the clock again explicitly.
func (h *handlers) handleSaveLoad(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cfg, err := h.Saves.Restore(req.Name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	h.Store.Replace(cfg)
	zerolog.Ctx(r.Context()).Info().Str("save", req.Name).Msg("save loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// mutate runs one config mutation and maps its error.
func (h *handlers) mutate(w http.ResponseWriter, fn func(*game.Config) error) {
	if err := h.Store.Update(fn); err != nil {
		WriteGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
