package api

import (
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rangehq/rangeboard/internal/artifact"
	"github.com/rangehq/rangeboard/internal/game"
)

// maxUploadBytes bounds inject response uploads.
const maxUploadBytes = 10 << 20

// passwordGroup is one group as served to teams.
type passwordGroup struct {
	Group     string `json:"group"`
	Passwords string `json:"passwords"`
}

func (h *handlers) handleTeamPasswords(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	groups, err := h.Passwords.Groups(teamName)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "no password groups")
		return
	}
	out := make([]passwordGroup, 0, len(groups))
	for _, group := range groups {
		contents, err := h.Passwords.Read(teamName, group)
		if err != nil {
			continue
		}
		out = append(out, passwordGroup{Group: group, Passwords: contents})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTeamPasswordOverwrite lets a team rotate credentials they already
// hold. Unknown usernames in the body are ignored.
func (h *handlers) handleTeamPasswordOverwrite(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	group := r.PathValue("group")

	var req passwordGroup
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Passwords.Overwrite(teamName, group, req.Passwords); err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "no such password group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// teamInject is an inject as listed in the team workspace.
type teamInject struct {
	UUID      uuid.UUID `json:"uuid"`
	Name      string    `json:"name"`
	Start     uint32    `json:"start"`
	Duration  uint32    `json:"duration"`
	Sticky    bool      `json:"sticky"`
	Completed bool      `json:"completed"`
	FileType  []string  `json:"file_type"`
	Responded bool      `json:"responded"`
}

func (h *handlers) handleTeamInjects(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	var out []teamInject
	found := false
	h.Store.View(func(cfg *game.Config) {
		team, ok := cfg.Teams[teamName]
		if !ok {
			return
		}
		found = true
		for _, in := range cfg.InjectsForTeam(team) {
			out = append(out, teamInject{
				UUID:      in.UUID,
				Name:      in.Name,
				Start:     in.Start,
				Duration:  in.Duration,
				Sticky:    in.Sticky,
				Completed: in.Completed,
				FileType:  in.FileType,
				Responded: team.HasResponse(in.UUID),
			})
		}
	})
	if !found {
		WriteError(w, http.StatusNotFound, "not_found", "no such team")
		return
	}
	if out == nil {
		out = []teamInject{}
	}
	writeJSON(w, http.StatusOK, out)
}

// injectDetail adds the rendered body and the team's submissions.
type injectDetail struct {
	teamInject
	HTML      string                `json:"html"`
	Responses []game.InjectResponse `json:"responses"`
}

func (h *handlers) handleTeamInjectDetail(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	injectID := r.PathValue("uuid")

	var (
		detail injectDetail
		in     game.Inject
		team   game.Team
		found  bool
	)
	h.Store.View(func(cfg *game.Config) {
		t, ok := cfg.Teams[teamName]
		if !ok {
			return
		}
		target, ok := cfg.InjectByUUID(injectID)
		if !ok {
			return
		}
		// Injects whose window has not opened yet are invisible, same as
		// in the listing.
		now := cfg.NowMinutes()
		if !target.IsActive(now) && !target.IsEnded(now) {
			return
		}
		found = true
		// Copy what outlives the read hold; the renderer only needs the
		// name and env.
		team = game.Team{Name: t.Name, Env: append([]game.EnvVar(nil), t.Env...)}
		in = *target
		detail = injectDetail{
			teamInject: teamInject{
				UUID:      target.UUID,
				Name:      target.Name,
				Start:     target.Start,
				Duration:  target.Duration,
				Sticky:    target.Sticky,
				Completed: target.Completed,
				FileType:  target.FileType,
				Responded: t.HasResponse(target.UUID),
			},
			Responses: t.ResponsesFor(target.UUID),
		}
	})
	if !found {
		WriteError(w, http.StatusNotFound, "not_found", "no such inject")
		return
	}
	if detail.Responses == nil {
		detail.Responses = []game.InjectResponse{}
	}

	html, err := h.Renderer.Render(&in, &team)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("inject", in.Name).Msg("render failed")
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to render inject")
		return
	}
	detail.HTML = html
	writeJSON(w, http.StatusOK, detail)
}

// handleInjectUpload accepts one multipart file as the team's response.
// Submissions after the window closes are accepted but marked late.
func (h *handlers) handleInjectUpload(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	injectID := r.PathValue("uuid")

	var (
		in    game.Inject
		found bool
	)
	h.Store.View(func(cfg *game.Config) {
		if target, ok := cfg.InjectByUUID(injectID); ok {
			in = *target
			found = true
		}
	})
	if !found {
		WriteError(w, http.StatusNotFound, "not_found", "no such inject")
		return
	}
	if !in.ResponseRequired() {
		WriteError(w, http.StatusBadRequest, "invalid_request", "inject does not accept submissions")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		if IsBodyTooLargeError(err) {
			WriteBodyTooLargeError(w)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "missing file field")
		return
	}
	defer file.Close()

	uploadName := artifact.SafeBase(header.Filename)
	if uploadName == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "bad filename")
		return
	}
	ext := artifact.Extension(uploadName)
	if !in.AllowsExtension(ext) {
		WriteError(w, http.StatusBadRequest, "invalid_request", "file type not accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		if IsBodyTooLargeError(err) {
			WriteBodyTooLargeError(w)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "failed to read upload")
		return
	}

	late := in.Completed
	filename := in.ResponseFilename(late, ext)
	dir := filepath.Join(h.ResourceDir, "injects", teamName)
	if err := artifact.Write(dir, filename, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("team", teamName).Msg("failed to store upload")
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to store upload")
		return
	}

	response := game.InjectResponse{
		UUID:       uuid.New(),
		InjectUUID: in.UUID,
		Name:       uploadName,
		Late:       late,
		Filename:   filename,
		UploadTime: time.Now().UnixMilli(),
	}
	err = h.Store.Update(func(cfg *game.Config) error {
		team, ok := cfg.Teams[teamName]
		if !ok {
			return game.ErrDoesNotExist
		}
		team.InjectResponses = append(team.InjectResponses, response)
		return nil
	})
	if err != nil {
		WriteGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response)
}
