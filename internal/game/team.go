package game

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// PasswordEnvKey is the env key holding a team's login secret. A team
// without it can be accessed without credentials.
const PasswordEnvKey = "TEAM_PASSWORD"

// historyCap bounds the per-service uptime history kept for the scoreboard.
const historyCap = 10

// Score tracks one team's standing on one service.
type Score struct {
	Score uint32 `json:"score"`
	Up    bool   `json:"up"`
	// History holds recent probe outcomes, newest first, at most
	// historyCap entries.
	History []bool `json:"history"`
}

// Record folds one probe outcome into the score. An up result adds the
// service multiplier.
func (s *Score) Record(up bool, multiplier uint8) {
	s.Up = up
	if up {
		s.Score += uint32(multiplier)
	}
	s.History = append([]bool{up}, s.History...)
	if len(s.History) > historyCap {
		s.History = s.History[:historyCap]
	}
}

func (s *Score) clone() *Score {
	out := *s
	out.History = append([]bool(nil), s.History...)
	return &out
}

// EnvVar is one entry of a team's ordered environment. Order matters:
// probe processes receive the pairs in list order, and later duplicates
// override earlier ones.
type EnvVar struct {
	Key   string `json:"key"   yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Team is one competing team: its service scores, probe environment, and
// submitted inject responses.
type Team struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Scores          map[string]*Score `json:"scores"`
	Env             []EnvVar          `json:"env"`
	InjectResponses []InjectResponse  `json:"inject_responses"`
}

// NewTeam creates a team with a fresh id and a default Score for every
// given service.
func NewTeam(name string, services []Service) *Team {
	scores := make(map[string]*Score, len(services))
	for _, s := range services {
		scores[s.Name] = &Score{}
	}
	return &Team{
		ID:     uuid.New(),
		Name:   name,
		Scores: scores,
		Env:    []EnvVar{},
	}
}

// TotalScore sums the team's per-service scores. Stale entries for deleted
// services still count until a reset rebuilds the map; read paths that
// display per-service data filter through the services list instead.
func (t *Team) TotalScore() uint32 {
	return lo.SumBy(lo.Values(t.Scores), func(s *Score) uint32 { return s.Score })
}

// EnvValue returns the last value set for key, honoring the override order.
func (t *Team) EnvValue(key string) (string, bool) {
	for i := len(t.Env) - 1; i >= 0; i-- {
		if t.Env[i].Key == key {
			return t.Env[i].Value, true
		}
	}
	return "", false
}

// EnvStrings renders the environment as KEY=VALUE pairs in order, the form
// os/exec consumes. Duplicate keys are allowed here; exec uses the last.
func (t *Team) EnvStrings() []string {
	return lo.Map(t.Env, func(v EnvVar, _ int) string { return v.Key + "=" + v.Value })
}

// HasPassword reports whether the team has a login secret configured.
func (t *Team) HasPassword() bool {
	_, ok := t.EnvValue(PasswordEnvKey)
	return ok
}

// Password returns the team's login secret, empty if none is set.
func (t *Team) Password() string {
	v, _ := t.EnvValue(PasswordEnvKey)
	return v
}

// HasResponse reports whether the team submitted anything for the inject.
func (t *Team) HasResponse(injectUUID uuid.UUID) bool {
	return lo.SomeBy(t.InjectResponses, func(r InjectResponse) bool {
		return r.InjectUUID == injectUUID
	})
}

// ResponsesFor returns the team's submissions for one inject.
func (t *Team) ResponsesFor(injectUUID uuid.UUID) []InjectResponse {
	return lo.Filter(t.InjectResponses, func(r InjectResponse, _ int) bool {
		return r.InjectUUID == injectUUID
	})
}

// ResetScores replaces the score map with defaults for the given services,
// pruning any stale keys.
func (t *Team) ResetScores(services []Service) {
	scores := make(map[string]*Score, len(services))
	for _, s := range services {
		scores[s.Name] = &Score{}
	}
	t.Scores = scores
}

func (t *Team) clone() *Team {
	out := *t
	out.Scores = make(map[string]*Score, len(t.Scores))
	for name, s := range t.Scores {
		out.Scores[name] = s.clone()
	}
	out.Env = append([]EnvVar(nil), t.Env...)
	out.InjectResponses = append([]InjectResponse(nil), t.InjectResponses...)
	return &out
}
