package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Config is the authoritative game aggregate: teams, the service catalog,
// injects, and the game clock. It forms a tree (no cycles), so Clone is a
// plain deep copy. All mutations go through methods that keep the
// invariants; concurrent access is mediated by Store.
type Config struct {
	Teams    map[string]*Team
	Services []Service
	Injects  []Inject

	active    bool
	gameTime  time.Duration
	lastStart time.Time
}

// New creates an empty, running config anchored at now.
func New() *Config {
	return &Config{
		Teams:     map[string]*Team{},
		active:    true,
		lastStart: time.Now(),
	}
}

// Clone returns a deep copy of the aggregate. The scheduler mutates the
// clone freely during a tick and merges it back with SmartCombine.
func (c *Config) Clone() *Config {
	out := &Config{
		Teams:     make(map[string]*Team, len(c.Teams)),
		Services:  append([]Service(nil), c.Services...),
		Injects:   make([]Inject, 0, len(c.Injects)),
		active:    c.active,
		gameTime:  c.gameTime,
		lastStart: c.lastStart,
	}
	for name, team := range c.Teams {
		out.Teams[name] = team.clone()
	}
	for i := range c.Injects {
		out.Injects = append(out.Injects, c.Injects[i].clone())
	}
	return out
}

// TeamNames returns team names in display order.
func (c *Config) TeamNames() []string {
	names := lo.Keys(c.Teams)
	sort.Strings(names)
	return names
}

// SortedTeams returns teams in display order.
func (c *Config) SortedTeams() []*Team {
	return lo.Map(c.TeamNames(), func(name string, _ int) *Team { return c.Teams[name] })
}

// ServiceNamed looks a service up by name.
func (c *Config) ServiceNamed(name string) (*Service, bool) {
	for i := range c.Services {
		if c.Services[i].Name == name {
			return &c.Services[i], true
		}
	}
	return nil, false
}

// Game clock.

// IsActive reports whether the game clock is running. Score and inject
// ticks only fire while active.
func (c *Config) IsActive() bool { return c.active }

// RunTime is the monotonic elapsed game time.
func (c *Config) RunTime() time.Duration {
	if c.active {
		return c.gameTime + time.Since(c.lastStart)
	}
	return c.gameTime
}

// NowMinutes is the game clock in whole minutes, the unit inject windows
// are expressed in.
func (c *Config) NowMinutes() uint32 {
	return uint32(c.RunTime() / time.Minute)
}

// Start resumes the game clock. No-op when already running.
func (c *Config) Start() {
	if c.active {
		return
	}
	c.active = true
	c.lastStart = time.Now()
}

// Stop pauses the game clock, folding the elapsed interval into game time.
// No-op when already stopped.
func (c *Config) Stop() {
	if !c.active {
		return
	}
	c.gameTime += time.Since(c.lastStart)
	c.active = false
}

// ResetScores stops the game, zeroes the clock, and gives every team a
// fresh score map built from the current service catalog.
func (c *Config) ResetScores() {
	c.Stop()
	c.gameTime = 0
	for _, team := range c.Teams {
		team.ResetScores(c.Services)
	}
}

// Team mutations.

// AddTeam creates a team with defaulted scores for every current service.
func (c *Config) AddTeam(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if _, ok := c.Teams[name]; ok {
		return ErrAlreadyExists
	}
	c.Teams[name] = NewTeam(name, c.Services)
	return nil
}

// RenameTeam moves a team to a new name, keeping scores, env, and id.
func (c *Config) RenameTeam(oldName, newName string) error {
	if newName == "" {
		return ErrInvalidName
	}
	if _, ok := c.Teams[newName]; ok {
		return ErrAlreadyExists
	}
	team, ok := c.Teams[oldName]
	if !ok {
		return ErrDoesNotExist
	}
	delete(c.Teams, oldName)
	team.Name = newName
	c.Teams[newName] = team
	return nil
}

// DeleteTeam removes a team entirely.
func (c *Config) DeleteTeam(name string) error {
	if _, ok := c.Teams[name]; !ok {
		return ErrDoesNotExist
	}
	delete(c.Teams, name)
	return nil
}

// TeamWithPassword returns the team iff the credentials match. Teams
// without a TEAM_PASSWORD never match here; they are handled by the open
// access path.
func (c *Config) TeamWithPassword(name, password string) (*Team, bool) {
	team, ok := c.Teams[name]
	if !ok || !team.HasPassword() || team.Password() != password {
		return nil, false
	}
	return team, true
}

// Service mutations.

// AddService adds a valid, uniquely named service and seeds a default
// Score for it into every team.
func (c *Config) AddService(svc Service) error {
	if !svc.IsValid() {
		return ErrBadValue
	}
	if _, ok := c.ServiceNamed(svc.Name); ok {
		return ErrAlreadyExists
	}
	for _, team := range c.Teams {
		team.Scores[svc.Name] = &Score{}
	}
	c.Services = append(c.Services, svc)
	return nil
}

// RemoveService drops a service from the catalog. Team score maps keep
// their stale entry; read paths filter through the catalog and the key is
// pruned the next time scores are rebuilt.
func (c *Config) RemoveService(name string) error {
	for i := range c.Services {
		if c.Services[i].Name == name {
			c.Services = append(c.Services[:i], c.Services[i+1:]...)
			return nil
		}
	}
	return ErrDoesNotExist
}

// EditService replaces the named service. On rename, each team's
// accumulated score moves to the new name.
func (c *Config) EditService(name string, svc Service) error {
	if !svc.IsValid() {
		return ErrBadValue
	}
	if svc.Name != name {
		if _, ok := c.ServiceNamed(svc.Name); ok {
			return ErrAlreadyExists
		}
	}
	target, ok := c.ServiceNamed(name)
	if !ok {
		return ErrDoesNotExist
	}
	if svc.Name != name {
		for _, team := range c.Teams {
			score, ok := team.Scores[name]
			if !ok {
				score = &Score{}
			}
			delete(team.Scores, name)
			team.Scores[svc.Name] = score
		}
	}
	*target = svc
	return nil
}

// Env mutations.

// AddTeamEnv appends an env pair; the key must be new for the team.
// Empty values are legal, empty keys are not.
func (c *Config) AddTeamEnv(teamName, key, value string) error {
	if key == "" {
		return ErrBadValue
	}
	team, ok := c.Teams[teamName]
	if !ok {
		return ErrDoesNotExist
	}
	if lo.SomeBy(team.Env, func(v EnvVar) bool { return v.Key == key }) {
		return ErrAlreadyExists
	}
	team.Env = append(team.Env, EnvVar{Key: key, Value: value})
	return nil
}

// EditTeamEnv replaces the pair at oldKey in place, preserving order. The
// key itself may change as long as it stays unique.
func (c *Config) EditTeamEnv(teamName, oldKey, key, value string) error {
	if key == "" {
		return ErrBadValue
	}
	team, ok := c.Teams[teamName]
	if !ok {
		return ErrDoesNotExist
	}
	idx := -1
	for i := range team.Env {
		switch team.Env[i].Key {
		case oldKey:
			idx = i
		case key:
			if key != oldKey {
				return ErrAlreadyExists
			}
		}
	}
	if idx < 0 {
		return ErrDoesNotExist
	}
	team.Env[idx] = EnvVar{Key: key, Value: value}
	return nil
}

// DeleteTeamEnv removes the pair with the given key.
func (c *Config) DeleteTeamEnv(teamName, key string) error {
	team, ok := c.Teams[teamName]
	if !ok {
		return ErrDoesNotExist
	}
	for i := range team.Env {
		if team.Env[i].Key == key {
			team.Env = append(team.Env[:i], team.Env[i+1:]...)
			return nil
		}
	}
	return ErrDoesNotExist
}

// Inject mutations.

// InjectByUUID looks an inject up by uuid.
func (c *Config) InjectByUUID(id string) (*Inject, bool) {
	for i := range c.Injects {
		if c.Injects[i].UUID.String() == id {
			return &c.Injects[i], true
		}
	}
	return nil, false
}

// AddInject materializes an admin-created inject.
func (c *Config) AddInject(payload CreateInject) error {
	if payload.Name == "" {
		return ErrInvalidName
	}
	for _, e := range payload.SideEffects {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	c.Injects = append(c.Injects, payload.ToInject())
	return nil
}

// EditInject replaces the inject with the matching uuid. This is the only
// path that may set Completed on a sticky inject.
func (c *Config) EditInject(in Inject) error {
	for _, e := range in.SideEffects {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	for i := range c.Injects {
		if c.Injects[i].UUID == in.UUID {
			c.Injects[i] = in
			return nil
		}
	}
	return ErrDoesNotExist
}

// DeleteInject removes the inject with the matching uuid.
func (c *Config) DeleteInject(id string) error {
	for i := range c.Injects {
		if c.Injects[i].UUID.String() == id {
			c.Injects = append(c.Injects[:i], c.Injects[i+1:]...)
			return nil
		}
	}
	return ErrDoesNotExist
}

// InjectTick completes every non-sticky inject whose window has closed and
// then applies the collected side effects in list order. Side-effect
// failures are logged and skipped; the inject stays completed either way.
func (c *Config) InjectTick() {
	now := c.NowMinutes()
	var effects []SideEffect
	for i := range c.Injects {
		in := &c.Injects[i]
		if in.Sticky || in.Completed || !in.IsEnded(now) {
			continue
		}
		in.Completed = true
		effects = append(effects, in.SideEffects...)
		log.Info().Str("inject", in.Name).Uint32("minute", now).Msg("inject completed")
	}
	for _, e := range effects {
		if err := e.Apply(c); err != nil {
			log.Error().Err(err).Str("type", string(e.Type)).Msg("inject side effect failed")
		}
	}
}

// InjectsForTeam returns the injects a team should currently see: open
// windows, sticky injects that have started, and closed windows still
// awaiting a required response from this team.
func (c *Config) InjectsForTeam(team *Team) []Inject {
	now := c.NowMinutes()
	var out []Inject
	for i := range c.Injects {
		in := &c.Injects[i]
		switch {
		case in.IsActive(now):
			out = append(out, in.clone())
		case in.IsEnded(now) && in.ResponseRequired() && !team.HasResponse(in.UUID):
			out = append(out, in.clone())
		}
	}
	return out
}

// ApplyResult folds one probe outcome into the aggregate. Unknown team or
// service names are dropped silently: a side effect may have deleted the
// service after the probe was dispatched.
func (c *Config) ApplyResult(teamName, serviceName string, up bool) {
	team, ok := c.Teams[teamName]
	if !ok {
		return
	}
	score, ok := team.Scores[serviceName]
	if !ok {
		return
	}
	svc, ok := c.ServiceNamed(serviceName)
	if !ok {
		return
	}
	score.Record(up, svc.Multiplier)
}

// Serialization. The clock is stored as elapsed milliseconds; the wall
// anchor is re-established at load time and a loaded config always comes
// back stopped.

type configJSON struct {
	Teams    map[string]*Team `json:"teams"`
	Services []Service        `json:"services"`
	Injects  []Inject         `json:"injects"`
	Active   bool             `json:"active"`
	GameTime int64            `json:"game_time"`
}

// MarshalJSON implements json.Marshaler.
func (c *Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		Teams:    c.Teams,
		Services: c.Services,
		Injects:  c.Injects,
		Active:   c.active,
		GameTime: c.gameTime.Milliseconds(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Config) UnmarshalJSON(data []byte) error {
	var doc configJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("game: decode config: %w", err)
	}
	c.Teams = doc.Teams
	if c.Teams == nil {
		c.Teams = map[string]*Team{}
	}
	c.Services = doc.Services
	c.Injects = doc.Injects
	c.gameTime = time.Duration(doc.GameTime) * time.Millisecond
	c.active = false
	c.lastStart = time.Now()
	return nil
}
