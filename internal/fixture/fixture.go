// Package fixture loads the initial game state from the YAML files in the
// resource directory: teams.yaml, services.yaml, and injects.yaml.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/rangehq/rangeboard/internal/game"
)

// Loader reads fixtures from one resource root.
type Loader struct {
	ResourceDir  string
	TeamsFile    string
	ServicesFile string
	InjectsFile  string
}

// Load builds the initial aggregate. Teams and services are required;
// a missing injects file just means no injects.
func (l *Loader) Load() (*game.Config, error) {
	services, err := l.LoadServices()
	if err != nil {
		return nil, err
	}
	teams, err := l.LoadTeams(services)
	if err != nil {
		return nil, err
	}
	injects, err := l.LoadInjects()
	if err != nil {
		return nil, err
	}

	cfg := game.New()
	cfg.Services = services
	cfg.Teams = teams
	cfg.Injects = injects
	return cfg, nil
}

// serviceYAML accepts either a bare command string or the full form.
type serviceYAML struct {
	Command    string `yaml:"command"`
	Multiplier uint8  `yaml:"multiplier"`
}

func (s *serviceYAML) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Command)
	}
	type plain serviceYAML
	return node.Decode((*plain)(s))
}

// LoadServices parses services.yaml: a mapping of service name to either a
// shell command string or {command, multiplier}. Multiplier defaults to 1.
func (l *Loader) LoadServices() ([]game.Service, error) {
	data, err := os.ReadFile(filepath.Join(l.ResourceDir, l.ServicesFile))
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", l.ServicesFile, err)
	}
	var doc map[string]serviceYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parse %s: %w", l.ServicesFile, err)
	}
	services := make([]game.Service, 0, len(doc))
	for _, name := range sortedKeys(doc) {
		entry := doc[name]
		multiplier := entry.Multiplier
		if multiplier == 0 {
			multiplier = 1
		}
		services = append(services, game.NewService(name, entry.Command, multiplier))
	}
	return services, nil
}

// LoadTeams parses teams.yaml: a mapping of team name to env key/value
// pairs. Env pairs are ordered by key so probe environments are stable
// across restarts.
func (l *Loader) LoadTeams(services []game.Service) (map[string]*game.Team, error) {
	data, err := os.ReadFile(filepath.Join(l.ResourceDir, l.TeamsFile))
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", l.TeamsFile, err)
	}
	var doc map[string]map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parse %s: %w", l.TeamsFile, err)
	}
	teams := make(map[string]*game.Team, len(doc))
	for name, env := range doc {
		team := game.NewTeam(name, services)
		for _, key := range sortedKeys(env) {
			team.Env = append(team.Env, game.EnvVar{Key: key, Value: env[key]})
		}
		teams[name] = team
	}
	return teams, nil
}

// injectYAML is the fixture form of an inject. A missing duration makes
// the inject sticky; no_submit forces an empty extension whitelist.
type injectYAML struct {
	Markdown    string            `yaml:"markdown"`
	FileTypes   []string          `yaml:"file_types"`
	Start       uint32            `yaml:"start"`
	Duration    *uint32           `yaml:"duration"`
	SideEffects []game.SideEffect `yaml:"side_effects"`
	NoSubmit    bool              `yaml:"no_submit"`
}

// LoadInjects parses injects.yaml. The file is optional.
func (l *Loader) LoadInjects() ([]game.Inject, error) {
	data, err := os.ReadFile(filepath.Join(l.ResourceDir, l.InjectsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fixture: read %s: %w", l.InjectsFile, err)
	}
	var doc map[string]injectYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parse %s: %w", l.InjectsFile, err)
	}
	injects := make([]game.Inject, 0, len(doc))
	for _, name := range sortedKeys(doc) {
		entry := doc[name]
		for _, effect := range entry.SideEffects {
			if err := effect.Validate(); err != nil {
				return nil, fmt.Errorf("fixture: inject %q: %w", name, err)
			}
		}
		in := game.Inject{
			UUID:        uuid.New(),
			Name:        name,
			Markdown:    entry.Markdown,
			Start:       entry.Start,
			Sticky:      entry.Duration == nil,
			SideEffects: entry.SideEffects,
			FileType:    entry.FileTypes,
		}
		if entry.Duration != nil {
			in.Duration = *entry.Duration
		}
		if entry.NoSubmit {
			in.FileType = []string{}
		}
		injects = append(injects, in)
	}
	log.Info().Int("count", len(injects)).Msg("loaded injects")
	return injects, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
