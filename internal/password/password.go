// Package password manages the per-team password-group files handed out to
// blue teams during the exercise. Groups live at
// <resources>/PW/<team>/<group>.pw as newline-separated user:pass entries;
// both fields are restricted to a fixed safe charset.
package password

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Errors returned by the store.
var (
	ErrInvalidFile = errors.New("password: invalid file")
	ErrParse       = errors.New("password: parse error")
)

var fieldPattern = regexp.MustCompile(`^[a-zA-Z0-9!@#?%&]+$`)

// UserPass is one credential line.
type UserPass struct {
	Username string
	Password string
}

// String renders the on-disk user:pass form.
func (u UserPass) String() string {
	return u.Username + ":" + u.Password
}

// ParseUserPass parses a user:pass entry, enforcing the charset on both
// fields.
func ParseUserPass(s string) (UserPass, error) {
	username, pass, ok := strings.Cut(s, ":")
	if !ok || username == "" || pass == "" {
		return UserPass{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	if !fieldPattern.MatchString(username) || !fieldPattern.MatchString(pass) {
		return UserPass{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	return UserPass{Username: username, Password: pass}, nil
}

// GroupSave is the serialized form of one password group, as embedded in
// game snapshots.
type GroupSave struct {
	Group     string `json:"group"`
	Passwords string `json:"passwords"`
}

// Store reads and writes password groups under one resource root.
type Store struct {
	ResourceDir string
}

// NewStore creates a Store rooted at resourceDir.
func NewStore(resourceDir string) *Store {
	return &Store{ResourceDir: resourceDir}
}

func (s *Store) dir() string {
	return filepath.Join(s.ResourceDir, "PW")
}

func (s *Store) teamDir(team string) string {
	return filepath.Join(s.dir(), team)
}

func (s *Store) groupPath(team, group string) string {
	return filepath.Join(s.teamDir(team), group+".pw")
}

// Groups lists the group names of one team.
func (s *Store) Groups(team string) ([]string, error) {
	entries, err := os.ReadDir(s.teamDir(team))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	groups := make([]string, 0, len(entries))
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".pw"); ok && !entry.IsDir() {
			groups = append(groups, name)
		}
	}
	return groups, nil
}

// Read returns the raw contents of one group file.
func (s *Store) Read(team, group string) (string, error) {
	data, err := os.ReadFile(s.groupPath(team, group))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return string(data), nil
}

// Write parses and rewrites a group, silently dropping invalid entries.
// Parsing before writing keeps the on-disk files canonical even when the
// input came straight from a textarea.
func (s *Store) Write(team, group, passwords string) error {
	contents := renderPasswords(parsePasswords(passwords))
	if err := os.WriteFile(s.groupPath(team, group), []byte(contents), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return nil
}

// Overwrite merges new entries into an existing group by username. Entries
// for unknown usernames are ignored; this is the team-facing path where
// teams may only rotate credentials they already hold.
func (s *Store) Overwrite(team, group, passwords string) error {
	existing, err := s.Read(team, group)
	if err != nil {
		return err
	}
	old := parsePasswords(existing)
	for _, p := range parsePasswords(passwords) {
		for i := range old {
			if old[i].Username == p.Username {
				old[i] = p
			}
		}
	}
	if err := os.WriteFile(s.groupPath(team, group), []byte(renderPasswords(old)), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return nil
}

// Remove deletes one group file.
func (s *Store) Remove(team, group string) error {
	if err := os.Remove(s.groupPath(team, group)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return nil
}

// Collect materializes every team's groups for a snapshot. Teams without a
// password directory contribute nothing.
func (s *Store) Collect(teamNames []string) map[string][]GroupSave {
	out := make(map[string][]GroupSave, len(teamNames))
	for _, team := range teamNames {
		groups, err := s.Groups(team)
		if err != nil {
			continue
		}
		saves := make([]GroupSave, 0, len(groups))
		for _, group := range groups {
			contents, err := s.Read(team, group)
			if err != nil {
				continue
			}
			saves = append(saves, GroupSave{Group: group, Passwords: contents})
		}
		out[team] = saves
	}
	return out
}

// RestoreAll clears the password tree and rewrites it from a snapshot.
func (s *Store) RestoreAll(saves map[string][]GroupSave) {
	if err := os.RemoveAll(s.dir()); err != nil {
		log.Error().Err(err).Str("dir", s.dir()).Msg("failed to clear password directory")
	}
	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		log.Error().Err(err).Str("dir", s.dir()).Msg("failed to create password directory")
		return
	}
	for team, groups := range saves {
		if err := os.MkdirAll(s.teamDir(team), 0o755); err != nil {
			log.Error().Err(err).Str("team", team).Msg("failed to create team password directory")
			continue
		}
		for _, group := range groups {
			if err := s.Write(team, group.Group, group.Passwords); err != nil {
				log.Error().Err(err).Str("team", team).Str("group", group.Group).
					Msg("failed to restore password group")
			}
		}
	}
}

// ValidateFS reconciles the password tree with the team list: every team
// gets a directory, and directories of unknown teams are removed.
func (s *Store) ValidateFS(teamNames []string) {
	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		log.Error().Err(err).Str("dir", s.dir()).Msg("failed to create password directory")
		return
	}
	known := make(map[string]bool, len(teamNames))
	for _, team := range teamNames {
		known[team] = true
		if err := os.MkdirAll(s.teamDir(team), 0o755); err != nil {
			log.Error().Err(err).Str("team", team).Msg("failed to create team password directory")
		}
	}
	entries, err := os.ReadDir(s.dir())
	if err != nil {
		log.Error().Err(err).Str("dir", s.dir()).Msg("failed to read password directory")
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(s.teamDir(entry.Name())); err != nil {
			log.Error().Err(err).Str("team", entry.Name()).Msg("failed to remove stale password directory")
		} else {
			log.Info().Str("team", entry.Name()).Msg("removed password directory of nonexistent team")
		}
	}
}

// parsePasswords splits on whitespace and keeps only valid entries.
func parsePasswords(s string) []UserPass {
	var out []UserPass
	for _, field := range strings.Fields(s) {
		if p, err := ParseUserPass(field); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func renderPasswords(passwords []UserPass) string {
	var b strings.Builder
	for _, p := range passwords {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return b.String()
}
