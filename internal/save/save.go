// Package save persists and restores the full game state. A save is one
// JSON document holding the config aggregate plus the materialized
// password-group files, so loading a save also rewrites the password tree.
// Saves are best-effort: failures are logged and the game carries on.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/rangehq/rangeboard/internal/game"
	"github.com/rangehq/rangeboard/internal/password"
)

// AutosaveSlots is the number of rotating autosave files.
const AutosaveSlots = 12

// Errors returned by the manager.
var (
	ErrRead    = errors.New("save: read error")
	ErrWrite   = errors.New("save: write error")
	ErrParse   = errors.New("save: parse error")
	ErrBadName = errors.New("save: bad save name")
)

// namePattern restricts save names to safe path segments, with an optional
// autosave/ prefix for the rotation slots.
var namePattern = regexp.MustCompile(`^(autosave/)?[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Save is the on-disk document.
type Save struct {
	SavedAt   int64                           `json:"saved_at"`
	Config    *game.Config                    `json:"config"`
	Passwords map[string][]password.GroupSave `json:"passwords"`
}

// Info describes one save file for listings.
type Info struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// Manager reads and writes saves under <resources>/save.
type Manager struct {
	ResourceDir string
	passwords   *password.Store
}

// NewManager creates a Manager sharing the password store's resource root.
func NewManager(resourceDir string, passwords *password.Store) *Manager {
	return &Manager{ResourceDir: resourceDir, passwords: passwords}
}

func (m *Manager) saveDir() string {
	return filepath.Join(m.ResourceDir, "save")
}

func (m *Manager) savePath(name string) string {
	return filepath.Join(m.saveDir(), name+".json")
}

// ValidateFS makes sure the save directories exist.
func (m *Manager) ValidateFS() error {
	if err := os.MkdirAll(filepath.Join(m.saveDir(), "autosave"), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// Write snapshots the config and the current password tree into a named
// save. The config must be read-held by the caller; disk I/O here is why
// save writers take the read hold, never the write hold.
func (m *Manager) Write(cfg *game.Config, name string) error {
	if !namePattern.MatchString(name) {
		return ErrBadName
	}
	doc := Save{
		SavedAt:   time.Now().UnixMilli(),
		Config:    cfg,
		Passwords: m.passwords.Collect(cfg.TeamNames()),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := os.WriteFile(m.savePath(name), data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// Autosave writes to the current rotation slot. Slots cycle by wall-clock
// minute so a crash always leaves several older snapshots behind.
func (m *Manager) Autosave(cfg *game.Config) error {
	slot := time.Now().Unix() / 60 % AutosaveSlots
	return m.Write(cfg, fmt.Sprintf("autosave/autosave-%d", slot))
}

// Load parses a save without side effects.
func (m *Manager) Load(name string) (*Save, error) {
	if !namePattern.MatchString(name) {
		return nil, ErrBadName
	}
	data, err := os.ReadFile(m.savePath(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	var doc Save
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &doc, nil
}

// Restore loads a save and rewrites the password tree to match it. The
// returned config is always inactive; callers swap it into the store.
func (m *Manager) Restore(name string) (*game.Config, error) {
	doc, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	if doc.Config == nil {
		return nil, fmt.Errorf("%w: save has no config", ErrParse)
	}
	m.passwords.RestoreAll(doc.Passwords)
	return doc.Config, nil
}

// Saves lists manual saves with their timestamps.
func (m *Manager) Saves() []Info {
	return m.list(m.saveDir(), "")
}

// Autosaves lists the autosave slots with their timestamps.
func (m *Manager) Autosaves() []Info {
	return m.list(filepath.Join(m.saveDir(), "autosave"), "autosave/")
}

// list scans one directory for .json saves. Timestamps come from a cheap
// gjson peek at saved_at; unreadable files fall back to the current time,
// matching how listings behaved before timestamps were recorded.
func (m *Manager) list(dir, prefix string) []Info {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("failed to read save directory")
		return nil
	}
	var out []Info
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || entry.IsDir() {
			continue
		}
		info := Info{Name: prefix + name, Timestamp: time.Now().UnixMilli()}
		if data, err := os.ReadFile(filepath.Join(dir, entry.Name())); err == nil {
			if stamp := gjson.GetBytes(data, "saved_at"); stamp.Exists() {
				info.Timestamp = stamp.Int()
			}
		}
		out = append(out, info)
	}
	return out
}
