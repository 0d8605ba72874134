// Package render turns inject markdown into per-team HTML. The markdown is
// first templated with the team's environment ({{KEY}} tokens), so one
// inject can name team-specific hosts or credentials, then converted with
// goldmark. Rendered fragments are cached in ristretto keyed by content,
// so edits to an inject or a team env naturally miss.
package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/yuin/goldmark"

	"github.com/rangehq/rangeboard/internal/game"
)

var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Renderer converts inject markdown to HTML with env templating.
type Renderer struct {
	md    goldmark.Markdown
	cache *ristretto.Cache[string, string]
}

// NewRenderer creates a Renderer with a small in-memory cache.
func NewRenderer() (*Renderer, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1 << 12,
		MaxCost:     1 << 22, // ~4 MiB of rendered HTML
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("render: cache: %w", err)
	}
	return &Renderer{md: goldmark.New(), cache: cache}, nil
}

// Render produces the HTML for one inject as seen by one team. Unknown
// {{KEY}} tokens are left verbatim.
func (r *Renderer) Render(in *game.Inject, team *game.Team) (string, error) {
	key := cacheKey(in, team)
	if html, ok := r.cache.Get(key); ok {
		return html, nil
	}

	templated := tokenPattern.ReplaceAllStringFunc(in.Markdown, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]
		if value, ok := team.EnvValue(name); ok {
			return value
		}
		return token
	})

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(templated), &buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	html := buf.String()
	r.cache.Set(key, html, int64(len(html)))
	return html, nil
}

// Close releases the cache.
func (r *Renderer) Close() {
	r.cache.Close()
}

// cacheKey fingerprints everything the output depends on: the inject
// identity and markdown, and the team env in order.
func cacheKey(in *game.Inject, team *game.Team) string {
	h := sha256.New()
	h.Write(in.UUID[:])
	h.Write([]byte(in.Markdown))
	for _, v := range team.Env {
		h.Write([]byte(v.Key))
		h.Write([]byte{0})
		h.Write([]byte(v.Value))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
