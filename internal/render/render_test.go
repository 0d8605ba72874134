package render

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangehq/rangeboard/internal/game"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestRenderTemplatesEnv(t *testing.T) {
	t.Parallel()

	r := testRenderer(t)
	in := &game.Inject{
		UUID:     uuid.New(),
		Name:     "audit",
		Markdown: "Audit host {{HOST}} on port {{PORT}}.",
	}
	team := &game.Team{
		Name: "alpha",
		Env: []game.EnvVar{
			{Key: "HOST", Value: "10.0.0.1"},
		},
	}

	html, err := r.Render(in, team)
	require.NoError(t, err)
	assert.Contains(t, html, "10.0.0.1")
	assert.Contains(t, html, "{{PORT}}", "unknown tokens stay verbatim")
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	r := testRenderer(t)
	in := &game.Inject{
		UUID:     uuid.New(),
		Name:     "task",
		Markdown: "# Heading\n\n- item one\n- item two",
	}
	team := &game.Team{Name: "alpha"}

	html, err := r.Render(in, team)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<li>item one</li>")
}

func TestRenderPerTeam(t *testing.T) {
	t.Parallel()

	r := testRenderer(t)
	in := &game.Inject{UUID: uuid.New(), Name: "task", Markdown: "host {{HOST}}"}
	alpha := &game.Team{Name: "alpha", Env: []game.EnvVar{{Key: "HOST", Value: "10.0.0.1"}}}
	bravo := &game.Team{Name: "bravo", Env: []game.EnvVar{{Key: "HOST", Value: "10.0.0.2"}}}

	first, err := r.Render(in, alpha)
	require.NoError(t, err)
	second, err := r.Render(in, bravo)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each team sees its own values")

	// Same inputs render identically (cache or not).
	again, err := r.Render(in, alpha)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestRenderOverrideOrder(t *testing.T) {
	t.Parallel()

	r := testRenderer(t)
	in := &game.Inject{UUID: uuid.New(), Name: "task", Markdown: "{{HOST}}"}
	team := &game.Team{Name: "alpha", Env: []game.EnvVar{
		{Key: "HOST", Value: "first"},
		{Key: "HOST", Value: "second"},
	}}

	html, err := r.Render(in, team)
	require.NoError(t, err)
	assert.Contains(t, html, "second", "the last duplicate wins, matching probe env order")
}
