package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestLoginLimiter(t *testing.T) {
	t.Parallel()

	l := NewLoginLimiter(rate.Limit(0.001), 3)

	for i := range 3 {
		assert.True(t, l.Allow("10.0.0.1"), "attempt %d within burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")

	// Limits are tracked per address.
	assert.True(t, l.Allow("10.0.0.2"))
}
