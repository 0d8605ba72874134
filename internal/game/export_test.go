package game

import "time"

// SetClock pins the game clock for tests: elapsed game time and the
// running flag, with the wall anchor reset to now.
func (c *Config) SetClock(elapsed time.Duration, active bool) {
	c.gameTime = elapsed
	c.active = active
	c.lastStart = time.Now()
}
