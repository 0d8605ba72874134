package game

import "github.com/rs/zerolog/log"

// SmartCombine merges a tick snapshot back into the authoritative config.
// The authoritative side wins on structure (teams, services, injects added
// or removed while the tick ran); the snapshot wins on score advancement
// and inject completion. This keeps the race between admin mutations and an
// in-flight probe batch benign.
//
// Rules:
//   - Scores: for every team present on both sides, snapshot values replace
//     authoritative ones, but only for service keys the authoritative team
//     already has. Teams or services that vanished mid-tick are dropped.
//   - Injects: completion propagates by uuid, and only if the inject has
//     actually ended by the authoritative clock. Unknown uuids are logged
//     and ignored.
func (c *Config) SmartCombine(other *Config) {
	for teamName, otherTeam := range other.Teams {
		team, ok := c.Teams[teamName]
		if !ok {
			continue
		}
		for serviceName, score := range otherTeam.Scores {
			if _, ok := team.Scores[serviceName]; ok {
				team.Scores[serviceName] = score.clone()
			}
		}
	}

	now := c.NowMinutes()
	for i := range other.Injects {
		snap := &other.Injects[i]
		target, ok := c.InjectByUUID(snap.UUID.String())
		if !ok {
			log.Warn().Str("inject", snap.Name).
				Msg("could not resolve inject after tick; it was probably removed during the score tick")
			continue
		}
		if snap.Completed && !target.Completed && target.IsEnded(now) {
			target.Completed = true
		}
	}
}
