// Package capability defines the port for the external team capability
// registry consumed by the rebalancer's scorer.
package capability

import "context"

// Registry exposes per-team skill vectors. Optional: a nil registry
// degrades to uniform scoring (first-available team selection).
type Registry interface {
	// TeamCapability returns the skill vector for a team, keyed by skill
	// name with values in [0, 1].
	TeamCapability(ctx context.Context, teamID string) (map[string]float64, error)
}
