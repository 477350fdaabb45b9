// Package agents provides the displaced-person agent and its per-step route
// selection over the location graph.
package agents

import (
	mrand "math/rand/v2"

	"github.com/talgya/exodus/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// Agent is one simulated displaced person.
type Agent struct {
	ID AgentID `json:"id"`

	// Location
	Location world.LocationID `json:"location"` // Destination while travelling
	Home     world.LocationID `json:"home"`
	Last     world.LocationID `json:"last"` // Tracked only when turn-back is disallowed

	// Travel state
	Travelling          bool             `json:"travelling"`
	StepsSinceDeparture int              `json:"steps_since_departure"`
	Distance            float64          `json:"distance"` // Cumulative distance travelled
	from                world.LocationID // Source of the link in transit
	link                int              // Index into the source's links, -1 when idle

	rng *mrand.Rand
}

// Float64 draws from the agent's own random stream.
func (a *Agent) Float64() float64 {
	return a.rng.Float64()
}

// Awareness returns which score tier the agent weighs routes by. With dynamic
// awareness the agent sees further the longer it has been on the road.
func Awareness(steps int, dynamic bool) world.Awareness {
	if !dynamic {
		return world.AwareNeighbourhood
	}
	switch {
	case steps <= 0:
		return world.AwareLocal
	case steps == 1:
		return world.AwareNeighbourhood
	case steps <= 3:
		return world.AwareRegion
	default:
		return world.AwareRegionMax
	}
}
