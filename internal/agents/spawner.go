// Agent spawning: issues IDs and a private random stream per agent.
package agents

import (
	"github.com/talgya/exodus/internal/entropy"
	"github.com/talgya/exodus/internal/world"
)

// Spawner creates agents for the simulation.
type Spawner struct {
	seed   uint64
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given run seed.
func NewSpawner(seed uint64) *Spawner {
	return &Spawner{seed: seed, nextID: 1}
}

// SetNextID sets the next agent ID to be issued.
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID returns the ID the next spawned agent will receive.
func (s *Spawner) NextID() AgentID {
	return s.nextID
}

// Spawn creates an agent at home. Placement counts are the caller's concern.
// The agent's stream depends only on the run seed and its ID, so a run is
// reproducible regardless of how agents are scheduled.
func (s *Spawner) Spawn(home world.LocationID) *Agent {
	id := s.nextID
	s.nextID++
	return &Agent{
		ID:       id,
		Location: home,
		Home:     home,
		Last:     world.NoLocation,
		from:     world.NoLocation,
		link:     NoMove,
		rng:      entropy.NewStream(s.seed, uint64(id)),
	}
}
