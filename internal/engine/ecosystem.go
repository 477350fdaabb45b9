// Package engine provides the ecosystem: the location graph, its agents and
// the per-day evolution protocol that moves them.
package engine

import (
	"fmt"
	mrand "math/rand/v2"

	"github.com/talgya/exodus/internal/agents"
	"github.com/talgya/exodus/internal/config"
	"github.com/talgya/exodus/internal/entropy"
	"github.com/talgya/exodus/internal/world"
)

// LocationSpec describes a location to add to the graph.
type LocationSpec struct {
	Name       string
	Coord      world.Coord
	MoveChance float64
	Capacity   int // -1 = unlimited
	Population int
	Foreign    bool
}

// Ecosystem holds the complete simulation state.
type Ecosystem struct {
	cfg     *config.Config
	graph   *world.Graph
	agents  []*agents.Agent
	spawner *agents.Spawner
	time    int

	// Conflict zones, their sampling weights and the move chance each had
	// before the conflict, kept parallel.
	conflicts       []world.LocationID
	conflictWeights []float64
	priorMoveChance []float64
	rng             *mrand.Rand

	arrivals []ArrivalStats
	moves    []int // Decide-phase scratch, one slot per agent
}

// NewEcosystem creates an empty ecosystem. The config must stay unchanged
// for the lifetime of the ecosystem.
func NewEcosystem(cfg *config.Config, seed uint64) (*Ecosystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ecosystem{
		cfg:     cfg,
		graph:   world.NewGraph(),
		spawner: agents.NewSpawner(seed),
		rng:     entropy.NewStream(seed, entropy.StreamConflict),
	}, nil
}

// Config returns the run configuration.
func (e *Ecosystem) Config() *config.Config { return e.cfg }

// Graph exposes the location graph for read access.
func (e *Ecosystem) Graph() *world.Graph { return e.graph }

// Time returns the number of completed steps.
func (e *Ecosystem) Time() int { return e.time }

// Agents returns all agents in insertion order.
func (e *Ecosystem) Agents() []*agents.Agent { return e.agents }

// AddLocation adds a location and returns its handle.
func (e *Ecosystem) AddLocation(spec LocationSpec) (world.LocationID, error) {
	loc := world.Location{
		Name:       spec.Name,
		Coord:      spec.Coord,
		Capacity:   spec.Capacity,
		Population: spec.Population,
		Foreign:    spec.Foreign,
	}
	loc.SetMoveChance(spec.MoveChance, e.cfg.CampThreshold)
	id, err := e.graph.Add(loc)
	if err != nil {
		return world.NoLocation, fmt.Errorf("add location: %w", err)
	}
	return id, nil
}

// LinkUp connects two named locations in both directions. Only the a→b link
// carries the forced-redirection flag.
func (e *Ecosystem) LinkUp(a, b string, distance float64, forced bool) error {
	from, err := e.graph.MustLookup(a)
	if err != nil {
		return fmt.Errorf("link %s-%s: %w", a, b, err)
	}
	to, err := e.graph.MustLookup(b)
	if err != nil {
		return fmt.Errorf("link %s-%s: %w", a, b, err)
	}
	if err := e.graph.Connect(from, to, distance, forced); err != nil {
		return fmt.Errorf("link %s-%s: %w", a, b, err)
	}
	return nil
}

// Unlink removes the links between two named locations in both directions.
// It fails when either name is unknown or no link existed.
func (e *Ecosystem) Unlink(a, b string) error {
	from, err := e.graph.MustLookup(a)
	if err != nil {
		return fmt.Errorf("unlink %s-%s: %w", a, b, err)
	}
	to, err := e.graph.MustLookup(b)
	if err != nil {
		return fmt.Errorf("unlink %s-%s: %w", a, b, err)
	}
	if e.graph.Disconnect(from, to) == 0 {
		return fmt.Errorf("unlink %s-%s: %w", a, b, ErrNoLink)
	}
	return nil
}

// InsertAgent creates an agent at the named location.
func (e *Ecosystem) InsertAgent(name string) (*agents.Agent, error) {
	id, err := e.graph.MustLookup(name)
	if err != nil {
		return nil, fmt.Errorf("insert agent: %w", err)
	}
	return e.insertAt(id), nil
}

// InsertAgents creates n agents at the named location.
func (e *Ecosystem) InsertAgents(name string, n int) ([]*agents.Agent, error) {
	id, err := e.graph.MustLookup(name)
	if err != nil {
		return nil, fmt.Errorf("insert agents: %w", err)
	}
	out := make([]*agents.Agent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, e.insertAt(id))
	}
	return out, nil
}

// InsertAgentAt creates an agent at a location handle, taking it from the
// background population when configured to.
func (e *Ecosystem) InsertAgentAt(id world.LocationID) (*agents.Agent, error) {
	if !e.graph.Contains(id) {
		return nil, fmt.Errorf("insert agent: %w: handle %d", world.ErrUnknownLocation, id)
	}
	return e.insertAt(id), nil
}

func (e *Ecosystem) insertAt(id world.LocationID) *agents.Agent {
	a := e.spawner.Spawn(id)
	loc := e.graph.At(id)
	loc.Agents++
	if e.cfg.TakeFromPopulation && loc.Population > 0 {
		loc.Population--
	}
	e.agents = append(e.agents, a)
	return a
}

// AgentCount returns the number of agents resident at the named location.
func (e *Ecosystem) AgentCount(name string) (int, error) {
	id, err := e.graph.MustLookup(name)
	if err != nil {
		return 0, err
	}
	return e.graph.At(id).Agents, nil
}

// NumAgents sums the resident agents over all locations.
func (e *Ecosystem) NumAgents() int {
	n := 0
	e.graph.Each(func(l *world.Location) { n += l.Agents })
	return n
}

// TotalAgents returns the number of agents ever inserted.
func (e *Ecosystem) TotalAgents() int {
	return len(e.agents)
}
