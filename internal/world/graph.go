package world

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateLocation = errors.New("duplicate location")
	ErrUnknownLocation   = errors.New("unknown location")
	ErrInvalidDistance   = errors.New("invalid link distance")
)

// Graph stores locations contiguously; links refer to them by LocationID.
// Pointers returned by At are invalidated by Add.
type Graph struct {
	locs  []Location
	index map[string]LocationID
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]LocationID)}
}

// Add appends a location and returns its handle. Names must be unique.
func (g *Graph) Add(loc Location) (LocationID, error) {
	if _, ok := g.index[loc.Name]; ok {
		return NoLocation, fmt.Errorf("%w: %q", ErrDuplicateLocation, loc.Name)
	}
	id := LocationID(len(g.locs))
	loc.ID = id
	loc.occupancy = loc.Agents
	g.locs = append(g.locs, loc)
	g.index[loc.Name] = id
	return id, nil
}

// Lookup resolves a name to its handle.
func (g *Graph) Lookup(name string) (LocationID, bool) {
	id, ok := g.index[name]
	return id, ok
}

// MustLookup resolves a name or returns ErrUnknownLocation.
func (g *Graph) MustLookup(name string) (LocationID, error) {
	id, ok := g.index[name]
	if !ok {
		return NoLocation, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}
	return id, nil
}

// At returns the location for a handle.
func (g *Graph) At(id LocationID) *Location {
	return &g.locs[id]
}

// Len returns the number of locations.
func (g *Graph) Len() int {
	return len(g.locs)
}

// Each visits locations in insertion order.
func (g *Graph) Each(fn func(*Location)) {
	for i := range g.locs {
		fn(&g.locs[i])
	}
}

// Connect adds a link a→b and its reverse b→a with the same distance. Only
// the a→b link carries the forced flag.
func (g *Graph) Connect(a, b LocationID, distance float64, forced bool) error {
	if !g.Contains(a) || !g.Contains(b) {
		return fmt.Errorf("%w: connect %d-%d", ErrUnknownLocation, a, b)
	}
	if !(distance > 0) {
		return fmt.Errorf("%w: %v between %q and %q", ErrInvalidDistance, distance, g.locs[a].Name, g.locs[b].Name)
	}
	g.locs[a].Links = append(g.locs[a].Links, Link{Dest: b, Distance: distance, Forced: forced})
	g.locs[b].Links = append(g.locs[b].Links, Link{Dest: a, Distance: distance})
	return nil
}

// Disconnect removes the links a→b and b→a and returns how many were removed.
func (g *Graph) Disconnect(a, b LocationID) int {
	if !g.Contains(a) || !g.Contains(b) {
		return 0
	}
	n := 0
	if g.locs[a].RemoveLink(b) {
		n++
	}
	if g.locs[b].RemoveLink(a) {
		n++
	}
	return n
}

// SnapshotOccupancy freezes each location's agent count. Fullness checks
// during the step read this snapshot so that decisions do not depend on the
// order agents are processed in.
func (g *Graph) SnapshotOccupancy() {
	for i := range g.locs {
		g.locs[i].occupancy = g.locs[i].Agents
	}
}

// Contains reports whether id is a handle into this graph.
func (g *Graph) Contains(id LocationID) bool {
	return id >= 0 && int(id) < len(g.locs)
}
