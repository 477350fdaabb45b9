// Conflict zones: marking unsafe locations and sampling where new agents
// originate, weighted by each zone's background population.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/exodus/internal/entropy"
	"github.com/talgya/exodus/internal/world"
)

var (
	ErrNoLink          = errors.New("no link between locations")
	ErrNotConflictZone = errors.New("not a conflict zone")
)

// AddConflictZone marks the named location as a conflict zone and adds it to
// the sampling set with its current population as weight. An unknown name is
// reported and leaves the conflict set unchanged.
func (e *Ecosystem) AddConflictZone(name string) error {
	id, err := e.graph.MustLookup(name)
	if err != nil {
		slog.Warn("conflict zone skipped", "location", name, "error", err)
		return fmt.Errorf("add conflict zone: %w", err)
	}

	loc := e.graph.At(id)
	if e.conflictIndex(id) < 0 {
		e.conflicts = append(e.conflicts, id)
		e.conflictWeights = append(e.conflictWeights, float64(loc.Population))
		e.priorMoveChance = append(e.priorMoveChance, loc.MoveChance)
	}
	loc.Conflict = true
	loc.SetMoveChance(e.cfg.ConflictMoveChance, e.cfg.CampThreshold)
	slog.Debug("conflict zone added", "location", name, "population", loc.Population, "step", e.time)
	return nil
}

// RemoveConflictZone lifts the conflict at the named location and restores
// the move chance it had before the conflict began. Unknown names and locations outside the conflict
// set are reported and skipped.
func (e *Ecosystem) RemoveConflictZone(name string) error {
	id, err := e.graph.MustLookup(name)
	if err != nil {
		slog.Warn("conflict zone removal skipped", "location", name, "error", err)
		return fmt.Errorf("remove conflict zone: %w", err)
	}
	i := e.conflictIndex(id)
	if i < 0 {
		slog.Warn("conflict zone removal skipped", "location", name, "error", ErrNotConflictZone)
		return fmt.Errorf("remove conflict zone %q: %w", name, ErrNotConflictZone)
	}

	loc := e.graph.At(id)
	loc.Conflict = false
	loc.SetMoveChance(e.priorMoveChance[i], e.cfg.CampThreshold)
	e.conflicts = append(e.conflicts[:i], e.conflicts[i+1:]...)
	e.conflictWeights = append(e.conflictWeights[:i], e.conflictWeights[i+1:]...)
	e.priorMoveChance = append(e.priorMoveChance[:i], e.priorMoveChance[i+1:]...)
	slog.Debug("conflict zone removed", "location", name, "step", e.time)
	return nil
}

// RefreshConflictWeights re-reads every zone's background population. Call
// it before spawning whenever populations may have changed.
func (e *Ecosystem) RefreshConflictWeights() {
	for i, id := range e.conflicts {
		e.conflictWeights[i] = float64(e.graph.At(id).Population)
	}
}

// ConflictPopulation is the summed weight of all conflict zones as of the
// last refresh.
func (e *Ecosystem) ConflictPopulation() float64 {
	total := 0.0
	for _, w := range e.conflictWeights {
		total += w
	}
	return total
}

// ConflictZones returns the names of the active conflict zones in the order
// they were added.
func (e *Ecosystem) ConflictZones() []string {
	names := make([]string, len(e.conflicts))
	for i, id := range e.conflicts {
		names[i] = e.graph.At(id).Name
	}
	return names
}

// PickConflictLocation draws a conflict zone with probability proportional
// to its weight. Zones with no recorded population are drawn uniformly. It
// reports false when there are no conflict zones.
func (e *Ecosystem) PickConflictLocation() (world.LocationID, bool) {
	if len(e.conflicts) == 0 {
		return world.NoLocation, false
	}
	i := entropy.WeightedIndex(e.rng, e.conflictWeights)
	if i < 0 {
		i = e.rng.IntN(len(e.conflicts))
	}
	return e.conflicts[i], true
}

func (e *Ecosystem) conflictIndex(id world.LocationID) int {
	for i, c := range e.conflicts {
		if c == id {
			return i
		}
	}
	return -1
}
