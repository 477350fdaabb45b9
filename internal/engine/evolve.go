// Evolve: one simulated day.
//
// The step runs in barrier-separated phases:
//
//  1. Scores - local, neighbourhood and region scores are recomputed for every
//     location, each pass finishing before the next starts.
//  2. Decide - every agent picks a link from the same snapshot. This phase
//     only reads the graph, so it may run across several workers.
//  3. Depart - decisions are applied in agent order.
//  4. Finish - agents in transit settle at their destinations.
//  5. Bookkeeping - arrival statistics and the step counter.
package engine

import (
	"log/slog"
	"math"
	"sync"

	"github.com/talgya/exodus/internal/agents"
	"github.com/talgya/exodus/internal/world"
)

// ArrivalStats summarises the journeys completed during one step.
type ArrivalStats struct {
	Step           int            `json:"step"`
	Arrivals       int            `json:"arrivals"`
	AvgTravelSteps float64        `json:"avg_travel_steps"`
	AvgDistance    float64        `json:"avg_distance"`
	AvgTravelDays  float64        `json:"avg_travel_days"` // Distance at minimum move speed
	ByLocation     map[string]int `json:"by_location"`
}

// Evolve advances the simulation by one step.
func (e *Ecosystem) Evolve() {
	e.graph.UpdateScores(e.cfg)
	e.graph.SnapshotOccupancy()

	moves := e.decide()
	departed := 0
	for i, a := range e.agents {
		if moves[i] != agents.NoMove {
			departed++
		}
		agents.Depart(a, e.graph, moves[i])
	}

	arrived := 0
	for _, a := range e.agents {
		if _, ok := agents.FinishTravel(a, e.graph, e.cfg); ok {
			arrived++
		}
	}

	if e.cfg.LogArrivals {
		e.arrivals = append(e.arrivals, e.collectArrivals())
	}

	slog.Debug("step complete", "step", e.time, "agents", len(e.agents), "departed", departed, "arrived", arrived)
	e.time++
}

// decide fills the scratch move slice. Each agent draws only from its own
// stream, so splitting the agents across workers gives the same result as a
// single pass.
func (e *Ecosystem) decide() []int {
	n := len(e.agents)
	if cap(e.moves) < n {
		e.moves = make([]int, n)
	}
	moves := e.moves[:n]

	workers := e.cfg.Workers
	if workers <= 1 || n < 2*workers {
		for i, a := range e.agents {
			moves[i] = agents.Decide(a, e.graph, e.cfg)
		}
		return moves
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				moves[i] = agents.Decide(e.agents[i], e.graph, e.cfg)
			}
		}()
	}
	wg.Wait()
	return moves
}

// collectArrivals aggregates and clears the per-location journey logs.
func (e *Ecosystem) collectArrivals() ArrivalStats {
	stats := ArrivalStats{Step: e.time, ByLocation: make(map[string]int)}
	steps, dist, days := 0, 0.0, 0.0
	e.graph.Each(func(l *world.Location) {
		if len(l.Journeys) == 0 {
			return
		}
		stats.ByLocation[l.Name] = len(l.Journeys)
		for _, j := range l.Journeys {
			stats.Arrivals++
			steps += j.Steps
			dist += j.Distance
			days += math.Max(1, math.Ceil(j.Distance/e.cfg.MinMoveSpeed))
		}
		l.Journeys = l.Journeys[:0]
	})
	if stats.Arrivals > 0 {
		n := float64(stats.Arrivals)
		stats.AvgTravelSteps = float64(steps) / n
		stats.AvgDistance = dist / n
		stats.AvgTravelDays = days / n
	}
	return stats
}

// Arrivals returns the per-step arrival history. Empty unless arrival
// logging is enabled.
func (e *Ecosystem) Arrivals() []ArrivalStats {
	return e.arrivals
}

// LocationCount is one location's resident agent count.
type LocationCount struct {
	Name       string `json:"name"`
	Agents     int    `json:"agents"`
	Population int    `json:"population"`
	Conflict   bool   `json:"conflict"`
}

// StepSnapshot is the state reported after a step.
type StepSnapshot struct {
	Step      int             `json:"step"` // Steps completed
	Total     int             `json:"total"`
	Locations []LocationCount `json:"locations"`
	Arrivals  *ArrivalStats   `json:"arrivals,omitempty"`
}

// Snapshot reports per-location agent counts and the latest arrival stats.
func (e *Ecosystem) Snapshot() StepSnapshot {
	snap := StepSnapshot{
		Step:      e.time,
		Total:     len(e.agents),
		Locations: make([]LocationCount, 0, e.graph.Len()),
	}
	e.graph.Each(func(l *world.Location) {
		snap.Locations = append(snap.Locations, LocationCount{
			Name:       l.Name,
			Agents:     l.Agents,
			Population: l.Population,
			Conflict:   l.Conflict,
		})
	})
	if n := len(e.arrivals); n > 0 && e.arrivals[n-1].Step == e.time-1 {
		last := e.arrivals[n-1]
		snap.Arrivals = &last
	}
	return snap
}
