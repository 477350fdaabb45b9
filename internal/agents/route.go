// Route selection: the two-phase movement protocol.
// Decide is read-only over the graph so it can run concurrently across agents;
// Depart and FinishTravel mutate counts and must run in agent order.
package agents

import (
	"github.com/talgya/exodus/internal/config"
	"github.com/talgya/exodus/internal/entropy"
	"github.com/talgya/exodus/internal/world"
)

// NoMove is returned by Decide when the agent stays put.
const NoMove = -1

// Decide picks the outgoing link the agent will take this step, or NoMove.
// It only reads the graph and draws from the agent's own stream.
func Decide(a *Agent, g *world.Graph, cfg *config.Config) int {
	if a.Travelling {
		return NoMove
	}
	loc := g.At(a.Location)
	if len(loc.Links) == 0 {
		return NoMove
	}

	if a.rng.Float64() >= loc.MoveChance {
		return NoMove
	}

	// Forced redirection replaces the weighing once the agent has decided to leave.
	for i := range loc.Links {
		if loc.Links[i].Forced {
			return i
		}
	}
	return selectRoute(a, g, loc, cfg)
}

func selectRoute(a *Agent, g *world.Graph, loc *world.Location, cfg *config.Config) int {
	level := Awareness(a.StepsSinceDeparture, cfg.DynamicAwareness)
	blocked := world.NoLocation
	if !cfg.AllowTurnBack {
		blocked = a.Last
	}

	weights := make([]float64, len(loc.Links))
	total := 0.0
	for i := range loc.Links {
		k := &loc.Links[i]
		weights[i] = k.Weight(g.At(k.Dest), level, cfg.Softening, blocked)
		total += weights[i]
	}
	// All zero: weigh the admissible links uniformly. The way back is allowed
	// again as a last resort; full destinations stay closed, and if every
	// destination is full WeightedIndex yields NoMove.
	if total <= 0 {
		for i := range loc.Links {
			weights[i] = 0
			if !g.At(loc.Links[i].Dest).IsFull() {
				weights[i] = 1
			}
		}
	}

	return entropy.WeightedIndex(a.rng, weights)
}

// Depart applies a decision. On a move the agent leaves its location, is
// placed in transit towards the destination and counted as incoming there.
// The departure clock advances whether or not the agent moved.
func Depart(a *Agent, g *world.Graph, link int) {
	a.StepsSinceDeparture++
	if link == NoMove {
		return
	}

	src := g.At(a.Location)
	k := &src.Links[link]
	src.Agents--
	k.InTransit++
	g.At(k.Dest).Incoming++

	a.from = a.Location
	a.link = link
	a.Location = k.Dest
	a.Distance += k.Distance
	a.Travelling = true
}

// FinishTravel settles an agent in transit at its destination. It reports the
// completed journey and whether the agent was travelling at all.
func FinishTravel(a *Agent, g *world.Graph, cfg *config.Config) (world.Journey, bool) {
	if !a.Travelling {
		return world.Journey{}, false
	}

	g.At(a.from).Links[a.link].InTransit--
	dst := g.At(a.Location)
	dst.Incoming--
	dst.Agents++

	if !cfg.AllowTurnBack {
		a.Last = a.from
	}
	a.Travelling = false
	a.from = world.NoLocation
	a.link = NoMove

	j := world.Journey{Steps: a.StepsSinceDeparture, Distance: a.Distance}
	if cfg.LogArrivals {
		dst.Journeys = append(dst.Journeys, j)
	}
	return j, true
}
