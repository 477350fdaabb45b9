package world

import "github.com/talgya/exodus/internal/config"

// Awareness selects which score tier an agent weighs routes by.
type Awareness uint8

const (
	AwareLocal         Awareness = iota // Destination's own score
	AwareNeighbourhood                  // One hop beyond the destination
	AwareRegion                         // Two hops beyond the destination
	AwareRegionMax                      // Saturates at the region score
)

// ScoreAt maps an awareness level to the matching score of loc.
func ScoreAt(level Awareness, loc *Location) float64 {
	switch level {
	case AwareLocal:
		return loc.Scores.Local
	case AwareNeighbourhood:
		return loc.Scores.Neighbourhood
	default:
		return loc.Scores.Region
	}
}

// localScore is the location's own attractiveness.
func localScore(l *Location, cfg *config.Config) float64 {
	switch {
	case l.Foreign && cfg.PreferForeign:
		return cfg.CampWeight
	case l.Conflict && cfg.AvoidConflicts:
		return cfg.ConflictWeight
	default:
		return 1.0
	}
}

// UpdateScores recomputes all three tiers in strictly separate passes. Each
// pass completes over every location before the next begins, so a tier only
// ever reads the finished tier below it.
func (g *Graph) UpdateScores(cfg *config.Config) {
	g.UpdateLocalScores(cfg)
	g.UpdateNeighbourhoodScores()
	g.UpdateRegionScores()
}

// UpdateLocalScores runs the first pass.
func (g *Graph) UpdateLocalScores(cfg *config.Config) {
	for i := range g.locs {
		g.locs[i].Scores.Local = localScore(&g.locs[i], cfg)
	}
}

// UpdateNeighbourhoodScores runs the second pass; local scores must be current.
func (g *Graph) UpdateNeighbourhoodScores() {
	for i := range g.locs {
		l := &g.locs[i]
		l.Scores.Neighbourhood = g.propagate(l, func(d *Location) float64 { return d.Scores.Local })
	}
}

// UpdateRegionScores runs the third pass; neighbourhood scores must be current.
func (g *Graph) UpdateRegionScores() {
	for i := range g.locs {
		l := &g.locs[i]
		l.Scores.Region = g.propagate(l, func(d *Location) float64 { return d.Scores.Neighbourhood })
	}
}

// propagate is the inverse-distance weighted mean of score over l's
// destinations. Camps and dead ends keep their local score.
func (g *Graph) propagate(l *Location, score func(*Location) float64) float64 {
	if l.Camp || len(l.Links) == 0 {
		return l.Scores.Local
	}
	num, den := 0.0, 0.0
	for _, k := range l.Links {
		inv := 1.0 / k.Distance
		num += score(&g.locs[k.Dest]) * inv
		den += inv
	}
	return num / den
}
