// Package world provides the location graph: locations, the directed links
// between them, and the attractiveness scores agents weigh routes by.
package world

// LocationID is a handle into the Graph's location arena.
type LocationID int32

// NoLocation marks an unset location reference.
const NoLocation LocationID = -1

// Coord is a geographic position. The core does not interpret it; links carry
// their own distances.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scores holds the three attractiveness tiers, recomputed every step.
type Scores struct {
	Local         float64 `json:"local"`
	Neighbourhood float64 `json:"neighbourhood"`
	Region        float64 `json:"region"`
}

// Journey describes one completed link traversal, recorded on arrival when
// arrival logging is enabled.
type Journey struct {
	Steps    int     `json:"steps"`    // Steps since departure from home
	Distance float64 `json:"distance"` // Cumulative distance travelled
}

// Location is a node in the graph.
type Location struct {
	ID    LocationID `json:"id"`
	Name  string     `json:"name"`
	Coord Coord      `json:"coord"`

	MoveChance float64 `json:"move_chance"` // Probability a resident tries to leave this step
	Capacity   int     `json:"capacity"`    // -1 = unlimited
	Population int     `json:"population"`  // Background (non-agent) population

	Foreign  bool `json:"foreign"`
	Conflict bool `json:"conflict"`
	Camp     bool `json:"camp"` // Derived from MoveChance

	Agents   int `json:"agents"`   // Resident agents
	Incoming int `json:"incoming"` // Departed towards here this step, not yet arrived

	Scores Scores `json:"scores"`
	Links  []Link `json:"links"`

	// Journeys completed here during the current step.
	Journeys []Journey `json:"-"`

	occupancy int // Agents at the start of the current step
}

// SetMoveChance updates the move chance and re-derives the camp flag.
func (l *Location) SetMoveChance(p, campThreshold float64) {
	l.MoveChance = p
	l.Camp = p < campThreshold
}

// IsFull reports whether the location admits no further agents this step.
// Unlimited capacity is never full.
func (l *Location) IsFull() bool {
	return l.Capacity >= 0 && l.occupancy >= l.Capacity
}

// Occupancy returns the agent count frozen at the start of the current step.
func (l *Location) Occupancy() int {
	return l.occupancy
}

// LinkIndex returns the index of the link to dest, or -1.
func (l *Location) LinkIndex(dest LocationID) int {
	for i := range l.Links {
		if l.Links[i].Dest == dest {
			return i
		}
	}
	return -1
}

// RemoveLink drops the outgoing link to dest. Only the matching edge is
// removed; it reports whether one existed.
func (l *Location) RemoveLink(dest LocationID) bool {
	i := l.LinkIndex(dest)
	if i < 0 {
		return false
	}
	l.Links = append(l.Links[:i], l.Links[i+1:]...)
	return true
}
