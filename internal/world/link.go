package world

// Link is a directed edge owned by its source Location. Dest is a handle, not
// an owning reference.
type Link struct {
	Dest      LocationID `json:"dest"`
	Distance  float64    `json:"distance"`
	Forced    bool       `json:"forced"`     // Agents at the source must take this link
	InTransit int        `json:"in_transit"` // Agents on the link this step
}

// Weight is the route-selection weight of travelling to dest over this link
// at the given awareness level. Full destinations and, when blocked, the
// agent's previous location weigh zero.
func (k *Link) Weight(dest *Location, level Awareness, softening float64, blocked LocationID) float64 {
	if blocked != NoLocation && k.Dest == blocked {
		return 0
	}
	if dest.IsFull() {
		return 0
	}
	return ScoreAt(level, dest) / (softening + k.Distance)
}
