package scenario

import "math"

// hexCoord is a position on a hex grid in axial coordinates. The third cube
// coordinate is s = -q - r.
type hexCoord struct {
	Q, R int
}

func (h hexCoord) s() int { return -h.Q - h.R }

// hexDirections are the six neighbour offsets. The first three cover each
// undirected edge exactly once when walked from every hex.
var hexDirections = [6]hexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

func (h hexCoord) add(d hexCoord) hexCoord {
	return hexCoord{Q: h.Q + d.Q, R: h.R + d.R}
}

// cartesian maps axial coordinates onto the plane with unit spacing between
// neighbouring centres.
func (h hexCoord) cartesian() (x, y float64) {
	return float64(h.Q) + float64(h.R)*0.5, float64(h.R) * math.Sqrt(3.0) / 2.0
}

// hexDistance is the number of steps between two hexes.
func hexDistance(a, b hexCoord) int {
	return max(abs(a.Q-b.Q), abs(a.R-b.R), abs(a.s()-b.s()))
}

// hexRegion lists every hex within radius of the origin in a fixed order.
func hexRegion(radius int) []hexCoord {
	var out []hexCoord
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			h := hexCoord{Q: q, R: r}
			if hexDistance(hexCoord{}, h) <= radius {
				out = append(out, h)
			}
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
