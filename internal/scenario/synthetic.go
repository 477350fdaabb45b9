// Synthetic regions: a hex grid of towns with noise-driven populations,
// foreign border crossings on the outer ring and conflict in the most
// populous interior towns.
package scenario

import (
	"fmt"
	"math"
	mrand "math/rand/v2"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/exodus/internal/entropy"
)

// SynthConfig holds synthetic region parameters.
type SynthConfig struct {
	Radius         int     // Hex rings around the centre; the outer ring is foreign
	Seed           int64
	HexKm          float64 // Distance between neighbouring towns over flat ground
	MeanPopulation int
	Conflicts      int // Initial conflict zones
	CampCapacity   int // -1 = unlimited
	SpawnPerDay    int
}

// DefaultSynthConfig returns a small region suitable for quick runs.
func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		Radius:         4,
		Seed:           42,
		HexKm:          60,
		MeanPopulation: 20000,
		Conflicts:      2,
		CampCapacity:   5000,
		SpawnPerDay:    100,
	}
}

// Synthetic generates a scenario from layered simplex noise. The same config
// always produces the same scenario.
func Synthetic(cfg SynthConfig) (*File, error) {
	if cfg.Radius < 1 {
		return nil, fmt.Errorf("%w: synthetic radius %d", ErrInvalid, cfg.Radius)
	}
	if cfg.HexKm <= 0 {
		return nil, fmt.Errorf("%w: synthetic hex spacing %v", ErrInvalid, cfg.HexKm)
	}
	hexes := hexRegion(cfg.Radius)
	interior := len(hexes) - 6*cfg.Radius
	if cfg.Conflicts < 0 || cfg.Conflicts > interior {
		return nil, fmt.Errorf("%w: %d conflicts for %d interior towns", ErrInvalid, cfg.Conflicts, interior)
	}

	// Independent layers for settlement density, border crossings and terrain.
	popNoise := opensimplex.NewNormalized(cfg.Seed)
	crossNoise := opensimplex.NewNormalized(cfg.Seed + 1)
	roughNoise := opensimplex.NewNormalized(cfg.Seed + 2)

	rng := entropy.NewStream(uint64(cfg.Seed), entropy.StreamScenario)
	names := generateNames(rng, len(hexes))

	f := &File{Name: fmt.Sprintf("synthetic-r%d-s%d", cfg.Radius, cfg.Seed)}
	index := make(map[hexCoord]int, len(hexes))
	camps := 0
	bestCrossing, bestCrossingScore := -1, -1.0

	for i, h := range hexes {
		index[h] = i
		x, y := h.cartesian()
		def := LocationDef{Name: names[i], X: x * cfg.HexKm, Y: y * cfg.HexKm}

		if hexDistance(hexCoord{}, h) == cfg.Radius {
			def.Foreign = true
			crossing := octaveNoise(crossNoise, x, y, 2, 0.2, 0.5)
			if crossing > 0.5 {
				def.Camp = true
				camps++
			}
			if crossing > bestCrossingScore {
				bestCrossing, bestCrossingScore = i, crossing
			}
		} else {
			density := octaveNoise(popNoise, x, y, 3, 0.15, 0.5)
			def.Population = int(math.Round(density * 2 * float64(cfg.MeanPopulation)))
		}
		f.Locations = append(f.Locations, def)
	}
	if camps == 0 {
		f.Locations[bestCrossing].Camp = true
	}
	if cfg.CampCapacity >= 0 {
		for i := range f.Locations {
			if f.Locations[i].Camp {
				c := cfg.CampCapacity
				f.Locations[i].Capacity = &c
			}
		}
	}

	for _, h := range hexes {
		for _, d := range hexDirections[:3] {
			n := h.add(d)
			j, ok := index[n]
			if !ok {
				continue
			}
			// Rough ground between the two towns lengthens the road.
			ax, ay := h.cartesian()
			bx, by := n.cartesian()
			rough := octaveNoise(roughNoise, (ax+bx)/2, (ay+by)/2, 3, 0.1, 0.5)
			dist := math.Round(cfg.HexKm*(0.75+rough)*10) / 10
			f.Links = append(f.Links, LinkDef{
				From:     f.Locations[index[h]].Name,
				To:       f.Locations[j].Name,
				Distance: dist,
			})
		}
	}

	// Conflict breaks out in the most populous interior towns.
	var candidates []int
	for i, l := range f.Locations {
		if !l.Foreign {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return f.Locations[candidates[a]].Population > f.Locations[candidates[b]].Population
	})
	for _, i := range candidates[:cfg.Conflicts] {
		f.Conflicts = append(f.Conflicts, ConflictEvent{Day: 0, Location: f.Locations[i].Name, Action: ActionAdd})
	}
	f.Spawn.PerDay = cfg.SpawnPerDay

	return f, f.Validate()
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// generateNames produces distinct town names by combining syllables.
func generateNames(rng *mrand.Rand, count int) []string {
	prefixes := []string{
		"Al", "Bir", "Dar", "Kas", "Mar", "Nab", "Qal", "Ras", "Sal",
		"Tal", "Umm", "Wad", "Zar", "Bey", "Jis", "Kaf", "Hal", "Ain",
	}
	suffixes := []string{
		"abad", "ana", "dah", "eira", "iya", "kan", "lou", "mar", "neh",
		"oum", "rah", "sir", "tin", "uba", "zan", "ghar", "hin", "ma",
	}

	used := make(map[string]bool, count)
	names := make([]string, 0, count)
	for len(names) < count {
		base := prefixes[rng.IntN(len(prefixes))] + suffixes[rng.IntN(len(suffixes))]
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s %d", base, n)
		}
		used[name] = true
		names = append(names, name)
	}
	return names
}
