package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/talgya/exodus/internal/config"
	"github.com/talgya/exodus/internal/world"
)

func newEco(t *testing.T, mutate func(*config.Config)) *Ecosystem {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	eco, err := NewEcosystem(&cfg, 42)
	if err != nil {
		t.Fatalf("new ecosystem: %v", err)
	}
	return eco
}

func addLocations(t *testing.T, eco *Ecosystem, specs ...LocationSpec) {
	t.Helper()
	for _, s := range specs {
		if _, err := eco.AddLocation(s); err != nil {
			t.Fatalf("add %s: %v", s.Name, err)
		}
	}
}

func count(t *testing.T, eco *Ecosystem, name string) int {
	t.Helper()
	n, err := eco.AgentCount(name)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSourceSinkScenario(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco,
		LocationSpec{Name: "Source", MoveChance: 1.0, Capacity: -1},
		LocationSpec{Name: "Sink", MoveChance: 0.0, Capacity: -1},
	)
	if err := eco.LinkUp("Source", "Sink", 10, false); err != nil {
		t.Fatal(err)
	}
	if _, err := eco.InsertAgents("Source", 100); err != nil {
		t.Fatal(err)
	}

	eco.Evolve()

	if got := count(t, eco, "Source"); got != 0 {
		t.Fatalf("Source has %d agents want 0", got)
	}
	if got := count(t, eco, "Sink"); got != 100 {
		t.Fatalf("Sink has %d agents want 100", got)
	}
	if eco.Time() != 1 {
		t.Fatalf("time=%d want 1", eco.Time())
	}
	for _, a := range eco.Agents() {
		if a.Travelling {
			t.Fatalf("agent %d still travelling after step", a.ID)
		}
	}
}

// region builds a small conflict region with a capped foreign camp.
func region(t *testing.T, workers int) *Ecosystem {
	t.Helper()
	eco := newEco(t, func(c *config.Config) {
		c.Workers = workers
		c.LogArrivals = true
		c.AllowTurnBack = false
	})
	addLocations(t, eco,
		LocationSpec{Name: "City", MoveChance: 0.3, Capacity: -1, Population: 5000},
		LocationSpec{Name: "Town", MoveChance: 0.3, Capacity: -1, Population: 1200},
		LocationSpec{Name: "Crossing", MoveChance: 0.5, Capacity: -1},
		LocationSpec{Name: "Village", MoveChance: 0.3, Capacity: -1, Population: 300},
		LocationSpec{Name: "CampNorth", MoveChance: 0.001, Capacity: 80, Foreign: true},
		LocationSpec{Name: "CampSouth", MoveChance: 0.001, Capacity: -1, Foreign: true},
	)
	links := []struct {
		a, b string
		d    float64
	}{
		{"City", "Town", 40},
		{"City", "Crossing", 120},
		{"Town", "Village", 25},
		{"Town", "Crossing", 60},
		{"Crossing", "CampNorth", 30},
		{"Village", "CampSouth", 90},
	}
	for _, l := range links {
		if err := eco.LinkUp(l.a, l.b, l.d, false); err != nil {
			t.Fatal(err)
		}
	}
	for _, z := range []string{"City", "Town"} {
		if err := eco.AddConflictZone(z); err != nil {
			t.Fatal(err)
		}
	}
	return eco
}

func spawnFromConflicts(t *testing.T, eco *Ecosystem, n int) {
	t.Helper()
	eco.RefreshConflictWeights()
	for i := 0; i < n; i++ {
		id, ok := eco.PickConflictLocation()
		if !ok {
			t.Fatalf("no conflict location to spawn from")
		}
		if _, err := eco.InsertAgentAt(id); err != nil {
			t.Fatal(err)
		}
	}
}

func TestConservationAcrossSteps(t *testing.T) {
	eco := region(t, 1)
	for step := 0; step < 30; step++ {
		spawnFromConflicts(t, eco, 50)
		eco.Evolve()
		if got, want := eco.NumAgents(), eco.TotalAgents(); got != want {
			t.Fatalf("step %d: located agents %d != total %d", step, got, want)
		}
		eco.Graph().Each(func(l *world.Location) {
			if l.Agents < 0 || l.Incoming != 0 {
				t.Fatalf("step %d: %s agents=%d incoming=%d", step, l.Name, l.Agents, l.Incoming)
			}
			for _, k := range l.Links {
				if k.InTransit != 0 {
					t.Fatalf("step %d: link from %s still has %d in transit", step, l.Name, k.InTransit)
				}
			}
		})
	}
	if eco.TotalAgents() != 1500 {
		t.Fatalf("total=%d want 1500", eco.TotalAgents())
	}
}

func TestParallelDecideMatchesSequential(t *testing.T) {
	seq := region(t, 1)
	par := region(t, 4)
	for step := 0; step < 15; step++ {
		spawnFromConflicts(t, seq, 40)
		spawnFromConflicts(t, par, 40)
		seq.Evolve()
		par.Evolve()
	}
	sa, pa := seq.Agents(), par.Agents()
	for i := range sa {
		if sa[i].Location != pa[i].Location || sa[i].Distance != pa[i].Distance {
			t.Fatalf("agent %d diverged: %+v vs %+v", sa[i].ID, sa[i], pa[i])
		}
	}
}

func TestCapacityRespectedForFullDestination(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco,
		LocationSpec{Name: "Source", MoveChance: 1.0, Capacity: -1},
		LocationSpec{Name: "Camp", MoveChance: 0.0, Capacity: 5},
	)
	if err := eco.LinkUp("Source", "Camp", 10, false); err != nil {
		t.Fatal(err)
	}
	if _, err := eco.InsertAgents("Camp", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := eco.InsertAgents("Source", 20); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		eco.Evolve()
	}
	if got := count(t, eco, "Camp"); got != 5 {
		t.Fatalf("Camp has %d agents, capacity 5", got)
	}
	if got := count(t, eco, "Source"); got != 20 {
		t.Fatalf("Source has %d agents want 20", got)
	}
}

func TestForcedRedirectionInEcosystem(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		cfg := config.Default()
		eco, err := NewEcosystem(&cfg, seed)
		if err != nil {
			t.Fatal(err)
		}
		addLocations(t, eco,
			LocationSpec{Name: "Closed", MoveChance: 1.0, Capacity: -1},
			LocationSpec{Name: "Near", MoveChance: 0.3, Capacity: -1, Foreign: true},
			LocationSpec{Name: "Redirect", MoveChance: 0.3, Capacity: -1},
		)
		if err := eco.LinkUp("Closed", "Near", 1, false); err != nil {
			t.Fatal(err)
		}
		if err := eco.LinkUp("Closed", "Redirect", 400, true); err != nil {
			t.Fatal(err)
		}
		if _, err := eco.InsertAgents("Closed", 10); err != nil {
			t.Fatal(err)
		}
		eco.Evolve()
		if got := count(t, eco, "Redirect"); got != 10 {
			t.Fatalf("seed %d: %d agents redirected want 10", seed, got)
		}
	}
}

func TestForcedLinkFromStayingLocation(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco,
		LocationSpec{Name: "Camp", MoveChance: 0, Capacity: -1, Foreign: true},
		LocationSpec{Name: "Elsewhere", MoveChance: 0.3, Capacity: -1},
	)
	if err := eco.LinkUp("Camp", "Elsewhere", 20, true); err != nil {
		t.Fatal(err)
	}
	if _, err := eco.InsertAgents("Camp", 50); err != nil {
		t.Fatal(err)
	}
	eco.Evolve()
	if got := count(t, eco, "Camp"); got != 50 {
		t.Fatalf("%d of 50 agents left a zero-move-chance location", 50-got)
	}
}

func TestWeightedConflictSampling(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco,
		LocationSpec{Name: "Small", MoveChance: 0.3, Capacity: -1, Population: 100},
		LocationSpec{Name: "Large", MoveChance: 0.3, Capacity: -1, Population: 300},
	)
	for _, z := range []string{"Small", "Large"} {
		if err := eco.AddConflictZone(z); err != nil {
			t.Fatal(err)
		}
	}
	if got := eco.ConflictPopulation(); got != 400 {
		t.Fatalf("conflict population=%v want 400", got)
	}

	small, _ := eco.Graph().Lookup("Small")
	const n = 10000
	hits := 0
	for i := 0; i < n; i++ {
		id, ok := eco.PickConflictLocation()
		if !ok {
			t.Fatal("no pick")
		}
		if id == small {
			hits++
		}
	}
	freq := float64(hits) / n
	if diff := freq - 0.25; diff > 0.05 || diff < -0.05 {
		t.Fatalf("small zone freq=%f want 0.25±0.05", freq)
	}
}

func TestConflictZoneLifecycle(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco, LocationSpec{Name: "Town", MoveChance: 0.005, Capacity: -1, Population: 10})
	id, _ := eco.Graph().Lookup("Town")
	if !eco.Graph().At(id).Camp {
		t.Fatalf("low move chance should derive camp")
	}

	if err := eco.AddConflictZone("Nowhere"); !errors.Is(err, world.ErrUnknownLocation) {
		t.Fatalf("expected ErrUnknownLocation, got %v", err)
	}
	if len(eco.ConflictZones()) != 0 {
		t.Fatalf("failed lookup changed the conflict set")
	}

	if err := eco.AddConflictZone("Town"); err != nil {
		t.Fatal(err)
	}
	if err := eco.AddConflictZone("Town"); err != nil {
		t.Fatal(err)
	}
	loc := eco.Graph().At(id)
	if !loc.Conflict || loc.MoveChance != 1.0 || loc.Camp {
		t.Fatalf("conflict zone state wrong: %+v", loc)
	}
	if zones := eco.ConflictZones(); len(zones) != 1 || zones[0] != "Town" {
		t.Fatalf("zones=%v want [Town]", zones)
	}

	if _, err := eco.InsertAgents("Town", 4); err != nil {
		t.Fatal(err)
	}
	if eco.ConflictPopulation() != 10 {
		t.Fatalf("weights should be stale until refreshed")
	}
	eco.RefreshConflictWeights()
	if got := eco.ConflictPopulation(); got != 6 {
		t.Fatalf("refreshed population=%v want 6", got)
	}

	if err := eco.RemoveConflictZone("Town"); err != nil {
		t.Fatal(err)
	}
	if loc.Conflict || loc.MoveChance != 0.005 || !loc.Camp {
		t.Fatalf("lifted zone should return to its earlier camp state: %+v", loc)
	}
	if _, ok := eco.PickConflictLocation(); ok {
		t.Fatalf("pick with no zones should report false")
	}
	if err := eco.RemoveConflictZone("Town"); !errors.Is(err, ErrNotConflictZone) {
		t.Fatalf("expected ErrNotConflictZone, got %v", err)
	}
}

func TestPickConflictWithoutPopulationIsUniform(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco,
		LocationSpec{Name: "A", MoveChance: 0.3, Capacity: -1},
		LocationSpec{Name: "B", MoveChance: 0.3, Capacity: -1},
	)
	_ = eco.AddConflictZone("A")
	_ = eco.AddConflictZone("B")
	seen := map[world.LocationID]bool{}
	for i := 0; i < 200; i++ {
		id, ok := eco.PickConflictLocation()
		if !ok {
			t.Fatal("no pick")
		}
		seen[id] = true
	}
	if len(seen) != 2 {
		t.Fatalf("uniform fallback should reach both zones, saw %v", seen)
	}
}

func TestInsertAgentAtRejectsBadHandle(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco, LocationSpec{Name: "Town", MoveChance: 0.3, Capacity: -1})
	for _, id := range []world.LocationID{world.NoLocation, 1, 99} {
		if _, err := eco.InsertAgentAt(id); !errors.Is(err, world.ErrUnknownLocation) {
			t.Fatalf("handle %d: err=%v want ErrUnknownLocation", id, err)
		}
	}
	if eco.TotalAgents() != 0 || eco.NumAgents() != 0 {
		t.Fatalf("rejected inserts created agents")
	}
	town, _ := eco.Graph().Lookup("Town")
	if _, err := eco.InsertAgentAt(town); err != nil {
		t.Fatal(err)
	}
}

func TestTakeFromPopulation(t *testing.T) {
	for _, take := range []bool{true, false} {
		eco := newEco(t, func(c *config.Config) { c.TakeFromPopulation = take })
		addLocations(t, eco, LocationSpec{Name: "Town", MoveChance: 0.3, Capacity: -1, Population: 2})
		if _, err := eco.InsertAgents("Town", 3); err != nil {
			t.Fatal(err)
		}
		id, _ := eco.Graph().Lookup("Town")
		want := 2
		if take {
			want = 0
		}
		if got := eco.Graph().At(id).Population; got != want {
			t.Fatalf("take=%v population=%d want %d", take, got, want)
		}
	}
}

func TestGraphConstructionErrors(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco,
		LocationSpec{Name: "A", Capacity: -1},
		LocationSpec{Name: "B", Capacity: -1},
	)
	if _, err := eco.AddLocation(LocationSpec{Name: "A"}); !errors.Is(err, world.ErrDuplicateLocation) {
		t.Fatalf("expected ErrDuplicateLocation, got %v", err)
	}
	if err := eco.LinkUp("A", "Z", 5, false); !errors.Is(err, world.ErrUnknownLocation) {
		t.Fatalf("expected ErrUnknownLocation, got %v", err)
	}
	if err := eco.LinkUp("A", "B", 0, false); !errors.Is(err, world.ErrInvalidDistance) {
		t.Fatalf("expected ErrInvalidDistance, got %v", err)
	}
	if _, err := eco.InsertAgent("Z"); !errors.Is(err, world.ErrUnknownLocation) {
		t.Fatalf("expected ErrUnknownLocation, got %v", err)
	}
	if err := eco.Unlink("A", "B"); !errors.Is(err, ErrNoLink) {
		t.Fatalf("expected ErrNoLink, got %v", err)
	}
	if err := eco.LinkUp("A", "B", 5, false); err != nil {
		t.Fatal(err)
	}
	if err := eco.Unlink("A", "B"); err != nil {
		t.Fatal(err)
	}

	bad := config.Default()
	bad.Workers = 0
	if _, err := NewEcosystem(&bad, 1); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config.ErrInvalid, got %v", err)
	}
}

func TestArrivalStatistics(t *testing.T) {
	eco := newEco(t, func(c *config.Config) {
		c.LogArrivals = true
		c.MinMoveSpeed = 30
	})
	addLocations(t, eco,
		LocationSpec{Name: "Source", MoveChance: 1.0, Capacity: -1},
		LocationSpec{Name: "Sink", MoveChance: 0.0, Capacity: -1},
	)
	if err := eco.LinkUp("Source", "Sink", 45, false); err != nil {
		t.Fatal(err)
	}
	if _, err := eco.InsertAgents("Source", 8); err != nil {
		t.Fatal(err)
	}
	eco.Evolve()
	eco.Evolve()

	hist := eco.Arrivals()
	if len(hist) != 2 {
		t.Fatalf("history length=%d want 2", len(hist))
	}
	first := hist[0]
	if first.Arrivals != 8 || first.ByLocation["Sink"] != 8 {
		t.Fatalf("first step arrivals=%+v", first)
	}
	if first.AvgTravelSteps != 1 || first.AvgDistance != 45 || first.AvgTravelDays != 2 {
		t.Fatalf("first step averages=%+v", first)
	}
	if hist[1].Arrivals != 0 {
		t.Fatalf("camp residents should not arrive again: %+v", hist[1])
	}
	snap := eco.Snapshot()
	if snap.Step != 2 || snap.Arrivals == nil || snap.Arrivals.Step != 1 {
		t.Fatalf("snapshot arrivals not attached: %+v", snap)
	}
}

func TestRunnerHooksAndCancellation(t *testing.T) {
	eco := newEco(t, nil)
	addLocations(t, eco,
		LocationSpec{Name: "Source", MoveChance: 1.0, Capacity: -1},
		LocationSpec{Name: "Sink", MoveChance: 0.0, Capacity: -1},
	)
	if err := eco.LinkUp("Source", "Sink", 10, false); err != nil {
		t.Fatal(err)
	}

	var before []int
	var snaps []StepSnapshot
	r := &Runner{
		Eco:   eco,
		Days:  3,
		Start: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		BeforeStep: func(step int) error {
			before = append(before, step)
			_, err := eco.InsertAgents("Source", 10)
			return err
		},
		AfterStep: func(snap StepSnapshot, _ time.Duration) error {
			snaps = append(snaps, snap)
			return nil
		},
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(before) != 3 || before[2] != 2 {
		t.Fatalf("before hooks=%v", before)
	}
	if len(snaps) != 3 || snaps[2].Total != 30 {
		t.Fatalf("after hooks=%+v", snaps)
	}
	if got := r.Date(2); got != "2024-02-01" {
		t.Fatalf("date=%s want 2024-02-01", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	failing := &Runner{Eco: eco, Days: 1, BeforeStep: func(int) error { return world.ErrUnknownLocation }}
	if err := failing.Run(context.Background()); !errors.Is(err, world.ErrUnknownLocation) {
		t.Fatalf("hook error not propagated: %v", err)
	}
}
