// Package scenario loads displacement scenarios and drives them against an
// ecosystem: the location graph, a conflict timeline and a daily spawn plan.
package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/exodus/internal/engine"
	"github.com/talgya/exodus/internal/world"
)

// ErrInvalid is returned for scenarios that cannot be built.
var ErrInvalid = errors.New("invalid scenario")

// Conflict timeline actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Event kinds reported by Apply.
const (
	KindConflictAdded   = "conflict_added"
	KindConflictRemoved = "conflict_removed"
	KindSpawned         = "spawned"
)

// campMoveChance is used for camps that do not set a move chance.
const campMoveChance = 0.001

// File is a scenario as read from YAML.
type File struct {
	Name      string          `yaml:"name"`
	Start     string          `yaml:"start"` // Calendar date of day 0, YYYY-MM-DD
	Locations []LocationDef   `yaml:"locations"`
	Links     []LinkDef       `yaml:"links"`
	Conflicts []ConflictEvent `yaml:"conflicts"`
	Spawn     SpawnPlan       `yaml:"spawn"`
}

// LocationDef describes one location.
type LocationDef struct {
	Name       string   `yaml:"name"`
	X          float64  `yaml:"x"`
	Y          float64  `yaml:"y"`
	MoveChance *float64 `yaml:"move_chance"` // Defaults by kind when unset
	Capacity   *int     `yaml:"capacity"`    // Unlimited when unset
	Population int      `yaml:"population"`
	Foreign    bool     `yaml:"foreign"`
	Camp       bool     `yaml:"camp"`
	Agents     int      `yaml:"agents"` // Agents present at day 0
}

// LinkDef is an undirected route. Forced applies to the from→to direction.
type LinkDef struct {
	From     string  `yaml:"from"`
	To       string  `yaml:"to"`
	Distance float64 `yaml:"distance"`
	Forced   bool    `yaml:"forced"`
}

// ConflictEvent starts or ends a conflict at a location on a given day.
type ConflictEvent struct {
	Day      int    `yaml:"day"`
	Location string `yaml:"location"`
	Action   string `yaml:"action"`
}

// SpawnPlan inserts new agents into conflict zones every day.
type SpawnPlan struct {
	PerDay int `yaml:"per_day"`
	Until  int `yaml:"until"` // First day without spawning; 0 spawns for the whole run
}

// Event is something Apply did on a given day.
type Event struct {
	Day      int
	Location string
	Kind     string
	Count    int
}

// Load reads and validates a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names, distances and the timeline for consistency.
func (f *File) Validate() error {
	if len(f.Locations) == 0 {
		return fmt.Errorf("%w: no locations", ErrInvalid)
	}
	known := make(map[string]bool, len(f.Locations))
	for _, l := range f.Locations {
		if l.Name == "" {
			return fmt.Errorf("%w: location without a name", ErrInvalid)
		}
		if known[l.Name] {
			return fmt.Errorf("%w: duplicate location %q", ErrInvalid, l.Name)
		}
		known[l.Name] = true
		if l.MoveChance != nil && (*l.MoveChance < 0 || *l.MoveChance > 1) {
			return fmt.Errorf("%w: %s: move_chance %v outside [0,1]", ErrInvalid, l.Name, *l.MoveChance)
		}
		if l.Population < 0 || l.Agents < 0 {
			return fmt.Errorf("%w: %s: negative population or agents", ErrInvalid, l.Name)
		}
	}
	for _, k := range f.Links {
		if !known[k.From] || !known[k.To] {
			return fmt.Errorf("%w: link %s-%s names an unknown location", ErrInvalid, k.From, k.To)
		}
		if k.Distance <= 0 {
			return fmt.Errorf("%w: link %s-%s: distance must be positive", ErrInvalid, k.From, k.To)
		}
	}
	for _, c := range f.Conflicts {
		if !known[c.Location] {
			return fmt.Errorf("%w: conflict at unknown location %q", ErrInvalid, c.Location)
		}
		if c.Day < 0 {
			return fmt.Errorf("%w: conflict at %s on negative day %d", ErrInvalid, c.Location, c.Day)
		}
		if c.Action != ActionAdd && c.Action != ActionRemove {
			return fmt.Errorf("%w: conflict action %q", ErrInvalid, c.Action)
		}
	}
	if f.Spawn.PerDay < 0 || f.Spawn.Until < 0 {
		return fmt.Errorf("%w: negative spawn plan", ErrInvalid)
	}
	if _, err := f.StartDate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// StartDate parses Start. It returns the zero time when Start is empty.
func (f *File) StartDate() (time.Time, error) {
	if f.Start == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", f.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("start date: %w", err)
	}
	return t, nil
}

// Build adds the scenario's locations, links and day-0 agents to an empty
// ecosystem. Conflicts are left to Apply.
func (f *File) Build(eco *engine.Ecosystem) error {
	if err := f.Validate(); err != nil {
		return err
	}
	cfg := eco.Config()

	for _, l := range f.Locations {
		spec := engine.LocationSpec{
			Name:       l.Name,
			Coord:      world.Coord{X: l.X, Y: l.Y},
			MoveChance: cfg.DefaultMoveChance,
			Capacity:   -1,
			Population: l.Population,
			Foreign:    l.Foreign,
		}
		switch {
		case l.MoveChance != nil:
			spec.MoveChance = *l.MoveChance
		case l.Camp:
			spec.MoveChance = campMoveChance
		}
		if l.Capacity != nil {
			spec.Capacity = *l.Capacity
		}
		if _, err := eco.AddLocation(spec); err != nil {
			return err
		}
	}

	for _, k := range f.Links {
		if err := eco.LinkUp(k.From, k.To, k.Distance, k.Forced); err != nil {
			return err
		}
	}

	for _, l := range f.Locations {
		if l.Agents == 0 {
			continue
		}
		if _, err := eco.InsertAgents(l.Name, l.Agents); err != nil {
			return err
		}
	}

	slog.Info("scenario built",
		"name", f.Name,
		"locations", len(f.Locations),
		"links", len(f.Links),
		"agents", eco.TotalAgents(),
	)
	return nil
}

// Apply runs the timeline entries for a day, in file order, then spawns the
// day's new agents into conflict zones. Timeline entries the ecosystem
// rejects are skipped.
func (f *File) Apply(eco *engine.Ecosystem, day int) []Event {
	var events []Event

	for _, c := range f.Conflicts {
		if c.Day != day {
			continue
		}
		switch c.Action {
		case ActionAdd:
			if err := eco.AddConflictZone(c.Location); err != nil {
				continue
			}
			events = append(events, Event{Day: day, Location: c.Location, Kind: KindConflictAdded})
		case ActionRemove:
			if err := eco.RemoveConflictZone(c.Location); err != nil {
				continue
			}
			events = append(events, Event{Day: day, Location: c.Location, Kind: KindConflictRemoved})
		}
	}

	if f.Spawn.PerDay == 0 || (f.Spawn.Until > 0 && day >= f.Spawn.Until) {
		return events
	}

	eco.RefreshConflictWeights()
	counts := make(map[world.LocationID]int)
	var order []world.LocationID
	for i := 0; i < f.Spawn.PerDay; i++ {
		id, ok := eco.PickConflictLocation()
		if !ok {
			break
		}
		if _, err := eco.InsertAgentAt(id); err != nil {
			slog.Warn("spawn skipped", "day", day, "error", err)
			break
		}
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	g := eco.Graph()
	for _, id := range order {
		events = append(events, Event{Day: day, Location: g.At(id).Name, Kind: KindSpawned, Count: counts[id]})
	}
	return events
}
