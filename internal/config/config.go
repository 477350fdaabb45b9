// Package config holds the simulation parameters shared by scoring, route
// selection and the ecosystem step. A Config is read-only during a run and is
// passed explicitly; there is no package-level simulation state.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the movement and scoring parameters for one simulation run.
type Config struct {
	Softening      float64 `yaml:"softening"`       // Added to link distance in route weights
	CampWeight     float64 `yaml:"camp_weight"`     // Local score of foreign locations
	ConflictWeight float64 `yaml:"conflict_weight"` // Local score of conflict locations
	MinMoveSpeed   float64 `yaml:"min_move_speed"`  // Distance units covered per step, at least

	AllowTurnBack      bool `yaml:"allow_turn_back"`
	PreferForeign      bool `yaml:"prefer_foreign"`
	AvoidConflicts     bool `yaml:"avoid_conflicts"`
	TakeFromPopulation bool `yaml:"take_from_population"`
	DynamicAwareness   bool `yaml:"dynamic_awareness"`
	LogArrivals        bool `yaml:"log_arrivals"`

	DefaultMoveChance  float64 `yaml:"default_move_chance"`  // For locations that do not set their own
	ConflictMoveChance float64 `yaml:"conflict_move_chance"` // Forced on conflict zones
	CampThreshold      float64 `yaml:"camp_threshold"`       // Move chance below this marks a camp

	Workers int `yaml:"workers"` // Goroutines for the decide phase
}

// Default returns the reference parameter set.
func Default() Config {
	return Config{
		Softening:          10.0,
		CampWeight:         2.0,
		ConflictWeight:     0.25,
		MinMoveSpeed:       100.0,
		AllowTurnBack:      true,
		PreferForeign:      true,
		AvoidConflicts:     true,
		TakeFromPopulation: true,
		DynamicAwareness:   true,
		LogArrivals:        false,
		DefaultMoveChance:  0.3,
		ConflictMoveChance: 1.0,
		CampThreshold:      0.01,
		Workers:            1,
	}
}

// Load reads a YAML file and overlays it on the defaults. Keys absent from the
// file keep their default value. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks parameter ranges.
func (c Config) Validate() error {
	switch {
	case c.Softening < 0:
		return fmt.Errorf("%w: softening %v < 0", ErrInvalid, c.Softening)
	case c.CampWeight <= 0:
		return fmt.Errorf("%w: camp_weight %v <= 0", ErrInvalid, c.CampWeight)
	case c.ConflictWeight <= 0:
		return fmt.Errorf("%w: conflict_weight %v <= 0", ErrInvalid, c.ConflictWeight)
	case c.MinMoveSpeed <= 0:
		return fmt.Errorf("%w: min_move_speed %v <= 0", ErrInvalid, c.MinMoveSpeed)
	case !isProbability(c.DefaultMoveChance):
		return fmt.Errorf("%w: default_move_chance %v outside [0,1]", ErrInvalid, c.DefaultMoveChance)
	case !isProbability(c.ConflictMoveChance):
		return fmt.Errorf("%w: conflict_move_chance %v outside [0,1]", ErrInvalid, c.ConflictMoveChance)
	case !isProbability(c.CampThreshold):
		return fmt.Errorf("%w: camp_threshold %v outside [0,1]", ErrInvalid, c.CampThreshold)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers %d < 1", ErrInvalid, c.Workers)
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}
