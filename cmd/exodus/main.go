// Command exodus runs a displacement simulation: agents fleeing conflict
// zones across a location graph towards camps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/exodus/internal/config"
	"github.com/talgya/exodus/internal/engine"
	"github.com/talgya/exodus/internal/entropy"
	"github.com/talgya/exodus/internal/metrics"
	"github.com/talgya/exodus/internal/persistence"
	"github.com/talgya/exodus/internal/scenario"
)

func main() {
	configPath := flag.String("config", "", "YAML file with simulation parameters")
	scenarioPath := flag.String("scenario", "", "YAML scenario file")
	synthetic := flag.Bool("synthetic", false, "generate a synthetic hex region instead of loading a scenario")
	radius := flag.Int("radius", scenario.DefaultSynthConfig().Radius, "synthetic region radius in hex rings")
	days := flag.Int("days", 30, "number of days to simulate")
	seed := flag.Uint64("seed", 0, "random seed (0 = random)")
	dbPath := flag.String("db", "", "SQLite file for run output (empty = none)")
	metricsPath := flag.String("metrics", "", "Prometheus textfile to rewrite after every day (empty = none)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath, *scenarioPath, *synthetic, *radius, *days, *seed, *dbPath, *metricsPath); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("stopped early")
			return
		}
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, scenarioPath string, synthetic bool, radius, days int, seed uint64, dbPath, metricsPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	seed = entropy.ResolveSeed(seed)
	slog.Info("exodus", "seed", seed, "days", days, "workers", cfg.Workers)

	// ── Scenario ──────────────────────────────────────────────────────
	var sc *scenario.File
	switch {
	case scenarioPath != "":
		sc, err = scenario.Load(scenarioPath)
	case synthetic:
		synth := scenario.DefaultSynthConfig()
		synth.Radius = radius
		synth.Seed = int64(seed)
		sc, err = scenario.Synthetic(synth)
	default:
		return errors.New("one of -scenario or -synthetic is required")
	}
	if err != nil {
		return err
	}
	start, err := sc.StartDate()
	if err != nil {
		return err
	}

	eco, err := engine.NewEcosystem(&cfg, seed)
	if err != nil {
		return err
	}
	if err := sc.Build(eco); err != nil {
		return err
	}

	// ── Output ────────────────────────────────────────────────────────
	var db *persistence.DB
	var runID string
	if dbPath != "" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create db dir: %w", err)
			}
		}
		db, err = persistence.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err = db.StartRun(seed, sc.Name, cfg)
		if err != nil {
			return err
		}
		slog.Info("database opened", "path", dbPath)
	}

	var rec *metrics.Recorder
	if metricsPath != "" {
		rec = metrics.NewRecorder()
	}

	// ── Run ───────────────────────────────────────────────────────────
	runner := &engine.Runner{
		Eco:   eco,
		Days:  days,
		Start: start,
	}
	runner.BeforeStep = func(step int) error {
		for _, ev := range sc.Apply(eco, step) {
			slog.Debug("scenario event", "date", runner.Date(step), "location", ev.Location, "kind", ev.Kind, "count", ev.Count)
			if ev.Kind == scenario.KindSpawned || db == nil {
				continue
			}
			if err := db.SaveEvent(runID, step, ev.Location, ev.Kind); err != nil {
				return fmt.Errorf("save event: %w", err)
			}
		}
		return nil
	}
	runner.AfterStep = func(snap engine.StepSnapshot, took time.Duration) error {
		report(runner, snap, took)
		var g errgroup.Group
		if db != nil {
			g.Go(func() error {
				if err := db.SaveStep(runID, snap); err != nil {
					return fmt.Errorf("save step: %w", err)
				}
				return nil
			})
		}
		if rec != nil {
			g.Go(func() error {
				rec.Observe(snap, took)
				if err := rec.WriteTextfile(metricsPath); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
				return nil
			})
		}
		return g.Wait()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n%s: %d locations, %s agents at start. Simulating %d days (Ctrl+C to stop).\n",
		sc.Name, eco.Graph().Len(), humanize.Comma(int64(eco.TotalAgents())), days)
	if err := runner.Run(ctx); err != nil {
		return err
	}

	if runID != "" {
		fmt.Printf("Run %s saved to %s.\n", runID, dbPath)
	}
	return nil
}

// report logs a one-line daily summary with the busiest locations.
func report(r *engine.Runner, snap engine.StepSnapshot, took time.Duration) {
	locs := append([]engine.LocationCount(nil), snap.Locations...)
	sort.SliceStable(locs, func(i, j int) bool { return locs[i].Agents > locs[j].Agents })

	args := []any{
		"date", r.Date(snap.Step - 1),
		"agents", humanize.Comma(int64(snap.Total)),
		"took", took.Round(time.Microsecond),
	}
	for i := 0; i < len(locs) && i < 3 && locs[i].Agents > 0; i++ {
		args = append(args, locs[i].Name, humanize.Comma(int64(locs[i].Agents)))
	}
	if snap.Arrivals != nil {
		args = append(args, "arrivals", snap.Arrivals.Arrivals, "avg_days", fmt.Sprintf("%.1f", snap.Arrivals.AvgTravelDays))
	}
	slog.Info("day complete", args...)
}
