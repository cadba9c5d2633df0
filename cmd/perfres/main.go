// perfres loads performance-test results, reconciles them against a
// baseline build and reports regression deviations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/xtxerr/perfres/internal/archive"
	"github.com/xtxerr/perfres/internal/capability"
	"github.com/xtxerr/perfres/internal/db"
	"github.com/xtxerr/perfres/internal/dim"
	"github.com/xtxerr/perfres/internal/export"
	"github.com/xtxerr/perfres/internal/loader"
	"github.com/xtxerr/perfres/internal/logging"
	"github.com/xtxerr/perfres/internal/results"
)

// Version is set at build time via ldflags
var Version = "dev"

// dbProbe caches whether the results store could be opened this run.
var dbProbe capability.Probe

func main() {
	// CLI flags
	cfgPath := flag.String("config", "perfres.yaml", "config file path")
	dbPath := flag.String("db", "", "results store path (overrides config)")
	archivePath := flag.String("archive", "", "read results from a local archive file instead of the store")
	savePath := flag.String("save", "", "write loaded results to a local archive file")
	baseline := flag.String("baseline", "", "baseline build name (overrides config)")
	current := flag.String("current", "", "current build name (overrides config)")
	exportPath := flag.String("export", "", "write per-build statistics to a parquet file")
	scenario := flag.String("scenario", "", "restrict the run to one scenario")
	shell := flag.Bool("shell", false, "start an interactive query shell after loading")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = loader.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *dbPath != "" {
		cfg.DB = *dbPath
	}
	if *baseline != "" {
		cfg.Baseline = *baseline
	}
	if *current != "" {
		cfg.Current = *current
	}
	if *exportPath != "" {
		cfg.Export.Path = *exportPath
	}

	logging.Init(parseLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("perfres")
	log.Info("starting", "version", Version, "baseline", cfg.Baseline, "current", cfg.Current)

	if cfg.Baseline == "" || cfg.Current == "" {
		log.Error("baseline and current build names are required (flags or config)")
		os.Exit(1)
	}

	ctx := context.Background()

	// Load the result trees: archive file, or the results store.
	var (
		scenarios []*results.ScenarioResults
		store     *db.Store
	)
	if *archivePath != "" {
		scenarios, err = archive.ReadFile(*archivePath)
		if err != nil {
			log.Error("read archive", "path", *archivePath, "error", err)
			os.Exit(1)
		}
		log.Info("archive loaded", "path", *archivePath, "scenarios", len(scenarios))
	} else {
		state := dbProbe.Ensure(func() error {
			var err error
			store, err = db.Open(cfg.DB)
			return err
		})
		if state != capability.Available {
			log.Error("results store unavailable and no -archive given", "db", cfg.DB)
			os.Exit(1)
		}
		defer store.Close()

		scenarios, err = store.LoadAll(ctx)
		if err != nil {
			log.Error("load results", "db", cfg.DB, "error", err)
			os.Exit(1)
		}
		log.Info("store loaded", "db", cfg.DB, "scenarios", len(scenarios))
	}

	perf := results.NewPerformanceResults(cfg.Baseline, cfg.Current)
	for _, s := range scenarios {
		if *scenario != "" && s.Name() != *scenario {
			continue
		}
		perf.AddScenario(s)
	}
	if *scenario != "" && len(perf.Scenarios()) == 0 {
		log.Error("scenario not loaded", "scenario", *scenario)
		os.Exit(1)
	}

	// Reconcile. Enrichment needs the store; archive-only runs skip it.
	var enricher results.Enricher
	if store != nil {
		enricher = store
	}
	if err := perf.UpdateAll(ctx, enricher); err != nil {
		log.Error("update", "error", err)
		os.Exit(1)
	}

	report(perf, cfg.Milestones)

	if *savePath != "" {
		if err := archive.WriteFile(*savePath, perf.Scenarios()); err != nil {
			log.Error("write archive", "path", *savePath, "error", err)
			os.Exit(1)
		}
		log.Info("archive written", "path", *savePath, "scenarios", len(perf.Scenarios()))
	}

	if cfg.Export.Path != "" {
		rows := export.CollectStats(perf.Scenarios())
		opts := export.Options{Compression: cfg.Export.Compression}
		if err := export.WriteStats(cfg.Export.Path, rows, opts); err != nil {
			log.Error("export", "path", cfg.Export.Path, "error", err)
			os.Exit(1)
		}
		log.Info("export written", "path", cfg.Export.Path, "rows", len(rows))
	}

	if *shell {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			log.Error("-shell requires a terminal")
			os.Exit(1)
		}
		runShell(perf, cfg.Milestones)
	}
}

// report prints one deviation line per configuration. Interpretation of
// the numbers (thresholds, pass/fail) is left to the reader.
func report(perf *results.PerformanceResults, milestones []string) {
	d := dim.Default()
	for _, scn := range perf.Scenarios() {
		for _, cfg := range scn.Configs() {
			deviation, stderr := cfg.CurrentBuildDeviation()
			stats := cfg.Statistics(milestones, d.ID)
			fmt.Printf("%s/%s: current=%s baseline=%s deviation=%+.2f%% stderr=%.4f builds=%d mean=%.1f cv=%.2f%% baselined=%t valid=%t\n",
				scn.Name(), cfg.Name(),
				cfg.CurrentBuildName(), cfg.BaselineBuildName(),
				deviation*100, stderr,
				stats.Count, stats.Mean, stats.CV,
				cfg.IsBaselined(), cfg.IsValid())
			if b := cfg.CurrentBuild(); b != nil && b.HasFailure() {
				fmt.Printf("%s/%s: failure: %s\n", scn.Name(), cfg.Name(), b.Failure())
			}
		}
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
