package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/tcgsim/tcgsim-go/internal/config"
	"github.com/tcgsim/tcgsim-go/internal/repository"
	"github.com/tcgsim/tcgsim-go/internal/sim"
)

var header = []string{
	"run_id", "iteration", "label", "lands", "nonlands",
	"games", "avg_turns", "min_turns", "max_turns", "seed", "created_at",
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	outPath := flag.String("out", "", "output CSV file (default stdout)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: export_trials [-config path] [-out file] <run-id>")
	}
	runID := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Fprintln(os.Stderr, "=== Optimizer Trial Export ===")
	fmt.Fprintf(os.Stderr, "Database driver: %s\n", cfg.Database.Driver)

	store, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	trials, err := store.ListTrials(ctx, runID)
	if err != nil {
		log.Fatalf("Failed to list trials: %v", err)
	}
	if len(trials) == 0 {
		log.Fatalf("No trials stored for run %s", runID)
	}
	fmt.Fprintf(os.Stderr, "Found %d trials for run %s\n", len(trials), runID)

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	}

	if err := writeTrials(out, trials); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}
	fmt.Fprintln(os.Stderr, "✓ Export complete")
}

func writeTrials(w io.Writer, trials []sim.Trial) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range trials {
		record := []string{
			t.RunID,
			strconv.Itoa(t.Iteration),
			t.Label,
			strconv.Itoa(t.Ratio.Lands),
			strconv.Itoa(t.Ratio.Nonlands),
			strconv.Itoa(t.Stats.Games),
			strconv.FormatFloat(t.Stats.AvgTurns, 'f', 4, 64),
			strconv.Itoa(t.Stats.MinTurns),
			strconv.Itoa(t.Stats.MaxTurns),
			strconv.FormatInt(t.Seed, 10),
			t.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
