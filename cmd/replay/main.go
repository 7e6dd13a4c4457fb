package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hybrid-exec/internal/config"
	"github.com/danielpatrickdp/hybrid-exec/internal/replay"
)

// #endregion

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	configPath := flag.String("config", "", "optional YAML config for risk/trigger tuning")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--config config.yaml] [--json]")
		os.Exit(2)
	}
	os.Exit(run(*fixturePath, *configPath, *jsonOut))
}

func run(fixturePath, configPath string, jsonOut bool) int {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	replayCfg := replay.DefaultReplayConfig()
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		replayCfg = replay.ReplayConfig{Risk: cfg.Risk, Switcher: cfg.Switcher}
	}

	results, err := replay.Replay(f, replayCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		return 2
	}
	mismatches := replay.Verify(f, results)
	summary := replay.Summarize(results, f.InitialMode)

	if jsonOut {
		out := struct {
			Description string          `json:"description"`
			Results     []replay.Result `json:"results"`
			Summary     replay.Summary  `json:"summary"`
			Mismatches  []string        `json:"mismatches,omitempty"`
		}{f.Description, results, summary, mismatches}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			return 2
		}
	} else {
		printTable(f, results, summary, mismatches)
	}

	if len(mismatches) > 0 {
		return 1
	}
	return 0
}

// #endregion main

// #region table

func printTable(f *replay.Fixture, results []replay.Result, summary replay.Summary, mismatches []string) {
	fmt.Printf("fixture: %s\n\n", f.Description)
	fmt.Printf("%-8s  %-9s  %-7s  %-17s  %-14s  %s\n",
		"TURN", "SCORE", "LEVEL", "RECOMMENDATION", "MODE", "SWITCH")
	for _, r := range results {
		sw := "-"
		if r.SwitchTo != "" {
			sw = "-> " + string(r.SwitchTo)
		}
		fmt.Printf("%-8s  %-9.3f  %-7s  %-17s  %-14s  %s\n",
			r.TurnID, r.Assessment.Score, r.Level, r.Recommendation, r.Mode, sw)
	}

	fmt.Printf("\n%d turns: %d auto, %d audited, %d approval, %d blocked, %d switches; final mode %s\n",
		summary.TotalTurns, summary.AutoExecutes, summary.Audits,
		summary.Approvals, summary.Blocks, summary.Switches, summary.FinalMode)

	if len(mismatches) > 0 {
		fmt.Printf("\n%d expectation mismatches:\n", len(mismatches))
		for _, m := range mismatches {
			fmt.Printf("  %s\n", m)
		}
	} else if len(f.ExpectedResults) > 0 {
		fmt.Println("\nall expectations matched")
	}
}

// #endregion table
