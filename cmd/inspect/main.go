package main

// #region imports
import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/hybrid-exec/internal/checkpoint"
)

// #endregion

// #region main

func main() {
	dbPath := flag.String("db", "", "path to checkpoints db")
	sessionID := flag.String("session", "", "list checkpoints for one session")
	last := flag.Int("last", 20, "show N most recent checkpoints")
	checkpointID := flag.String("checkpoint", "", "show single checkpoint detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || (*sessionID == "" && *checkpointID == "") {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/checkpoints.db --session id [--last N] [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --db path/to/checkpoints.db --checkpoint id [--json]")
		os.Exit(2)
	}

	store, err := checkpoint.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *checkpointID != "" {
		err = runDetail(store, *checkpointID, *jsonOut)
	} else {
		err = runList(store, *sessionID, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	CheckpointID string `json:"checkpoint_id"`
	Mode         string `json:"execution_mode"`
	SyncStatus   string `json:"sync_status"`
	Transitions  int    `json:"transitions"`
	Assessments  int    `json:"assessments"`
	CreatedAt    string `json:"created_at"`
}

func runList(store *checkpoint.SQLiteStore, sessionID string, last int, jsonOut bool) error {
	checkpoints, err := store.ListBySession(context.Background(), sessionID, last)
	if err != nil {
		return err
	}
	if len(checkpoints) == 0 {
		fmt.Fprintln(os.Stderr, "no checkpoints found")
		return nil
	}

	rows := make([]listRow, len(checkpoints))
	for i, c := range checkpoints {
		rows[i] = listRow{
			CheckpointID: c.CheckpointID,
			Mode:         string(c.ExecutionMode),
			SyncStatus:   string(c.SyncStatus),
			Transitions:  len(c.ModeHistory),
			Assessments:  len(c.RiskProfile),
			CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Printf("%-36s  %-14s  %-19s  %5s  %5s  %s\n",
		"CHECKPOINT", "MODE", "SYNC", "TRANS", "RISKS", "CREATED")
	for _, r := range rows {
		fmt.Printf("%-36s  %-14s  %-19s  %5d  %5d  %s\n",
			r.CheckpointID, r.Mode, r.SyncStatus, r.Transitions, r.Assessments, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetail(store *checkpoint.SQLiteStore, id string, jsonOut bool) error {
	c, err := store.Load(context.Background(), id)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	fmt.Printf("checkpoint %s (v%d)\n", c.CheckpointID, c.Version)
	fmt.Printf("  session:  %s\n", c.SessionID)
	fmt.Printf("  mode:     %s (%s)\n", c.ExecutionMode, c.SyncStatus)
	fmt.Printf("  created:  %s\n", c.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  updated:  %s\n", c.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("  states:   structured=%dB conversational=%dB\n",
		len(c.StructuredState), len(c.ConversationalState))

	if len(c.ModeHistory) > 0 {
		fmt.Printf("  transitions (%d):\n", len(c.ModeHistory))
		for _, tr := range c.ModeHistory {
			fmt.Printf("    %s  %s -> %s  trigger=%s  %s\n",
				tr.Timestamp.Format(time.RFC3339), tr.FromMode, tr.ToMode, tr.TriggerType, tr.Outcome)
		}
	}
	if len(c.RiskProfile) > 0 {
		fmt.Printf("  recent assessments (%d, most recent first):\n", len(c.RiskProfile))
		for _, a := range c.RiskProfile {
			fmt.Printf("    %-10s %.3f  %s\n", a.Level, a.Score, a.Recommendation)
		}
	}
	return nil
}

// #endregion detail-mode
