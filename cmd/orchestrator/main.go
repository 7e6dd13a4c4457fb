package main

// #region imports
import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/hybrid-exec/internal/audit"
	"github.com/danielpatrickdp/hybrid-exec/internal/checkpoint"
	"github.com/danielpatrickdp/hybrid-exec/internal/config"
	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/gate"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
	"github.com/danielpatrickdp/hybrid-exec/internal/session"
)

// #endregion

// #region turn-line

// turnLine is one JSON line on stdin.
type turnLine struct {
	Session     string            `json:"session"`
	Operation   string            `json:"operation"`
	Arguments   map[string]string `json:"arguments,omitempty"`
	Input       string            `json:"input,omitempty"`
	Environment string            `json:"environment,omitempty"`
	UserTrust   float32           `json:"user_trust,omitempty"`
}

// #endregion turn-line

// #region main

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	approve := flag.String("approve", "deny", "approval policy for high-risk ops: deny | allow")
	flag.Parse()

	// .env values feed the HYBRID_* overrides in config.Load.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[MAIN] skipping .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := checkpoint.Open(checkpoint.Options{Backend: cfg.Store.Backend, Path: cfg.Store.Path})
	if err != nil {
		log.Fatalf("open checkpoint store: %v", err)
	}
	defer store.Close()

	var recorder session.Recorder
	if cfg.AuditDB != "" {
		db, err := sql.Open("sqlite", cfg.AuditDB)
		if err != nil {
			log.Fatalf("open audit db: %v", err)
		}
		defer db.Close()
		decisionLog, err := audit.New(db)
		if err != nil {
			log.Fatalf("init decision log: %v", err)
		}
		recorder = decisionLog
	}

	var approver gate.Approver
	if *approve == "allow" {
		log.Printf("[MAIN] approval policy: allow (every high-risk operation is approved)")
		approver = allowAll{}
	}

	manager := session.NewManager(session.Options{
		RiskEngine:  risk.NewEngine(cfg.Risk),
		Gate:        gate.New(approver, cfg.Gate),
		Store:       store,
		Recorder:    recorder,
		InitialMode: cfg.InitialMode,
		Switcher:    cfg.Switcher,
	})
	defer manager.Close()

	fmt.Println("Hybrid execution orchestrator ready.")
	fmt.Printf("  store: %s | initial mode: %s | approval: %s\n", cfg.Store.Backend, cfg.InitialMode, *approve)
	fmt.Println(`Enter a JSON turn per line, e.g. {"session":"s1","operation":"read-file","arguments":{"path":"/tmp/a"},"environment":"development","user_trust":0.9}`)
	fmt.Println("Commands: checkpoint <session> | restore <session> <id> | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if !strings.HasPrefix(line, "{") {
			runCommand(manager, cfg, line)
			continue
		}
		runTurn(manager, line)
	}
}

// #endregion main

// #region turn

func runTurn(manager *session.Manager, line string) {
	var t turnLine
	if err := json.Unmarshal([]byte(line), &t); err != nil {
		fmt.Printf("bad turn line: %v\n", err)
		return
	}
	if t.Session == "" {
		t.Session = "default"
	}
	if t.Environment == "" {
		t.Environment = "development"
	}

	res, err := manager.Get(t.Session).Submit(context.Background(), session.Turn{
		Operation: engine.Operation{Name: t.Operation, Arguments: t.Arguments, Input: t.Input},
		Context:   risk.OperationContext{Environment: t.Environment, UserTrust: t.UserTrust},
	})
	if err != nil {
		fmt.Printf("submit: %v\n", err)
		return
	}
	if res.Err != nil {
		fmt.Printf("[%s] rejected: %v\n", res.SessionID, res.Err)
		return
	}

	fmt.Printf("[%s] mode=%s risk=%s (%.3f) gate=%s\n",
		res.SessionID, res.Mode, res.Assessment.Level, res.Assessment.Score, res.Gate.Action)
	if !res.Gate.Allowed {
		fmt.Printf("  reason: %s\n", res.Gate.Reason)
		for _, f := range res.Gate.Factors {
			fmt.Printf("  factor %s: %.3f x %.2f (%s)\n", f.Source, f.Contribution, f.Weight, f.Explanation)
		}
	}
	if res.ExecErr != nil {
		fmt.Printf("  execution failed: %v\n", res.ExecErr)
	}
	if res.Switch != nil {
		if res.Switch.Success {
			fmt.Printf("  switched to %s (checkpoint %s)\n", res.Switch.NewMode, res.Switch.CheckpointID)
		} else {
			fmt.Printf("  switch rolled back: %v\n", res.Switch.Err)
		}
	}
}

// #endregion turn

// #region commands

func runCommand(manager *session.Manager, cfg config.Config, line string) {
	fields := strings.Fields(line)
	switch {
	case fields[0] == "checkpoint" && len(fields) == 2:
		id, err := manager.Get(fields[1]).Checkpoint(context.Background(), cfg.Store.CheckpointTTL)
		if err != nil {
			fmt.Printf("checkpoint: %v\n", err)
			return
		}
		fmt.Printf("saved checkpoint %s\n", id)
	case fields[0] == "restore" && len(fields) == 3:
		if err := manager.Get(fields[1]).Restore(context.Background(), fields[2]); err != nil {
			fmt.Printf("restore: %v\n", err)
			return
		}
		fmt.Printf("session %s restored from %s (mode=%s)\n", fields[1], fields[2], manager.Get(fields[1]).Mode())
	default:
		fmt.Println("unknown command; use: checkpoint <session> | restore <session> <id> | quit")
	}
}

// allowAll approves every request. Local testing only.
type allowAll struct{}

func (allowAll) Decide(context.Context, gate.ApprovalRequest) (bool, error) { return true, nil }

// #endregion commands
