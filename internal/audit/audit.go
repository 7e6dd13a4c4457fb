package audit

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/hybrid-exec/internal/gate"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
	"github.com/danielpatrickdp/hybrid-exec/internal/switcher"
)

// #endregion

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	operation    TEXT,
	risk_score   REAL,
	risk_level   TEXT,
	decision     TEXT NOT NULL,
	reason       TEXT,
	factors_json TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_session ON decision_log(session_id, created_at);
`

// #endregion schema

// #region log

// Log is an append-only decision log over SQLite: every gate outcome and
// every switch attempt becomes one row. Entries are never updated.
type Log struct {
	db *sql.DB
}

// New prepares the decision log schema on db.
func New(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init decision log: %w", err)
	}
	return &Log{db: db}, nil
}

// DB exposes the underlying handle for inspection tooling.
func (l *Log) DB() *sql.DB { return l.db }

// #endregion log

// #region record-gate

// RecordGate appends one gate outcome row.
func (l *Log) RecordGate(ctx context.Context, sessionID, operation string, a risk.Assessment, out gate.Outcome) error {
	factors, err := json.Marshal(out.Factors)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO decision_log (session_id, kind, operation, risk_score, risk_level, decision, reason, factors_json, created_at)
		 VALUES (?, 'gate', ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		operation,
		a.Score,
		string(a.Level),
		string(out.Action),
		nullIfEmpty(out.Reason),
		nullIfEmpty(string(factors)),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record gate outcome: %w", err)
	}
	return nil
}

// #endregion record-gate

// #region record-switch

// RecordSwitch appends one switch attempt row.
func (l *Log) RecordSwitch(ctx context.Context, sessionID string, trigger switcher.SwitchTrigger, res switcher.SwitchResult) error {
	decision := "rolled_back"
	reason := trigger.Reason
	if res.Success {
		decision = "switched"
	}
	if res.Err != nil {
		reason = fmt.Sprintf("%s: %v", trigger.Reason, res.Err)
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO decision_log (session_id, kind, operation, decision, reason, created_at)
		 VALUES (?, 'switch', ?, ?, ?, ?)`,
		sessionID,
		fmt.Sprintf("%s->%s (%s)", trigger.SourceMode, trigger.TargetMode, trigger.TriggerType),
		decision,
		nullIfEmpty(reason),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record switch outcome: %w", err)
	}
	return nil
}

// #endregion record-switch

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
