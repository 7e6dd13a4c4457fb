package gate

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
)

// #region types

// Action describes how the gate resolved an operation.
type Action string

const (
	ActionProceed       Action = "proceed"
	ActionLogAndProceed Action = "log_and_proceed"
	ActionApproved      Action = "approved" // proceeded after an explicit decision
	ActionBlocked       Action = "blocked"
)

// Outcome is the gate's decision plus the contributing risk factors, so a
// blocked or pending operation never surfaces as a generic failure.
type Outcome struct {
	Allowed bool
	Action  Action
	Reason  string
	Factors []risk.Factor
}

// ApprovalRequest is handed to the external approver for high-risk operations.
type ApprovalRequest struct {
	SessionID  string
	Operation  string
	Assessment risk.Assessment
}

// Approver is the external decision point. Implementations must honor ctx;
// the gate enforces its own timeout regardless.
type Approver interface {
	Decide(ctx context.Context, req ApprovalRequest) (bool, error)
}

// Config holds gate tuning.
type Config struct {
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

// DefaultConfig returns the default approval wait.
func DefaultConfig() Config {
	return Config{ApprovalTimeout: 2 * time.Minute}
}

// UnmarshalYAML accepts Go duration strings ("30s", "2m") for the timeout.
// Absent fields keep their prior values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ApprovalTimeout string `yaml:"approval_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.ApprovalTimeout != "" {
		d, err := time.ParseDuration(raw.ApprovalTimeout)
		if err != nil {
			return fmt.Errorf("approval_timeout: %w", err)
		}
		c.ApprovalTimeout = d
	}
	return nil
}

// #endregion types

// #region gate

// Gate consumes a risk assessment's recommendation and decides whether the
// operation proceeds. approver may be nil: approvals then fail safe to
// blocked.
type Gate struct {
	approver Approver
	config   Config
}

// New creates a gate.
func New(approver Approver, config Config) *Gate {
	return &Gate{approver: approver, config: config}
}

// Resolve maps the recommendation to an outcome. require_approval suspends
// the caller until a decision or the configured timeout; on timeout the
// operation is blocked, never auto-approved.
func (g *Gate) Resolve(ctx context.Context, sessionID, operation string, a risk.Assessment) Outcome {
	switch a.Recommendation {
	case risk.RecommendAutoExecute:
		return Outcome{Allowed: true, Action: ActionProceed, Reason: "low risk", Factors: a.Factors}

	case risk.RecommendAuditLog:
		return Outcome{Allowed: true, Action: ActionLogAndProceed, Reason: "medium risk, audited", Factors: a.Factors}

	case risk.RecommendRequireApproval:
		return g.awaitApproval(ctx, ApprovalRequest{SessionID: sessionID, Operation: operation, Assessment: a})

	default: // block, or anything unrecognized: most restrictive wins
		return Outcome{
			Allowed: false,
			Action:  ActionBlocked,
			Reason:  fmt.Sprintf("critical risk (score %.3f)", a.Score),
			Factors: a.Factors,
		}
	}
}

// #endregion gate

// #region approval-wait

func (g *Gate) awaitApproval(ctx context.Context, req ApprovalRequest) Outcome {
	if g.approver == nil {
		return Outcome{
			Allowed: false,
			Action:  ActionBlocked,
			Reason:  "approval required but no approver configured",
			Factors: req.Assessment.Factors,
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.config.ApprovalTimeout)
	defer cancel()

	type reply struct {
		approved bool
		err      error
	}
	ch := make(chan reply, 1)
	go func() {
		approved, err := g.approver.Decide(waitCtx, req)
		ch <- reply{approved: approved, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Outcome{
				Allowed: false,
				Action:  ActionBlocked,
				Reason:  fmt.Sprintf("approver error: %v", r.err),
				Factors: req.Assessment.Factors,
			}
		}
		if !r.approved {
			return Outcome{
				Allowed: false,
				Action:  ActionBlocked,
				Reason:  "approval refused",
				Factors: req.Assessment.Factors,
			}
		}
		return Outcome{Allowed: true, Action: ActionApproved, Reason: "approved", Factors: req.Assessment.Factors}

	case <-waitCtx.Done():
		return Outcome{
			Allowed: false,
			Action:  ActionBlocked,
			Reason:  "approval wait timed out",
			Factors: req.Assessment.Factors,
		}
	}
}

// #endregion approval-wait
