package session

// #region imports
import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/danielpatrickdp/hybrid-exec/internal/checkpoint"
	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/gate"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
	"github.com/danielpatrickdp/hybrid-exec/internal/switcher"
)

// #endregion

// #region types

// MaxWindow bounds the recent-operation window the pattern detector reads.
const MaxWindow = 50

// Turn is one inbound unit of work for a session.
type Turn struct {
	Operation engine.Operation
	Context   risk.OperationContext
}

// TurnResult reports everything that happened to one turn: the assessment,
// the gate decision, dispatch, and any mode switch it caused. A blocked turn
// still carries its contributing risk factors.
type TurnResult struct {
	SessionID  string
	Mode       engine.Mode
	Assessment risk.Assessment
	Gate       gate.Outcome
	Executed   bool
	ExecErr    error
	Switch     *switcher.SwitchResult
	Err        error
}

// Recorder receives gate and switch outcomes for the decision log. A nil
// Recorder disables recording.
type Recorder interface {
	RecordGate(ctx context.Context, sessionID, operation string, a risk.Assessment, out gate.Outcome) error
	RecordSwitch(ctx context.Context, sessionID string, trigger switcher.SwitchTrigger, res switcher.SwitchResult) error
}

// #endregion types

// #region session

// Session owns one session's worker goroutine. All turns for the session are
// processed sequentially by that worker; the mode, recent-operation window,
// and risk profile are owned exclusively by it. Independent sessions run
// fully in parallel.
type Session struct {
	id             string
	riskEngine     *risk.Engine
	gate           *gate.Gate
	detector       *switcher.Detector
	switcher       *switcher.Switcher
	structured     *engine.Workflow
	conversational *engine.Conversational
	store          checkpoint.Store
	recorder       Recorder

	window  []risk.OperationRecord
	profile []risk.Assessment

	inbox chan request
	done  chan struct{}
}

// request is a turn, a checkpoint capture, or a restore; all run on the
// worker so they never race each other.
type request struct {
	ctx       context.Context
	turn      Turn
	reply     chan TurnResult
	ttl       time.Duration
	restoreID string        // non-empty marks a restore request
	cpReply   chan cpResult // non-nil marks a checkpoint or restore request
}

type cpResult struct {
	id  string
	err error
}

// Options wires a session's collaborators.
type Options struct {
	RiskEngine  *risk.Engine
	Gate        *gate.Gate
	Store       checkpoint.Store
	Recorder    Recorder
	InitialMode engine.Mode
	Switcher    switcher.Config
	// StepHook, when non-nil, runs for every structured-mode operation in
	// place of the default step bookkeeping.
	StepHook func(op engine.Operation) error
}

// New creates a session and starts its worker.
func New(id string, opts Options) *Session {
	if opts.InitialMode == "" {
		opts.InitialMode = engine.ModeConversational
	}
	wf := engine.NewWorkflow(opts.StepHook)
	conv := engine.NewConversational()
	s := &Session{
		id:             id,
		riskEngine:     opts.RiskEngine,
		gate:           opts.Gate,
		detector:       switcher.NewDetector(opts.Switcher),
		switcher:       switcher.New(id, opts.InitialMode, wf, conv, opts.Store, opts.Switcher),
		structured:     wf,
		conversational: conv,
		store:          opts.Store,
		recorder:       opts.Recorder,
		inbox:          make(chan request, 16),
		done:           make(chan struct{}),
	}
	// Switches run on the worker, so the callback reads worker-owned state.
	s.switcher.SetProfileSource(func() []risk.Assessment { return s.profile })
	go s.run()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Mode returns the session's active execution mode.
func (s *Session) Mode() engine.Mode { return s.switcher.Mode() }

// Close stops the worker after draining queued turns.
func (s *Session) Close() {
	close(s.inbox)
	<-s.done
}

// #endregion session

// #region submit

// Submit queues a turn for the session worker and waits for its result.
func (s *Session) Submit(ctx context.Context, turn Turn) (TurnResult, error) {
	req := request{ctx: ctx, turn: turn, reply: make(chan TurnResult, 1)}
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	}
}

// #endregion submit

// #region worker

func (s *Session) run() {
	defer close(s.done)
	for req := range s.inbox {
		switch {
		case req.restoreID != "":
			req.cpReply <- cpResult{id: req.restoreID, err: s.restore(req.ctx, req.restoreID)}
		case req.cpReply != nil:
			id, err := s.capture(req.ctx, req.ttl)
			req.cpReply <- cpResult{id: id, err: err}
		default:
			req.reply <- s.process(req.ctx, req.turn)
		}
	}
}

// process runs the turn pipeline: assess, gate, dispatch, record, then check
// switch triggers.
func (s *Session) process(ctx context.Context, turn Turn) TurnResult {
	res := TurnResult{SessionID: s.id, Mode: s.switcher.Mode()}
	op := turn.Operation

	assessment, err := s.riskEngine.Assess(op.Name, op.Arguments, turn.Context, s.window)
	if err != nil {
		res.Err = fmt.Errorf("assess %s: %w", op.Name, err)
		return res
	}
	res.Assessment = assessment
	s.pushAssessment(assessment)

	res.Gate = s.gate.Resolve(ctx, s.id, op.Name, assessment)
	if s.recorder != nil {
		if rerr := s.recorder.RecordGate(ctx, s.id, op.Name, assessment, res.Gate); rerr != nil {
			log.Printf("[SESSION] %s: record gate outcome: %v", s.id, rerr)
		}
	}
	if !res.Gate.Allowed {
		log.Printf("[SESSION] %s: %s %s: %s", s.id, op.Name, res.Gate.Action, res.Gate.Reason)
		s.recordOperation(op.Name, assessment.Score)
		return res
	}

	res.ExecErr = s.activeEngine().Execute(ctx, op)
	res.Executed = res.ExecErr == nil
	s.recordOperation(op.Name, assessment.Score)

	if trig := s.detector.ShouldSwitch(s.switcher.Mode(), s.signals(), op.Input); trig != nil {
		sw, serr := s.switcher.ExecuteSwitch(ctx, *trig)
		if serr != nil {
			res.Err = serr
		} else {
			res.Switch = &sw
		}
		if s.recorder != nil {
			if rerr := s.recorder.RecordSwitch(ctx, s.id, *trig, sw); rerr != nil {
				log.Printf("[SESSION] %s: record switch outcome: %v", s.id, rerr)
			}
		}
	}
	res.Mode = s.switcher.Mode()
	return res
}

func (s *Session) activeEngine() engine.Engine {
	if s.switcher.Mode() == engine.ModeStructured {
		return s.structured
	}
	return s.conversational
}

func (s *Session) signals() switcher.Signals {
	return switcher.Signals{
		ConsecutiveFailures: s.structured.State().ConsecutiveFailures,
		ActiveOperations:    len(s.inbox),
		PendingSteps:        s.structured.State().PendingSteps(),
	}
}

func (s *Session) recordOperation(name string, score float32) {
	s.window = append(s.window, risk.OperationRecord{
		Name:  name,
		Score: score,
		At:    time.Now().UTC(),
	})
	if len(s.window) > MaxWindow {
		s.window = append([]risk.OperationRecord(nil), s.window[len(s.window)-MaxWindow:]...)
	}
}

func (s *Session) pushAssessment(a risk.Assessment) {
	s.profile = append([]risk.Assessment{a}, s.profile...)
	if len(s.profile) > checkpoint.MaxRiskProfile {
		s.profile = s.profile[:checkpoint.MaxRiskProfile]
	}
}

// #endregion worker

// #region checkpoint

// Checkpoint captures the session's full state into the store and returns
// the checkpoint id. The capture runs on the worker so it never races a
// turn.
func (s *Session) Checkpoint(ctx context.Context, ttl time.Duration) (string, error) {
	req := request{ctx: ctx, ttl: ttl, cpReply: make(chan cpResult, 1)}
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-req.cpReply:
		return res.id, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// capture runs on the worker goroutine.
func (s *Session) capture(ctx context.Context, ttl time.Duration) (string, error) {
	structuredBlob, err := s.structured.SnapshotState(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot structured state: %w", err)
	}
	conversationalBlob, err := s.conversational.SnapshotState(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot conversational state: %w", err)
	}

	cp := checkpoint.New(s.id, s.switcher.Mode())
	cp.SetStates(structuredBlob, conversationalBlob)
	cp.ModeHistory = s.switcher.History()
	cp.RiskProfile = append([]risk.Assessment(nil), s.profile...)
	return s.store.Save(ctx, cp, ttl)
}

// Restore reinstates the session from a saved checkpoint: both engines, the
// active mode, the mode history, and the risk profile.
func (s *Session) Restore(ctx context.Context, checkpointID string) error {
	req := request{ctx: ctx, restoreID: checkpointID, cpReply: make(chan cpResult, 1)}
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case res := <-req.cpReply:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// restore runs on the worker goroutine.
func (s *Session) restore(ctx context.Context, id string) error {
	cp, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := checkpoint.Restore(ctx, s.store, id, checkpoint.EngineSet{
		Structured:     s.structured,
		Conversational: s.conversational,
	}); err != nil {
		return err
	}
	s.switcher.Adopt(cp.ExecutionMode, cp.ModeHistory)
	s.profile = append([]risk.Assessment(nil), cp.RiskProfile...)
	return nil
}

// #endregion checkpoint
