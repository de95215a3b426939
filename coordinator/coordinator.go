// Package coordinator orchestrates turn-taking for one conversation. It is
// the single writer of the turn ledger: every mutating call is serialized
// through a private mailbox, so ledger transitions are strictly ordered no
// matter how many goroutines call in. Strategy computation, timer firing,
// and snapshot I/O run concurrently, but their results are applied to the
// ledger one at a time.
//
// Listeners are notified synchronously in ledger order and must not call
// back into the coordinator from inside OnTurnEvent.
package coordinator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/turnflow/clock"
	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/internal/metrics"
	"github.com/BaSui01/turnflow/ledger"
	"github.com/BaSui01/turnflow/registry"
	"github.com/BaSui01/turnflow/snapshot"
	"github.com/BaSui01/turnflow/strategy"
	"github.com/BaSui01/turnflow/types"
)

// maxRoundReopens caps how often a decision round may extend itself
// (unmet voting quorum, auction window extension) before the coordinator
// forces a decision timeout and rejects the round's pending requests.
const maxRoundReopens = 10

// SubmitRequest is the inbound payload for a turn request.
type SubmitRequest struct {
	ParticipantID     string
	Priority          int
	EstimatedDuration time.Duration
	Bid               *types.Bid
	Ballot            *types.Ballot
}

// Option customizes coordinator construction.
type Option func(*options)

type options struct {
	clk       clock.Clock
	logger    *zap.Logger
	collector *metrics.Collector
	store     snapshot.Store
}

// WithClock substitutes the time source, used by tests for determinism.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithSnapshotStore overrides the store built from the configuration.
func WithSnapshotStore(s snapshot.Store) Option {
	return func(o *options) { o.store = s }
}

// Coordinator runs turn allocation for a single conversation.
type Coordinator struct {
	conversationID string
	cfg            *config.Config

	led       *ledger.Ledger
	strat     strategy.Strategy
	reg       *registry.Registry
	snapshots *snapshot.Manager
	events    *dispatcher

	clk       clock.Clock
	limiter   *rate.Limiter
	collector *metrics.Collector
	logger    *zap.Logger

	mailbox  chan func()
	quit     chan struct{}
	stopped  chan struct{}
	admitSeq atomic.Uint64

	// Loop-owned state, touched only from run().
	round      *strategy.RoundState
	wakeTimer  clock.Timer
	sweepTimer clock.Timer
}

// New builds and starts a coordinator. The configuration is validated and
// then treated as immutable.
func New(conversationID string, cfg *config.Config, opts ...Option) (*Coordinator, error) {
	if conversationID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "conversation id is required")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clk == nil {
		o.clk = clock.New()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	logger := o.logger.With(
		zap.String("component", "coordinator"),
		zap.String("conversation_id", conversationID),
	)

	strat, err := strategy.New(cfg, o.logger)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store, err = snapshot.NewStore(cfg.Snapshot, o.logger)
		if err != nil {
			return nil, err
		}
	}

	c := &Coordinator{
		conversationID: conversationID,
		cfg:            cfg,
		led:            ledger.New(cfg.Turn.Slots),
		strat:          strat,
		reg:            registry.New(cfg.Registry, o.clk, o.logger),
		events:         newDispatcher(o.collector, logger),
		clk:            o.clk,
		limiter:        rate.NewLimiter(rate.Limit(cfg.Admission.RatePerSecond), cfg.Admission.Burst),
		collector:      o.collector,
		logger:         logger,
		mailbox:        make(chan func()),
		quit:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	c.snapshots = snapshot.NewManager(c, store, cfg.Snapshot.Expiry, o.clk, logger)

	go c.run()
	if cfg.Snapshot.CheckpointInterval > 0 {
		go c.checkpointLoop(cfg.Snapshot.CheckpointInterval)
	}

	logger.Info("coordinator started",
		zap.String("strategy", strat.Name()),
		zap.Int("slots", cfg.Turn.Slots),
	)
	return c, nil
}

// ConversationID returns the conversation this coordinator serves.
func (c *Coordinator) ConversationID() string { return c.conversationID }

// Close stops the coordinator. Pending mailbox commands fail with a
// COORDINATOR_CLOSED error.
func (c *Coordinator) Close() error {
	select {
	case <-c.quit:
		return nil
	default:
	}
	close(c.quit)
	<-c.stopped
	c.logger.Info("coordinator stopped")
	return nil
}

// AddListener registers a turn event listener.
func (c *Coordinator) AddListener(l Listener) {
	c.events.Add(l)
}

// RegisterParticipant adds a participant on first contact.
func (c *Coordinator) RegisterParticipant(p *types.Participant) error {
	return c.reg.Register(p)
}

// DeregisterParticipant removes a participant when their session ends.
func (c *Coordinator) DeregisterParticipant(id string) error {
	return c.reg.Deregister(id)
}

// Heartbeat refreshes a participant's presence.
func (c *Coordinator) Heartbeat(id string) error {
	return c.reg.Heartbeat(id)
}

// Submit admits a turn request. The arrival timestamp, admission sequence
// number, and handle are fixed at admission, before the request reaches the
// mailbox, so two requests submitted concurrently resolve in a
// deterministic order and retries of the admission call do not reorder
// intent. The sequence number breaks ties between requests admitted at the
// same clock instant.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (types.RequestHandle, error) {
	if !c.limiter.Allow() {
		return "", types.NewError(types.ErrAdmissionLimited, "request rate limit exceeded").
			WithRetryable(true)
	}

	handle := types.RequestHandle(uuid.New().String())
	arrivedAt := c.clk.Now()
	seq := c.admitSeq.Add(1)

	var opErr error
	err := c.exec(ctx, func() {
		opErr = c.admit(handle, arrivedAt, seq, req)
	})
	if err != nil {
		return "", err
	}
	if opErr != nil {
		return "", opErr
	}
	return handle, nil
}

// admit runs inside the loop: validate, enqueue, evaluate.
func (c *Coordinator) admit(handle types.RequestHandle, arrivedAt time.Time, seq uint64, req SubmitRequest) error {
	p, err := c.reg.Get(req.ParticipantID)
	if err != nil {
		return err
	}
	if p.Presence == types.PresenceOffline {
		return types.NewErrorf(types.ErrInvalidRequest,
			"participant %s is offline", req.ParticipantID)
	}
	if req.Priority < c.cfg.Turn.PriorityMin || req.Priority > c.cfg.Turn.PriorityMax {
		return types.NewErrorf(types.ErrInvalidRequest,
			"priority %d outside [%d, %d]",
			req.Priority, c.cfg.Turn.PriorityMin, c.cfg.Turn.PriorityMax)
	}

	tr := &types.TurnRequest{
		Handle:            handle,
		ParticipantID:     req.ParticipantID,
		Priority:          req.Priority,
		EstimatedDuration: req.EstimatedDuration,
		ArrivedAt:         arrivedAt,
		Seq:               seq,
		Bid:               req.Bid,
		Ballot:            req.Ballot,
	}
	if _, err := c.led.Enqueue(tr); err != nil {
		return err
	}

	c.evaluate(handle)
	return nil
}

// Cancel removes a still-pending request. Cancellation is atomic with
// respect to strategy evaluation: a request cannot be both cancelled and
// granted in the same decision round.
func (c *Coordinator) Cancel(ctx context.Context, handle types.RequestHandle) error {
	var opErr error
	err := c.exec(ctx, func() {
		opErr = c.led.CancelPending(handle)
	})
	if err != nil {
		return err
	}
	return opErr
}

// EndTurn ends the turn held by holderID and advances the queue. It is
// idempotent: ending an already-ended turn returns NoChange and emits no
// duplicate event.
func (c *Coordinator) EndTurn(ctx context.Context, holderID string) (types.AllocationDecision, error) {
	var decision types.AllocationDecision
	err := c.exec(ctx, func() {
		now := c.clk.Now()
		turn, ok := c.led.EndTurn(holderID, now)
		if !ok {
			decision = types.NoChange()
			return
		}
		c.emitEnded(turn, "turn ended by holder", now)
		decision = c.evaluate("")
	})
	if err != nil {
		return types.AllocationDecision{}, err
	}
	return decision, nil
}

// CurrentHolder returns the unsuspended holder of slot 0, if any.
func (c *Coordinator) CurrentHolder(ctx context.Context) (*types.Participant, bool, error) {
	var p *types.Participant
	var held bool
	err := c.exec(ctx, func() {
		id, ok := c.led.CurrentHolder(0)
		if !ok {
			return
		}
		held = true
		p, _ = c.reg.Get(id)
		if p == nil {
			p = &types.Participant{ID: id}
		}
	})
	if err != nil {
		return nil, false, err
	}
	return p, held, nil
}

// Holders returns the unsuspended holders of every slot.
func (c *Coordinator) Holders(ctx context.Context) (map[int]string, error) {
	out := make(map[int]string)
	err := c.exec(ctx, func() {
		for slot := 0; slot < c.led.Slots(); slot++ {
			if id, ok := c.led.CurrentHolder(slot); ok {
				out[slot] = id
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueuePosition returns the 1-based queue position of a pending handle,
// or 0 when it is not pending.
func (c *Coordinator) QueuePosition(ctx context.Context, handle types.RequestHandle) (int, error) {
	var pos int
	err := c.exec(ctx, func() {
		pos = c.led.Position(handle)
	})
	return pos, err
}

// Suspend freezes the conversation into a snapshot.
func (c *Coordinator) Suspend(ctx context.Context, reason string) (*snapshot.Snapshot, error) {
	return c.snapshots.Suspend(ctx, reason)
}

// Resume restores the conversation from a snapshot under the chosen
// resume strategy.
func (c *Coordinator) Resume(ctx context.Context, snapshotID string, rs snapshot.ResumeStrategy) error {
	return c.snapshots.Resume(ctx, snapshotID, rs)
}

// Checkpoint saves a non-disruptive snapshot of the current state.
func (c *Coordinator) Checkpoint(ctx context.Context) (*snapshot.Snapshot, error) {
	return c.snapshots.Checkpoint(ctx)
}

// exec runs fn inside the coordinator loop and waits for it.
func (c *Coordinator) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case c.mailbox <- wrapped:
	case <-c.stopped:
		return types.NewError(types.ErrCoordinatorClosed, "coordinator is closed")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-c.stopped:
		return types.NewError(types.ErrCoordinatorClosed, "coordinator is closed")
	}
}

// run is the single-writer loop. All ledger mutations happen here.
func (c *Coordinator) run() {
	defer close(c.stopped)
	c.sweepTimer = c.clk.NewTimer(c.cfg.Registry.IdleAfter)

	for {
		var wakeC, sweepC <-chan time.Time
		if c.wakeTimer != nil {
			wakeC = c.wakeTimer.C()
		}
		if c.sweepTimer != nil {
			sweepC = c.sweepTimer.C()
		}

		select {
		case fn := <-c.mailbox:
			fn()
		case <-wakeC:
			c.wakeTimer = nil
			c.onWake()
		case <-sweepC:
			c.onSweep()
			c.sweepTimer = c.clk.NewTimer(c.cfg.Registry.IdleAfter)
		case <-c.quit:
			if c.wakeTimer != nil {
				c.wakeTimer.Stop()
			}
			if c.sweepTimer != nil {
				c.sweepTimer.Stop()
			}
			return
		}
	}
}

// onWake processes due deadlines. Expired turns are ended first, then the
// strategy is re-evaluated once against the post-expiry view, so preemption
// grace expiries are acted on before any auction or voting round closure in
// the same tick.
func (c *Coordinator) onWake() {
	now := c.clk.Now()

	for slot := 0; slot < c.led.Slots(); slot++ {
		turn, ok := c.led.ActiveTurn(slot)
		if !ok || turn.State != types.TurnActive {
			continue
		}
		if !turn.Deadline.After(now) {
			ended, ok := c.led.EndTurn(turn.ParticipantID, now)
			if ok {
				c.emitEnded(ended, "turn deadline reached", now)
			}
		}
	}

	c.evaluate("")
}

// onSweep demotes silent participants and cancels pending requests of
// anyone who went offline, identically to an explicit cancellation.
func (c *Coordinator) onSweep() {
	now := c.clk.Now()
	for _, id := range c.reg.Sweep() {
		for _, handle := range c.led.PendingFor(id) {
			if err := c.led.CancelPending(handle); err != nil {
				continue
			}
			c.publish(types.TurnEvent{
				Type:          types.EventTurnRejected,
				ParticipantID: id,
				Handle:        handle,
				Reason:        "participant went offline",
				Timestamp:     now,
			})
		}
	}
}

// presentParticipants lists everyone not offline.
func (c *Coordinator) presentParticipants() []*types.Participant {
	var out []*types.Participant
	for _, p := range c.reg.List() {
		if p.Presence != types.PresenceOffline {
			out = append(out, p)
		}
	}
	return out
}

// evaluate invokes the strategy and folds its outcome into the ledger.
// Only ever called from inside the loop.
func (c *Coordinator) evaluate(trigger types.RequestHandle) types.AllocationDecision {
	now := c.clk.Now()
	started := time.Now()

	out, err := c.strat.Decide(strategy.Input{
		Now:          now,
		View:         c.led.View(),
		Participants: c.presentParticipants(),
		Round:        c.round,
		Trigger:      trigger,
	})
	if c.collector != nil {
		c.collector.RecordDecision(c.strat.Name(), time.Since(started))
	}
	if err != nil {
		// The triggering request is rejected rather than silently dropped.
		c.logger.Error("strategy decision failed", zap.Error(err))
		if trigger != "" {
			out = strategy.Outcome{Decision: types.Reject(err.Error(), trigger)}
		} else {
			return types.NoChange()
		}
	}

	if out.Round != nil && out.Round.Seq > maxRoundReopens {
		out = c.forceDecisionTimeout(out)
	}

	c.apply(out, now)
	return out.Decision
}

// forceDecisionTimeout rejects every request still pending in a round that
// keeps reopening without resolution, and restarts admission for the next
// round. Pending requests are never silently dropped.
func (c *Coordinator) forceDecisionTimeout(out strategy.Outcome) strategy.Outcome {
	c.logger.Warn("decision round exceeded its deadline, rejecting round",
		zap.String("round_kind", string(out.Round.Kind)),
		zap.Int("reopens", out.Round.Seq),
	)
	if c.collector != nil {
		c.collector.RecordRound(string(out.Round.Kind), "escalated")
	}

	var handles []types.RequestHandle
	for _, p := range c.led.View().Pending {
		handles = append(handles, p.Handle)
	}
	return strategy.Outcome{
		Decision: types.Reject("decision timeout: round did not resolve within its deadline", handles...),
	}
}

// apply folds one strategy outcome into the ledger and emits its events.
func (c *Coordinator) apply(out strategy.Outcome, now time.Time) {
	if len(out.Absorbed) > 0 {
		c.led.Resolve(out.Absorbed, "absorbed")
	}

	prevRound := c.round
	c.round = out.Round
	if c.collector != nil && prevRound != nil && out.Round == nil {
		c.collector.RecordRound(string(prevRound.Kind), "settled")
	}

	d := out.Decision
	switch d.Kind {
	case types.DecisionGrant:
		c.applyGrants(d.Grants, now)

	case types.DecisionQueue:
		if req, ok := c.led.Lookup(d.Handle); ok {
			c.publish(types.TurnEvent{
				Type:          types.EventTurnQueued,
				ParticipantID: req.ParticipantID,
				Handle:        d.Handle,
				Position:      d.Position,
				Timestamp:     now,
			})
			c.recordDecision("queue")
		}

	case types.DecisionPreempt:
		// The preempted holder is notified before the new grant takes
		// effect, preserving perceived fairness.
		slot, ok := c.led.HolderOf(d.PreemptedID)
		if !ok {
			c.logger.Warn("preempt target no longer holds a turn",
				zap.String("participant_id", d.PreemptedID))
			break
		}
		preempted, err := c.led.Preempt(slot, now)
		if err != nil {
			c.logger.Error("preemption failed", zap.Error(err))
			break
		}
		c.publish(types.TurnEvent{
			Type:          types.EventTurnPreempted,
			ParticipantID: preempted.ParticipantID,
			Handle:        preempted.Handle,
			Slot:          slot,
			Timestamp:     now,
		})
		if c.collector != nil {
			c.collector.RecordPreemption(c.strat.Name())
		}
		c.applyGrants(d.Grants, now)

	case types.DecisionReject:
		removed := c.led.Resolve(d.Rejected, "rejected")
		for _, req := range removed {
			c.publish(types.TurnEvent{
				Type:          types.EventTurnRejected,
				ParticipantID: req.ParticipantID,
				Handle:        req.Handle,
				Reason:        d.Reason,
				Timestamp:     now,
			})
			c.recordDecision("reject")
		}

	case types.DecisionNoChange:
	}

	for participantID, charge := range d.Charges {
		c.logger.Info("bid charged",
			zap.String("participant_id", participantID),
			zap.Float64("amount", charge),
		)
	}

	c.updateGauges()
	c.rearmWake(out.Wake)
}

// applyGrants activates each granted slot and emits its event.
func (c *Coordinator) applyGrants(grants []types.GrantSpec, now time.Time) {
	for _, spec := range grants {
		turn, err := c.led.Grant(spec, c.cfg.Turn.MinGuaranteed, true, now)
		if err != nil {
			c.logger.Error("grant could not be applied",
				zap.String("handle", string(spec.Handle)),
				zap.Error(err),
			)
			continue
		}
		c.publish(types.TurnEvent{
			Type:          types.EventTurnGranted,
			ParticipantID: turn.ParticipantID,
			Handle:        turn.Handle,
			Slot:          turn.Slot,
			Deadline:      turn.Deadline,
			Timestamp:     now,
		})
		c.recordDecision("grant")
	}
}

func (c *Coordinator) emitEnded(turn *types.Turn, reason string, now time.Time) {
	c.publish(types.TurnEvent{
		Type:          types.EventTurnEnded,
		ParticipantID: turn.ParticipantID,
		Handle:        turn.Handle,
		Slot:          turn.Slot,
		Reason:        reason,
		Timestamp:     now,
	})
	if c.collector != nil {
		c.collector.RecordTurnEnded(c.strat.Name(), now.Sub(turn.StartedAt))
	}
}

// publish stamps the event with the conversation and the next ledger
// sequence number and fans it out. Events therefore carry a strictly
// increasing sequence in ledger application order.
func (c *Coordinator) publish(ev types.TurnEvent) {
	ev.ConversationID = c.conversationID
	ev.Sequence = c.led.NextSeq()
	c.events.Publish(context.Background(), ev)
}

func (c *Coordinator) recordDecision(outcome string) {
	if c.collector != nil {
		c.collector.RecordRequest(c.strat.Name(), outcome)
	}
}

func (c *Coordinator) updateGauges() {
	if c.collector == nil {
		return
	}
	c.collector.RecordQueueDepth(c.conversationID, c.led.PendingCount())
	active := 0
	for slot := 0; slot < c.led.Slots(); slot++ {
		if _, ok := c.led.CurrentHolder(slot); ok {
			active++
		}
	}
	c.collector.RecordActiveTurns(c.conversationID, active)
}

// rearmWake schedules the next deadline-driven evaluation: the earliest of
// the strategy's requested wake, any unsuspended turn deadline, and the
// open round deadline.
func (c *Coordinator) rearmWake(wake *time.Time) {
	var next time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}

	if wake != nil {
		consider(*wake)
	}
	for slot := 0; slot < c.led.Slots(); slot++ {
		if turn, ok := c.led.ActiveTurn(slot); ok && turn.State == types.TurnActive {
			consider(turn.Deadline)
		}
	}
	if c.round != nil {
		consider(c.round.Deadline)
	}

	if c.wakeTimer != nil {
		c.wakeTimer.Stop()
		c.wakeTimer = nil
	}
	if next.IsZero() {
		return
	}
	d := next.Sub(c.clk.Now())
	if d < 0 {
		d = 0
	}
	c.wakeTimer = c.clk.NewTimer(d)
}

// checkpointLoop periodically saves non-disruptive snapshots.
func (c *Coordinator) checkpointLoop(interval time.Duration) {
	for {
		t := c.clk.NewTimer(interval)
		select {
		case <-t.C():
			if _, err := c.snapshots.Checkpoint(context.Background()); err != nil {
				c.logger.Warn("checkpoint failed", zap.Error(err))
			}
		case <-c.quit:
			t.Stop()
			return
		}
	}
}

// Capture implements snapshot.Suspendable: a consistent copy of the
// current state without disturbing the active turn.
func (c *Coordinator) Capture(ctx context.Context) (*snapshot.CoordinatorState, error) {
	var state *snapshot.CoordinatorState
	err := c.exec(ctx, func() {
		state = c.captureState()
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Freeze implements snapshot.Suspendable: suspend every active turn and
// capture the frozen state. Fails when nothing is active.
func (c *Coordinator) Freeze(ctx context.Context, reason string) (*snapshot.CoordinatorState, error) {
	var state *snapshot.CoordinatorState
	var opErr error
	err := c.exec(ctx, func() {
		now := c.clk.Now()
		suspended := 0
		for slot := 0; slot < c.led.Slots(); slot++ {
			turn, ok := c.led.ActiveTurn(slot)
			if !ok || turn.State != types.TurnActive {
				continue
			}
			if _, err := c.led.Suspend(slot, now); err != nil {
				opErr = err
				return
			}
			suspended++
			c.publish(types.TurnEvent{
				Type:          types.EventTurnSuspended,
				ParticipantID: turn.ParticipantID,
				Handle:        turn.Handle,
				Slot:          slot,
				Reason:        reason,
				Timestamp:     now,
			})
		}
		if suspended == 0 {
			opErr = types.NewError(types.ErrInvalidTransition,
				"suspend is only valid against an active turn")
			return
		}
		state = c.captureState()
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return state, nil
}

// captureState runs inside the loop.
func (c *Coordinator) captureState() *snapshot.CoordinatorState {
	return &snapshot.CoordinatorState{
		ConversationID: c.conversationID,
		Ledger:         c.led.Export(),
		Presence:       c.reg.PresenceMap(),
		Round:          c.round.Clone(),
	}
}

// Restore implements snapshot.Suspendable: replace the coordination state
// with a restored one and re-enter it per the resume strategy.
func (c *Coordinator) Restore(ctx context.Context, state *snapshot.CoordinatorState, rs snapshot.ResumeStrategy) error {
	var opErr error
	err := c.exec(ctx, func() {
		opErr = c.restoreState(state, rs)
	})
	if err != nil {
		return err
	}
	return opErr
}

func (c *Coordinator) restoreState(state *snapshot.CoordinatorState, rs snapshot.ResumeStrategy) error {
	if state == nil {
		return types.NewError(types.ErrInvalidRequest, "nil coordinator state")
	}
	if state.Round != nil && !state.Round.Valid() {
		return types.NewErrorf(types.ErrUnsupportedVersion,
			"round state version %d is not supported", state.Round.Version)
	}
	if err := c.led.Import(state.Ledger); err != nil {
		return err
	}
	c.reg.RestorePresence(state.Presence)

	now := c.clk.Now()
	switch rs {
	case snapshot.ResumeContinue:
		// Replay exactly where interrupted: round state survives.
		c.round = state.Round.Clone()
		c.reactivateSuspended(now)

	case snapshot.ResumeRetryStep:
		// Redo the in-flight decision step: the round's partial output
		// (collected bids, ballots) is discarded, the queue survives.
		c.round = nil
		c.reactivateSuspended(now)

	case snapshot.ResumeRestartClean:
		// Discard all partial progress: suspended turns are abandoned,
		// the original request queue survives.
		c.round = nil
		for slot := 0; slot < c.led.Slots(); slot++ {
			turn, ok := c.led.ActiveTurn(slot)
			if !ok || turn.State != types.TurnSuspended {
				continue
			}
			ended, err := c.led.Abandon(slot, now)
			if err != nil {
				return err
			}
			c.emitEnded(ended, "abandoned on clean restart", now)
		}

	default:
		return types.NewErrorf(types.ErrInvalidRequest, "unknown resume strategy %q", rs)
	}

	c.evaluate("")
	return nil
}

func (c *Coordinator) reactivateSuspended(now time.Time) {
	for slot := 0; slot < c.led.Slots(); slot++ {
		turn, ok := c.led.ActiveTurn(slot)
		if !ok || turn.State != types.TurnSuspended {
			continue
		}
		resumed, err := c.led.Resume(slot, now)
		if err != nil {
			c.logger.Error("turn resume failed", zap.Int("slot", slot), zap.Error(err))
			continue
		}
		c.publish(types.TurnEvent{
			Type:          types.EventTurnResumed,
			ParticipantID: resumed.ParticipantID,
			Handle:        resumed.Handle,
			Slot:          slot,
			Deadline:      resumed.Deadline,
			Timestamp:     now,
		})
	}
}
