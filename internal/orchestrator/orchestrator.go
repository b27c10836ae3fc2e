package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentloop/internal/logging"
	"github.com/fyrsmithlabs/agentloop/internal/memory"
	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

var tracer = otel.Tracer("agentloop/orchestrator")

// Deps are the collaborators of an Orchestrator. Context, Memory and
// Responder may be nil. Without a Responder a plan that selects no tools
// is itself the answer.
type Deps struct {
	Planner   Planner
	Context   ContextRetriever
	Memory    MemorySink
	Registry  ToolRegistry
	Responder Responder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStateStore persists the run on every phase entry and after approval
// decisions, and lets Resume recover runs unknown in memory.
func WithStateStore(s StateStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithClock replaces time.Now for message and state timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// run owns one RunState. mu serialises every phase execution on it; snap
// is the latest published copy for readers that must not block.
type run struct {
	mu    sync.Mutex
	state *RunState
	snap  atomic.Pointer[RunState]
}

func (r *run) publish() {
	r.snap.Store(r.state.Clone())
}

// Orchestrator drives runs through the phase state machine.
type Orchestrator struct {
	planner   Planner
	retriever ContextRetriever
	sink      MemorySink
	registry  ToolRegistry
	responder Responder
	store     StateStore
	cfg       Config
	logger    *logging.Logger
	now       func() time.Time

	mu   sync.Mutex
	runs map[Key]*run

	listenersMu sync.RWMutex
	listeners   []listenerEntry
}

// New creates an Orchestrator. Planner and Registry are required.
func New(deps Deps, cfg Config, logger *logging.Logger, opts ...Option) (*Orchestrator, error) {
	if deps.Planner == nil {
		return nil, errors.New("orchestrator: planner is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("orchestrator: tool registry is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	cfg.applyDefaults()

	o := &Orchestrator{
		planner:   deps.Planner,
		retriever: deps.Context,
		sink:      deps.Memory,
		registry:  deps.Registry,
		responder: deps.Responder,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		now:       time.Now,
		runs:      make(map[Key]*run),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store != nil {
		o.OnAnyPhase(func(ctx context.Context, _ Phase, state *RunState) error {
			return o.store.Save(context.WithoutCancel(ctx), state)
		})
	}
	return o, nil
}

// Config returns the effective limits.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// ProcessMessage starts a new cycle for (sessionID, taskID) and drives it
// until Completed or AwaitingApproval. History from an earlier run of the
// same key carries over; an unresolved approval is superseded. An empty
// sessionID gets a fresh one. Failures inside the cycle are reported
// through the returned state, not the error.
func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionID, taskID string) (*RunState, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	key := Key{SessionID: sessionID, TaskID: taskID}
	ctx = logging.WithRun(ctx, sessionID, taskID)

	ctx, span := tracer.Start(ctx, "orchestrator.process_message")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.String("task.id", taskID))

	r := o.runFor(key)
	r.mu.Lock()
	defer r.mu.Unlock()

	state := NewRunState(sessionID, taskID)
	prev := r.state
	if prev == nil && o.store != nil {
		if loaded, err := o.store.Load(ctx, sessionID, taskID); err == nil {
			prev = loaded
		}
	}
	if prev != nil {
		state.Messages = slices.Clone(prev.Messages)
		if prev.Phase == PhaseAwaitingApproval {
			o.logger.Info(ctx, "new message supersedes pending approval",
				zap.Strings("pending", prev.PendingApprovals))
		}
	}
	state.UpdatedAt = o.now()
	r.state = state

	o.appendMessage(ctx, state, RoleUser, message)
	o.transition(ctx, r, PhasePlanning)
	o.drive(ctx, r)

	span.SetAttributes(
		attribute.String("phase", string(state.Phase)),
		attribute.Int("iterations", state.IterationCount),
	)
	return state.Clone(), nil
}

// ApproveTools removes names from the pending set. Once nothing is pending
// the run executes and continues to its next stop. Names that are not
// pending are ignored.
func (o *Orchestrator) ApproveTools(ctx context.Context, sessionID, taskID string, names []string) (*RunState, error) {
	ctx = logging.WithRun(ctx, sessionID, taskID)
	r, err := o.lookup(ctx, Key{SessionID: sessionID, TaskID: taskID})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state
	if state.Phase != PhaseAwaitingApproval {
		return nil, fmt.Errorf("%w: phase is %s", ErrNotAwaitingApproval, state.Phase)
	}

	for _, name := range names {
		if i := slices.Index(state.PendingApprovals, name); i >= 0 {
			state.PendingApprovals = slices.Delete(state.PendingApprovals, i, i+1)
			state.ApprovedTools = append(state.ApprovedTools, name)
		}
	}
	o.logger.Info(ctx, "tools approved",
		zap.Strings("names", names),
		zap.Strings("still_pending", state.PendingApprovals))

	if len(state.PendingApprovals) == 0 {
		o.transition(ctx, r, PhaseExecuting)
		o.drive(ctx, r)
	} else {
		o.touch(ctx, r)
	}
	return state.Clone(), nil
}

// RejectTools drops names from the selection so they never run this cycle.
// If that empties the pending set the run returns to Planning with the
// rejection noted in its history; the iteration count is unchanged.
func (o *Orchestrator) RejectTools(ctx context.Context, sessionID, taskID string, names []string) (*RunState, error) {
	ctx = logging.WithRun(ctx, sessionID, taskID)
	r, err := o.lookup(ctx, Key{SessionID: sessionID, TaskID: taskID})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state
	if state.Phase != PhaseAwaitingApproval {
		return nil, fmt.Errorf("%w: phase is %s", ErrNotAwaitingApproval, state.Phase)
	}

	var rejected []string
	for _, name := range names {
		i := slices.Index(state.SelectedTools, name)
		if i < 0 {
			continue
		}
		state.SelectedTools = slices.Delete(state.SelectedTools, i, i+1)
		state.PendingApprovals = slices.DeleteFunc(state.PendingApprovals, func(n string) bool { return n == name })
		delete(state.ToolArgs, name)
		delete(state.ToolResults, name)
		rejected = append(rejected, name)
	}
	if len(rejected) > 0 {
		o.appendMessage(ctx, state, RoleSystem, "User rejected tools: "+strings.Join(rejected, ", "))
	}
	o.logger.Info(ctx, "tools rejected",
		zap.Strings("names", rejected),
		zap.Strings("still_pending", state.PendingApprovals))

	switch {
	case len(state.PendingApprovals) > 0:
		o.touch(ctx, r)
	case len(rejected) > 0:
		o.transition(ctx, r, PhasePlanning)
		o.drive(ctx, r)
	default:
		o.transition(ctx, r, PhaseExecuting)
		o.drive(ctx, r)
	}
	return state.Clone(), nil
}

// Resume re-enters AwaitingApproval for a run, loading it from the state
// store when it is not in memory. Calling it repeatedly is safe. A run
// with nothing left pending proceeds to execution.
func (o *Orchestrator) Resume(ctx context.Context, sessionID, taskID string) (*RunState, error) {
	ctx = logging.WithRun(ctx, sessionID, taskID)
	r, err := o.lookup(ctx, Key{SessionID: sessionID, TaskID: taskID})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Phase != PhaseAwaitingApproval {
		return nil, fmt.Errorf("%w: phase is %s", ErrNotAwaitingApproval, r.state.Phase)
	}
	if len(r.state.PendingApprovals) == 0 {
		o.transition(ctx, r, PhaseExecuting)
		o.drive(ctx, r)
	} else {
		o.transition(ctx, r, PhaseAwaitingApproval)
	}
	return r.state.Clone(), nil
}

// State returns the latest snapshot of a run without waiting for an
// in-flight phase.
func (o *Orchestrator) State(sessionID, taskID string) (*RunState, bool) {
	o.mu.Lock()
	r, ok := o.runs[Key{SessionID: sessionID, TaskID: taskID}]
	o.mu.Unlock()
	if !ok {
		return nil, false
	}
	snap := r.snap.Load()
	if snap == nil {
		return nil, false
	}
	return snap.Clone(), true
}

// Runs returns snapshots of every run in memory, most recently updated
// first.
func (o *Orchestrator) Runs() []*RunState {
	o.mu.Lock()
	out := make([]*RunState, 0, len(o.runs))
	for _, r := range o.runs {
		if snap := r.snap.Load(); snap != nil {
			out = append(out, snap.Clone())
		}
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Forget drops a run from memory. It reports whether the run existed.
func (o *Orchestrator) Forget(sessionID, taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := Key{SessionID: sessionID, TaskID: taskID}
	_, ok := o.runs[key]
	delete(o.runs, key)
	return ok
}

func (o *Orchestrator) runFor(key Key) *run {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[key]
	if !ok {
		r = &run{}
		o.runs[key] = r
	}
	return r
}

// lookup finds a run in memory or, failing that, in the state store.
func (o *Orchestrator) lookup(ctx context.Context, key Key) (*run, error) {
	o.mu.Lock()
	r, ok := o.runs[key]
	o.mu.Unlock()
	if ok {
		r.mu.Lock()
		known := r.state != nil
		r.mu.Unlock()
		if known {
			return r, nil
		}
	}
	if o.store == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, key.SessionID, key.TaskID)
	}

	state, err := o.store.Load(ctx, key.SessionID, key.TaskID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading run %s/%s: %w", key.SessionID, key.TaskID, err)
	}

	r = o.runFor(key)
	r.mu.Lock()
	if r.state == nil {
		r.state = state
		r.publish()
	}
	r.mu.Unlock()
	return r, nil
}

// drive runs phases until the run stops.
func (o *Orchestrator) drive(ctx context.Context, r *run) {
	state := r.state
	for {
		switch state.Phase {
		case PhasePlanning:
			if err := o.plan(ctx, state); err != nil {
				o.fail(ctx, r, PhasePlanning, err)
				return
			}
			o.transition(ctx, r, PhaseToolSelection)

		case PhaseToolSelection:
			next := o.selectTools(ctx, state)
			o.storeTask(ctx, state)
			if next == PhaseCompleted {
				o.complete(ctx, r, o.respond(ctx, state))
				return
			}
			o.transition(ctx, r, next)

		case PhaseExecuting:
			if err := o.execute(ctx, state); err != nil {
				o.fail(ctx, r, PhaseExecuting, err)
				return
			}
			o.transition(ctx, r, PhaseReflecting)

		case PhaseReflecting:
			done, err := o.reflect(ctx, state)
			if err != nil {
				o.fail(ctx, r, PhaseReflecting, err)
				return
			}
			if done {
				o.complete(ctx, r, state.Reflection)
				return
			}
			o.transition(ctx, r, PhasePlanning)

		default:
			// AwaitingApproval, Completed and Idle all wait for the caller.
			return
		}
	}
}

func (o *Orchestrator) plan(ctx context.Context, state *RunState) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PlanningTimeout)
	defer cancel()

	query := state.LastUserMessage()
	state.MemoryContext = nil
	if o.retriever != nil {
		state.MemoryContext = o.retriever.RetrieveContext(ctx, query, state.SessionID, state.TaskID, o.cfg.MemoryRetrievalK)
	}

	prompt := planningPrompt(state, o.registry)
	o.logger.Trace(ctx, "planning prompt", zap.Int("context_items", len(state.MemoryContext)), zap.String("prompt", prompt))
	plan, err := o.planner.GeneratePlan(ctx, prompt)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("planning timed out after %s: %w", o.cfg.PlanningTimeout, err)
		}
		return err
	}
	if plan.Fallback {
		o.logger.Warn(ctx, "plan response was not structured, no tools selected")
	}

	state.Plan = plan.Plan
	state.Reasoning = plan.Reasoning
	state.SelectedTools = dedupe(plan.Tools)
	state.ToolArgs = plan.Arguments
	state.ToolResults = map[string]ToolResult{}
	state.PendingApprovals = []string{}
	state.ApprovedTools = nil
	return nil
}

// selectTools drops unknown tools and decides between approval and
// execution.
func (o *Orchestrator) selectTools(ctx context.Context, state *RunState) Phase {
	valid := make([]string, 0, len(state.SelectedTools))
	for _, name := range state.SelectedTools {
		if o.registry.Has(name) {
			valid = append(valid, name)
			continue
		}
		o.logger.Debug(ctx, "dropping unknown tool from plan", zap.String("tool", name))
	}
	state.SelectedTools = valid
	for name := range state.ToolArgs {
		if !slices.Contains(valid, name) {
			delete(state.ToolArgs, name)
		}
	}
	if len(valid) == 0 {
		return PhaseCompleted
	}

	pending := []string{}
	for _, name := range valid {
		if def, ok := o.registry.Get(name); ok && def.Permission == tools.RequireConfirmation {
			pending = append(pending, name)
		}
	}
	state.PendingApprovals = pending
	if len(pending) > 0 {
		return PhaseAwaitingApproval
	}
	return PhaseExecuting
}

// execute runs every selected tool that is not pending. A failing tool is
// recorded and the batch continues; a tool missing from the registry is a
// fault for the whole cycle.
func (o *Orchestrator) execute(ctx context.Context, state *RunState) error {
	for _, name := range state.SelectedTools {
		if slices.Contains(state.PendingApprovals, name) {
			toolExecutions.WithLabelValues(name, outcomeSkipped).Inc()
			continue
		}
		def, ok := o.registry.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
		}
		if def.Permission == tools.RequireConfirmation && !slices.Contains(state.ApprovedTools, name) {
			o.logger.Warn(ctx, "tool now requires confirmation, skipping", zap.String("tool", name))
			toolExecutions.WithLabelValues(name, outcomeSkipped).Inc()
			continue
		}

		result, outcome := o.invoke(ctx, def, state.ToolArgs[name])
		state.ToolResults[name] = result
		toolExecutions.WithLabelValues(name, outcome).Inc()
		o.logger.Debug(ctx, "tool executed",
			zap.String("tool", name),
			zap.String("outcome", outcome))
	}
	return nil
}

// timeoutError matches errors that report Timeout() like net.Error.
type timeoutError interface{ Timeout() bool }

func (o *Orchestrator) invoke(ctx context.Context, def tools.Definition, args map[string]any) (ToolResult, string) {
	if def.Permission == tools.Blocked {
		return ToolResult{Error: tools.ErrBlocked.Error()}, outcomeFailure
	}
	validated, err := def.Schema.Validate(args)
	if err != nil {
		return ToolResult{Error: err.Error()}, outcomeFailure
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.ExecutionTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "orchestrator.tool", trace.WithAttributes(attribute.String("tool", def.Name)))
	defer span.End()

	res, err := safeInvoke(ctx, def.Capability, validated)
	if err != nil {
		var t timeoutError
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &t) && t.Timeout()) {
			return ToolResult{Error: "timed out"}, outcomeTimeout
		}
		span.RecordError(err)
		return ToolResult{Error: err.Error()}, outcomeFailure
	}
	return ToolResult{Success: true, Result: res}, outcomeSuccess
}

func safeInvoke(ctx context.Context, c tools.Capability, args map[string]any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return c.Invoke(ctx, args)
}

// reflect asks for a reflection, counts the iteration and records the
// interaction. It reports whether the run is done.
func (o *Orchestrator) reflect(ctx context.Context, state *RunState) (bool, error) {
	rctx, cancel := context.WithTimeout(ctx, o.cfg.PlanningTimeout)
	defer cancel()

	refl, err := o.planner.Reflect(rctx, reflectionPrompt(state))
	if err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("reflection timed out after %s: %w", o.cfg.PlanningTimeout, err)
		}
		return false, err
	}
	state.Reflection = refl.Reflection
	state.IterationCount++

	o.storeInteraction(ctx, state)

	// The iteration cap is checked here and only here.
	switch {
	case state.IterationCount >= o.cfg.MaxIterations:
		o.logger.Info(ctx, "iteration limit reached", zap.Int("max_iterations", o.cfg.MaxIterations))
		return true, nil
	case refl.Completed, indicatesCompletion(refl.Reflection):
		return true, nil
	}
	return false, nil
}

func (o *Orchestrator) storeInteraction(ctx context.Context, state *RunState) {
	if o.sink == nil {
		return
	}
	used := make([]string, 0, len(state.ToolResults))
	results := make(map[string]any, len(state.ToolResults))
	for _, name := range state.SelectedTools {
		if res, ok := state.ToolResults[name]; ok {
			used = append(used, name)
			results[name] = res
		}
	}
	_, err := o.sink.StoreInteraction(context.WithoutCancel(ctx), memory.Interaction{
		SessionID:  state.SessionID,
		TaskID:     state.TaskID,
		UserInput:  state.LastUserMessage(),
		Plan:       state.Plan,
		ToolsUsed:  used,
		Results:    results,
		Reflection: state.Reflection,
	})
	if err != nil {
		o.logger.Warn(ctx, "storing interaction failed", zap.Error(err))
	}
}

// fail records a fault, passes through Error and finishes in Completed.
// ErrorMessage is kept on the final state.
func (o *Orchestrator) fail(ctx context.Context, r *run, phase Phase, err error) {
	state := r.state
	state.ErrorMessage = fmt.Sprintf("%s error: %v", phase, err)
	o.logger.Error(ctx, "run failed",
		zap.String("phase", string(phase)),
		zap.Int("iteration", state.IterationCount),
		zap.Error(err))
	trace.SpanFromContext(ctx).RecordError(err)

	o.transition(ctx, r, PhaseError)
	if o.sink != nil {
		serr := o.sink.StoreError(context.WithoutCancel(ctx), state.SessionID, memory.ErrorContext{
			Error:     state.ErrorMessage,
			Phase:     string(phase),
			Iteration: state.IterationCount,
			TaskID:    state.TaskID,
		})
		if serr != nil {
			o.logger.Warn(ctx, "storing error context failed", zap.Error(serr))
		}
	}
	o.finishTask(ctx, state, memory.TaskFailed)
	o.transition(ctx, r, PhaseCompleted)
}

func (o *Orchestrator) complete(ctx context.Context, r *run, answer string) {
	if answer != "" {
		o.appendMessage(ctx, r.state, RoleAssistant, answer)
	}
	o.finishTask(ctx, r.state, memory.TaskCompleted)
	o.transition(ctx, r, PhaseCompleted)
}

// respond returns the answer for a run that selected no tools. The plan
// text is used when there is no Responder or it fails.
func (o *Orchestrator) respond(ctx context.Context, state *RunState) string {
	if o.responder == nil {
		return state.Plan
	}
	rctx, cancel := context.WithTimeout(ctx, o.cfg.PlanningTimeout)
	defer cancel()

	answer, err := o.responder.GenerateResponse(rctx, state.LastUserMessage(), state.MemoryContext)
	if err != nil {
		o.logger.Warn(ctx, "generating response failed, answering with plan", zap.Error(err))
		return state.Plan
	}
	if strings.TrimSpace(answer) == "" {
		return state.Plan
	}
	return answer
}

// storeTask upserts the task record once the plan and its tools are known.
func (o *Orchestrator) storeTask(ctx context.Context, state *RunState) {
	if o.sink == nil || state.TaskID == "" {
		return
	}
	message := state.LastUserMessage()
	err := o.sink.StoreTaskMemory(context.WithoutCancel(ctx), memory.TaskRecord{
		TaskID:      state.TaskID,
		SessionID:   state.SessionID,
		Title:       taskTitle(message),
		Description: message,
		Plan:        state.Plan,
		ToolsUsed:   slices.Clone(state.SelectedTools),
		Status:      memory.TaskActive,
	})
	if err != nil {
		o.logger.Warn(ctx, "storing task failed", zap.Error(err))
	}
}

// finishTask records the final status and tool results of the task.
func (o *Orchestrator) finishTask(ctx context.Context, state *RunState, status string) {
	if o.sink == nil || state.TaskID == "" {
		return
	}
	results := make(map[string]any, len(state.ToolResults))
	for name, res := range state.ToolResults {
		results[name] = res
	}
	found, err := o.sink.UpdateTaskStatus(context.WithoutCancel(ctx), state.TaskID, status, results)
	switch {
	case err != nil:
		o.logger.Warn(ctx, "updating task status failed", zap.String("status", status), zap.Error(err))
	case !found:
		o.logger.Debug(ctx, "no task record to update", zap.String("status", status))
	}
}

func (o *Orchestrator) appendMessage(ctx context.Context, state *RunState, role, content string) {
	state.Messages = append(state.Messages, Message{Role: role, Content: content, Timestamp: o.now()})
	if o.sink == nil || role == RoleSystem {
		return
	}
	if _, err := o.sink.StoreConversationTurn(context.WithoutCancel(ctx), state.SessionID, role, content); err != nil {
		o.logger.Warn(ctx, "storing conversation turn failed", zap.String("role", role), zap.Error(err))
	}
}

// transition enters phase and notifies listeners.
func (o *Orchestrator) transition(ctx context.Context, r *run, phase Phase) {
	state := r.state
	state.Phase = phase
	state.UpdatedAt = o.now()
	r.publish()

	phaseTransitions.WithLabelValues(string(phase)).Inc()
	trace.SpanFromContext(ctx).AddEvent("phase", trace.WithAttributes(
		attribute.String("phase", string(phase)),
		attribute.Int("iteration", state.IterationCount),
	))
	o.logger.Debug(ctx, "phase transition",
		zap.String("phase", string(phase)),
		zap.Int("iteration", state.IterationCount))

	o.notify(ctx, phase, state)
}

// touch publishes and persists a change that did not move the phase.
func (o *Orchestrator) touch(ctx context.Context, r *run) {
	r.state.UpdatedAt = o.now()
	r.publish()
	if o.store == nil {
		return
	}
	if err := o.store.Save(context.WithoutCancel(ctx), r.state.Clone()); err != nil {
		o.logger.Warn(ctx, "saving run state failed", zap.Error(err))
	}
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
