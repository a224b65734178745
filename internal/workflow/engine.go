// Package workflow runs linear, caller-interactive workflows. An Engine owns
// the active instances, advances them as responses arrive and runs action
// steps through the invoker's action registry.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/definition"
	"github.com/pitabwire/jiramcp/internal/invoker"
	"github.com/pitabwire/jiramcp/internal/observability"
	"github.com/pitabwire/jiramcp/model"
)

// Engine manages the lifecycle of workflow instances.
//
// Tool calls arrive on several goroutines, so every operation holds the
// engine lock until it completes, including while an action step runs.
type Engine struct {
	mu       sync.Mutex
	registry *definition.Registry
	store    InstanceStore
	actions  *invoker.ActionRegistry
	sink     EventSink
	clock    clockwork.Clock
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithEventSink sets where workflow events are recorded. The default
// discards them.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithClock sets the clock used for instance and event timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics enables Prometheus workflow metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a new workflow engine.
func NewEngine(
	registry *definition.Registry,
	store InstanceStore,
	actions *invoker.ActionRegistry,
	opts ...Option,
) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		actions:  actions,
		sink:     nopEventSink{},
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates an instance of the definition positioned at its entry step.
// The instance data is a copy of initial. An instance already active for the
// same definition is replaced.
func (e *Engine) Start(ctx context.Context, definitionID string, initial model.Data) (inst model.WorkflowInstance, err error) {
	ctx, span := observability.StartSpan(ctx, "workflow.start",
		observability.AttrWorkflowID.String(definitionID),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Look up workflow definition.
	wfDef, ok := e.registry.Get(definitionID)
	if !ok {
		return model.WorkflowInstance{}, model.NewDefinitionNotFoundError(definitionID)
	}

	// 2. Resolve the entry step.
	entry, ok := wfDef.EntryStep()
	if !ok {
		return model.WorkflowInstance{}, model.NewBadRequestError(
			fmt.Sprintf("Workflow %s has no steps", definitionID),
		)
	}

	// 3. Create and store the instance.
	now := e.clock.Now().UTC()
	inst = model.WorkflowInstance{
		DefinitionID:  definitionID,
		CurrentStepID: entry.ID,
		Data:          initial.Clone(),
		StartedAt:     now,
		UpdatedAt:     now,
	}
	_, restarted := e.store.Get(definitionID)
	e.store.Put(inst)

	// 4. Record the start.
	e.appendEvent(ctx, definitionID, entry.ID, model.EventStarted, "", "")
	e.metrics.RecordWorkflowStart(definitionID, restarted)

	observability.RequestLogger(ctx, e.logger).Info("workflow started",
		zap.String("workflow_id", definitionID),
		zap.String("step_id", entry.ID),
		zap.Bool("restarted", restarted),
	)

	return inst.Clone(), nil
}

// TriggerFor returns the definition triggered by the named tool. It does not
// start anything.
func (e *Engine) TriggerFor(toolName string) (model.WorkflowDefinition, bool) {
	return e.registry.FindByTrigger(toolName)
}

// Definition returns the registered definition with the given id.
func (e *Engine) Definition(definitionID string) (model.WorkflowDefinition, bool) {
	return e.registry.Get(definitionID)
}

// Definitions returns every registered definition in registration order.
func (e *Engine) Definitions() []model.WorkflowDefinition {
	return e.registry.All()
}

// CurrentStep returns the step the active instance of the definition is
// waiting on.
func (e *Engine) CurrentStep(definitionID string) (model.WorkflowStep, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.store.Get(definitionID)
	if !ok {
		return model.WorkflowStep{}, false
	}
	wfDef, ok := e.registry.Get(definitionID)
	if !ok {
		return model.WorkflowStep{}, false
	}
	return wfDef.Step(inst.CurrentStepID)
}

// Respond records the caller's response to the current step and moves the
// instance forward. Action steps run their handler after the response is
// recorded; a failing handler leaves the instance on the same step so the
// call can be retried.
func (e *Engine) Respond(ctx context.Context, definitionID, response string) (res model.RespondResult, err error) {
	ctx, span := observability.StartSpan(ctx, "workflow.respond",
		observability.AttrWorkflowID.String(definitionID),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Load instance.
	inst, ok := e.store.Get(definitionID)
	if !ok {
		return model.RespondResult{}, model.NewNoActiveInstanceError(definitionID)
	}

	// 2. Look up workflow and step definitions.
	wfDef, ok := e.registry.Get(definitionID)
	if !ok {
		return model.RespondResult{}, model.NewDefinitionNotFoundError(definitionID)
	}
	step, ok := wfDef.Step(inst.CurrentStepID)
	if !ok {
		return model.RespondResult{}, model.NewStepNotFoundError(definitionID, inst.CurrentStepID)
	}
	span.SetAttributes(observability.AttrStepID.String(step.ID))

	// 3. Record the response.
	inst.Data[step.ID] = model.TextValue(response)
	if step.StoreAs != "" {
		inst.Data[step.StoreAs] = model.TextValue(response)
	}
	inst.UpdatedAt = e.clock.Now().UTC()

	logger := observability.RequestLogger(ctx, e.logger).With(
		zap.String("workflow_id", definitionID),
		zap.String("step_id", step.ID),
	)

	// 4. Run the action of an action step.
	if step.Kind == model.StepAction {
		result, actionErr := e.runAction(ctx, definitionID, step, inst.Data.Clone())
		if actionErr != nil {
			// The response stays recorded and the step does not advance.
			e.store.Put(inst)
			e.appendEvent(ctx, definitionID, step.ID, model.EventActionFailed, response, actionErr.Error())
			e.metrics.RecordWorkflowAdvance(definitionID, step.ID, model.EventActionFailed)
			logger.Warn("workflow action failed", zap.String("action", step.Action), zap.Error(actionErr))
			return model.RespondResult{}, model.NewActionExecutionError(actionErr)
		}
		inst.Data[model.ResultKey(step.ID)] = result
	}

	e.appendEvent(ctx, definitionID, step.ID, model.EventStepCompleted, response, "")
	e.metrics.RecordWorkflowAdvance(definitionID, step.ID, model.EventStepCompleted)

	// 5. Advance to the successor.
	if !step.Terminal() {
		inst.CurrentStepID = step.Next
		e.store.Put(inst)
		logger.Info("workflow advanced", zap.String("next_step_id", step.Next))

		res = model.RespondResult{Completed: false}
		if next, ok := wfDef.Step(step.Next); ok {
			res.NextStep = &next
		}
		return res, nil
	}

	// 6. Complete and drop the instance.
	inst.Completed = true
	e.store.Delete(definitionID)
	e.appendEvent(ctx, definitionID, step.ID, model.EventCompleted, "", "")
	e.metrics.RecordWorkflowCompletion(definitionID, model.EventCompleted)
	logger.Info("workflow completed")

	return model.RespondResult{Completed: true, Result: inst.Data}, nil
}

// ListActive returns a snapshot of the active instances in the order their
// definitions were first started.
func (e *Engine) ListActive() []model.ActiveWorkflow {
	e.mu.Lock()
	defer e.mu.Unlock()

	instances := e.store.List()
	out := make([]model.ActiveWorkflow, 0, len(instances))
	for _, inst := range instances {
		out = append(out, model.ActiveWorkflow{
			DefinitionID:  inst.DefinitionID,
			CurrentStepID: inst.CurrentStepID,
			Completed:     inst.Completed,
		})
	}
	return out
}

// Cancel drops the active instance of the definition and reports whether
// there was one. Recorded data and completed actions are not rolled back.
func (e *Engine) Cancel(ctx context.Context, definitionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.store.Get(definitionID)
	if !ok || !e.store.Delete(definitionID) {
		return false
	}

	e.appendEvent(ctx, definitionID, inst.CurrentStepID, model.EventCancelled, "", "")
	e.metrics.RecordWorkflowCompletion(definitionID, model.EventCancelled)
	observability.RequestLogger(ctx, e.logger).Info("workflow cancelled",
		zap.String("workflow_id", definitionID),
		zap.String("step_id", inst.CurrentStepID),
	)
	return true
}

// runAction executes the handler named by an action step.
func (e *Engine) runAction(ctx context.Context, definitionID string, step model.WorkflowStep, data model.Data) (result model.ResultValue, err error) {
	ctx, span := observability.StartSpan(ctx, "workflow.action",
		observability.AttrWorkflowID.String(definitionID),
		observability.AttrStepID.String(step.ID),
		observability.AttrAction.String(step.Action),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	if e.actions == nil {
		return nil, fmt.Errorf("action handler %q not found", step.Action)
	}

	start := e.clock.Now()
	result, err = e.actions.Execute(ctx, step.Action, data)
	e.metrics.RecordWorkflowActionDuration(definitionID, step.ID, e.clock.Since(start))
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = model.ResultValue{}
	}
	return result, nil
}

// appendEvent records a workflow event. Sink failures are logged and do not
// fail the operation.
func (e *Engine) appendEvent(ctx context.Context, definitionID, stepID, eventType, response, errMsg string) {
	event := model.WorkflowEvent{
		ID:           uuid.New().String(),
		DefinitionID: definitionID,
		StepID:       stepID,
		Type:         eventType,
		Response:     response,
		Error:        errMsg,
		ActorID:      model.SubjectFrom(ctx),
		Timestamp:    e.clock.Now().UTC(),
	}
	if err := e.sink.Append(ctx, event); err != nil {
		observability.RequestLogger(ctx, e.logger).Error("workflow event not recorded",
			zap.String("workflow_id", definitionID),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}
