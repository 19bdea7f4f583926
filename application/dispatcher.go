package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/invocation"
	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/policy"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
	inframw "github.com/felixgeelhaar/toolgate/infrastructure/middleware"
	"github.com/felixgeelhaar/toolgate/infrastructure/relay"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolgate/infrastructure/statemachine"
	"github.com/felixgeelhaar/toolgate/infrastructure/telemetry"
)

// Dispatcher takes tool uses from the agent loop and carries each through
// resolve, validate, acceptance and invoke, returning one Response per use.
type Dispatcher struct {
	registry *Registry
	approver policy.Approver
	policy   policy.ApprovalPolicy
	cancels  *relay.Cancellations
	recorder telemetry.Recorder
	audit    audit.Logger
	machine  *statekit.MachineConfig[*statemachine.Context]
	handler  middleware.Handler
}

// DispatcherConfig contains configuration for the dispatcher.
type DispatcherConfig struct {
	Approver      policy.Approver
	Policy        policy.ApprovalPolicy
	Cancellations *relay.Cancellations
	Middleware    *middleware.Registry
	Recorder      telemetry.Recorder
	Audit         audit.Logger
}

// NewDispatcher creates a dispatcher over registry. Without an approver
// every use that needs acceptance is denied.
func NewDispatcher(registry *Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}

	cfg := DispatcherConfig{Policy: policy.DefaultApprovalPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}

	machine, err := statemachine.NewLifecycleMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}

	d := &Dispatcher{
		registry: registry,
		approver: cfg.Approver,
		policy:   cfg.Policy,
		cancels:  cfg.Cancellations,
		recorder: cfg.Recorder,
		audit:    cfg.Audit,
		machine:  machine,
	}
	if d.approver == nil {
		d.approver = policy.NewDenyApprover("no approver configured")
	}
	if d.cancels == nil {
		d.cancels = relay.NewCancellations()
	}
	if d.recorder == nil {
		d.recorder = telemetry.NoopRecorder{}
	}

	chain := cfg.Middleware
	if chain == nil {
		chain = d.defaultMiddlewareChain()
	}
	d.handler = chain.Handler(middleware.Invoke)
	return d, nil
}

// defaultMiddlewareChain logs, traces, meters and audits every invocation,
// with the size limit innermost so the others observe its failures.
func (d *Dispatcher) defaultMiddlewareChain() *middleware.Registry {
	registry := middleware.NewRegistry()
	registry.Use(inframw.Logging(inframw.LoggingConfig{}))
	registry.Use(inframw.Tracing(inframw.DefaultTracingConfig()))
	registry.Use(inframw.Metrics(d.recorder))
	if d.audit != nil {
		registry.Use(audit.Middleware(d.audit))
	}
	registry.Use(inframw.SizeLimit())
	return registry
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Cancellations returns the table Cancel writes to.
func (d *Dispatcher) Cancellations() *relay.Cancellations {
	return d.cancels
}

// Cancel fires the cancellation signal for a trigger.
func (d *Dispatcher) Cancel(triggerID string) {
	d.cancels.Cancel(triggerID)
}

// Request is one tool use with its delivery channels.
type Request struct {
	Use tool.Use

	// TriggerID ties the invocation to a cancellation signal. A new one is
	// generated when empty.
	TriggerID string

	// Description receives the preview of the pending effect.
	Description tool.Sink

	// Output receives incremental output while the tool runs.
	Output tool.Sink
}

// Handle dispatches a tool use under a fresh trigger and discards any
// streamed output.
func (d *Dispatcher) Handle(ctx context.Context, use tool.Use) tool.Response {
	return d.Dispatch(ctx, Request{Use: use})
}

// Dispatch runs one tool use to completion. Failures come back as error
// Responses carrying the request id; Dispatch never returns a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) tool.Response {
	use := req.Use
	if use.ID == "" {
		use.ID = uuid.NewString()
	}
	trigger := req.TriggerID
	if trigger == "" {
		trigger = uuid.NewString()
	}
	d.cancels.Begin(trigger)
	defer d.cancels.Clear(trigger)

	def, t, failed := d.registry.Resolve(use)
	if failed != nil {
		eventType := audit.EventValidationFailure
		if errors.Is(failed.Err, tool.ErrUnknownTool) {
			eventType = audit.EventUnknownTool
		}
		d.record(ctx, eventType, use, trigger, "", failed.Err)
		logging.Warn().
			Add(logging.ToolName(use.Name)).
			Add(logging.ToolUseID(use.ID)).
			Add(logging.ErrorField(failed.Err)).
			Msg("tool use rejected")
		return *failed
	}

	lc := statemachine.NewLifecycle(d.machine, statemachine.NewContext(use.Name, use.ID))
	defer lc.Stop()

	fail := func(err error) tool.Response {
		lc.Fail(err.Error())
		return tool.NewErrorResponse(use.ID, err)
	}

	if err := t.Validate(ctx); err != nil {
		if !errors.Is(err, tool.ErrValidation) {
			err = fmt.Errorf("%w: %w", tool.ErrValidation, err)
		}
		d.record(ctx, audit.EventValidationFailure, use, trigger, "", err)
		return fail(err)
	}
	if err := lc.Transition(invocation.StateValidated, "validated"); err != nil {
		return fail(err)
	}

	verdict := d.policy.Apply(use.Name, def.Annotations(), t.RequiresAcceptance(ctx))

	preview := &relay.BufferSink{}
	if err := t.QueueDescription(relay.New(teeSink{preview, req.Description}, d.cancels, trigger)); err != nil {
		if errors.Is(err, tool.ErrCancelled) {
			return fail(err)
		}
		logging.Warn().
			Add(logging.ToolName(use.Name)).
			Add(logging.ToolUseID(use.ID)).
			Add(logging.ErrorField(err)).
			Msg("queue description failed")
	}

	if verdict.RequiresAcceptance {
		if err := lc.Transition(invocation.StateAwaitingAcceptance, verdict.Warning); err != nil {
			return fail(err)
		}
		if err := d.accept(ctx, use, def, trigger, verdict, preview.String()); err != nil {
			return fail(err)
		}
	}

	if err := lc.Transition(invocation.StateInvoking, "invoking"); err != nil {
		return fail(err)
	}

	invokeCtx, cancel := d.cancels.WithContext(ctx, trigger)
	defer cancel()

	out, err := d.handler(invokeCtx, &middleware.ExecutionContext{
		Use:        use,
		Definition: def,
		Tool:       t,
		TriggerID:  trigger,
		Verdict:    verdict,
		Sink:       relay.New(req.Output, d.cancels, trigger),
		Vars:       make(map[string]any),
	})
	if err != nil {
		if d.cancelled(invokeCtx, trigger, err) {
			if !errors.Is(err, tool.ErrCancelled) {
				err = fmt.Errorf("%w: %w", tool.ErrCancelled, err)
			}
			_ = lc.Transition(invocation.StateCancelled, "cancelled")
			d.record(ctx, audit.EventCancellation, use, trigger, verdict.Warning, err)
			return tool.NewErrorResponse(use.ID, err)
		}
		return fail(err)
	}

	if err := lc.Transition(invocation.StateCompleted, "completed"); err != nil {
		return fail(err)
	}
	return tool.NewSuccessResponse(use.ID, out)
}

// accept asks the approver and records the decision.
func (d *Dispatcher) accept(ctx context.Context, use tool.Use, def *tool.Definition, trigger string, verdict command.Validation, preview string) error {
	d.record(ctx, audit.EventAcceptanceRequired, use, trigger, verdict.Warning, nil)

	resp, err := d.approver.Approve(ctx, policy.ApprovalRequest{
		ToolUseID: use.ID,
		TriggerID: trigger,
		ToolName:  use.Name,
		Input:     use.Input,
		Warning:   verdict.Warning,
		RiskLevel: def.Annotations().RiskLevel.String(),
		Preview:   preview,
		Timestamp: time.Now(),
	})
	approved := err == nil && resp.Approved
	d.recorder.RecordAcceptanceRequired(ctx, use.Name, approved)

	logging.Info().
		Add(logging.ToolName(use.Name)).
		Add(logging.ToolUseID(use.ID)).
		Add(logging.Approved(approved)).
		Add(logging.Reason(resp.Reason)).
		Msg("acceptance decided")

	if approved {
		d.record(ctx, audit.EventApprovalGranted, use, trigger, verdict.Warning, nil)
		return nil
	}

	denied := tool.ErrApprovalDenied
	switch {
	case err != nil:
		denied = fmt.Errorf("%w: %w", tool.ErrApprovalDenied, err)
	case resp.Reason != "":
		denied = fmt.Errorf("%w: %s", tool.ErrApprovalDenied, resp.Reason)
	}
	d.record(ctx, audit.EventApprovalDenied, use, trigger, verdict.Warning, denied)
	return denied
}

// cancelled reports whether a failed invocation ended because its trigger
// was cancelled.
func (d *Dispatcher) cancelled(ctx context.Context, trigger string, err error) bool {
	if errors.Is(err, tool.ErrCancelled) || d.cancels.IsCancelled(trigger) {
		return true
	}
	return errors.Is(context.Cause(ctx), tool.ErrCancelled)
}

// record writes an audit event when an audit logger is configured.
func (d *Dispatcher) record(ctx context.Context, eventType audit.EventType, use tool.Use, trigger, warning string, err error) {
	if d.audit == nil {
		return
	}
	event := audit.Event{
		EventType: eventType,
		ToolUseID: use.ID,
		TriggerID: trigger,
		ToolName:  use.Name,
		Success:   err == nil,
		Warning:   warning,
		InputHash: audit.HashInput(use.Input),
	}
	if err != nil {
		event.Error = err.Error()
	}
	if logErr := d.audit.Log(ctx, event); logErr != nil {
		logging.Warn().
			Add(logging.Component("audit")).
			Add(logging.ErrorField(logErr)).
			Msg("audit log failed")
	}
}

// teeSink writes to every non-nil sink in order.
type teeSink []tool.Sink

func (t teeSink) Write(chunk string) error {
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) End() error {
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.End(); err != nil {
			return err
		}
	}
	return nil
}
