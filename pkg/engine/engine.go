// Package engine orchestrates one campaign tick: cleanup, rule evaluation,
// workflow advancement, and compliance enforcement.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/outdialhq/outdial/pkg/automation"
	"github.com/outdialhq/outdial/pkg/compliance"
	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/otelhelper"
	"github.com/outdialhq/outdial/pkg/persistence"
	"github.com/outdialhq/outdial/pkg/workflow"
)

// Summary reports what one tick did. PhaseErrors carries per-phase failures;
// a failing phase never prevents later phases from running.
type Summary struct {
	TickedAt              time.Time `json:"ticked_at"`
	StuckCleaned          int       `json:"stuck_cleaned"`
	RulesProcessed        int       `json:"rules_processed"`
	LeadsQueued           int       `json:"leads_queued"`
	WorkflowStepsExecuted int       `json:"workflow_steps_executed"`
	WorkflowsCompleted    int       `json:"workflows_completed"`
	CampaignsChecked      int       `json:"campaigns_checked"`
	CampaignsPaused       int       `json:"campaigns_paused"`
	PhaseErrors           []string  `json:"phase_errors,omitempty"`
}

// Engine is stateless between ticks; everything is re-read from the store
// on each invocation.
type Engine struct {
	persistence   persistence.Persistence
	evaluator     *automation.Evaluator
	queue         *dialqueue.Service
	stateMachine  *workflow.StateMachine
	monitor       *compliance.Monitor
	tracer        trace.Tracer
	logger        *slog.Logger
	stuckStale    time.Duration
	workflowBatch int
}

type Option func(*Engine)

// WithTracer attaches a tracer; without one spans are no-ops.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithStuckStaleness overrides how old a calling entry must be before the
// cleanup sweep fails it.
func WithStuckStaleness(staleness time.Duration) Option {
	return func(e *Engine) {
		e.stuckStale = staleness
	}
}

// WithWorkflowBatch overrides the per-tick workflow batch limit.
func WithWorkflowBatch(limit int) Option {
	return func(e *Engine) {
		e.workflowBatch = limit
	}
}

func New(
	persist persistence.Persistence,
	evaluator *automation.Evaluator,
	queue *dialqueue.Service,
	stateMachine *workflow.StateMachine,
	monitor *compliance.Monitor,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	engine := &Engine{
		persistence:   persist,
		evaluator:     evaluator,
		queue:         queue,
		stateMachine:  stateMachine,
		monitor:       monitor,
		tracer:        noop.NewTracerProvider().Tracer("outdial-engine"),
		logger:        logger.With("module", "engine"),
		stuckStale:    dialqueue.DefaultStuckStaleness,
		workflowBatch: workflow.DefaultBatchLimit,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Tick runs the four phases in order. Phase errors are collected on the
// summary, not returned, so one broken phase cannot freeze the whole loop.
func (e *Engine) Tick(ctx context.Context, now time.Time) (*Summary, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.tick",
		attribute.String(otelhelper.TickIDKey, now.UTC().Format(time.RFC3339)),
	)
	defer span.End()

	summary := &Summary{TickedAt: now}

	e.runCleanupPhase(ctx, summary, now)
	e.runRulePhase(ctx, summary, now)
	e.runWorkflowPhase(ctx, summary, now)
	e.runCompliancePhase(ctx, summary, now)

	e.logger.InfoContext(ctx, "Tick finished",
		"stuck_cleaned", summary.StuckCleaned,
		"rules_processed", summary.RulesProcessed,
		"leads_queued", summary.LeadsQueued,
		"workflow_steps", summary.WorkflowStepsExecuted,
		"campaigns_checked", summary.CampaignsChecked,
		"campaigns_paused", summary.CampaignsPaused,
		"phase_errors", len(summary.PhaseErrors),
	)

	return summary, nil
}

func (e *Engine) runCleanupPhase(ctx context.Context, summary *Summary, now time.Time) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.tick.cleanup")
	defer span.End()

	cleaned, err := e.queue.CleanupStuck(ctx, e.stuckStale, now)
	if err != nil {
		e.recordPhaseError(ctx, summary, span, "cleanup", err)

		return
	}

	summary.StuckCleaned = cleaned
}

func (e *Engine) runRulePhase(ctx context.Context, summary *Summary, now time.Time) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.tick.rules")
	defer span.End()

	result, err := e.evaluator.RunTick(ctx, now)
	if err != nil {
		e.recordPhaseError(ctx, summary, span, "rules", err)

		return
	}

	summary.RulesProcessed = result.RulesProcessed
	summary.LeadsQueued = result.LeadsQueued
}

func (e *Engine) runWorkflowPhase(ctx context.Context, summary *Summary, now time.Time) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.tick.workflows")
	defer span.End()

	result, err := e.stateMachine.ExecutePending(ctx, now, e.workflowBatch)
	if err != nil {
		e.recordPhaseError(ctx, summary, span, "workflows", err)

		return
	}

	summary.WorkflowStepsExecuted = result.Executed
	summary.WorkflowsCompleted = result.Completed

	for _, failure := range result.Failures {
		summary.PhaseErrors = append(summary.PhaseErrors,
			fmt.Sprintf("workflow progress %s: %s", failure.ProgressID, failure.Error))
	}
}

func (e *Engine) runCompliancePhase(ctx context.Context, summary *Summary, now time.Time) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.tick.compliance")
	defer span.End()

	campaigns, err := e.persistence.Campaigns().ListByStatus(ctx, models.CampaignStatusActive)
	if err != nil {
		e.recordPhaseError(ctx, summary, span, "compliance", err)

		return
	}

	for _, campaign := range campaigns {
		summary.CampaignsChecked++

		report, err := e.monitor.CheckAndEnforce(ctx, campaign.ID, now)
		if err != nil {
			summary.PhaseErrors = append(summary.PhaseErrors,
				fmt.Sprintf("compliance check for campaign %s: %s", campaign.ID, err))

			continue
		}

		if report.Stopped {
			summary.CampaignsPaused++
		}
	}
}

func (e *Engine) recordPhaseError(ctx context.Context, summary *Summary, span trace.Span, phase string, err error) {
	otelhelper.SetError(span, err)
	summary.PhaseErrors = append(summary.PhaseErrors, fmt.Sprintf("%s: %s", phase, err))

	e.logger.ErrorContext(ctx, "Tick phase failed",
		"phase", phase,
		"error", err,
	)
}
