// Package broker is the meta-broker: it takes tool invocations and routes
// them to healthy backends under role budgets, circuit breakers, and the
// user's current attention state. Callers never name a backend; they name a
// tool and a role, and the broker decides who serves it.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sony/gobreaker"

	"github.com/dope-context/dope/pkg/config"
	"github.com/dope-context/dope/pkg/mcp"
	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/registry"
)

// ToolCaller executes a single tool call on a named backend. Satisfied by
// *mcp.Client; tests substitute fakes.
type ToolCaller interface {
	CallTool(ctx context.Context, backend, tool string, args map[string]any) (*mcpsdk.CallToolResult, error)
	Reconnect(ctx context.Context, backend string) error
}

// AttentionReader is the broker's view of the attention engine.
type AttentionReader interface {
	// Reading returns the current classification for a user.
	Reading(userID string) models.AttentionReading
	// BreakActive reports whether a mandatory break latch is set for a user.
	BreakActive(userID string) bool
}

// EventSink receives lifecycle events. Satisfied by the event bus.
type EventSink interface {
	Publish(ctx context.Context, event models.Event) error
}

// ProgressLogger records progress entries for invocations that ask for one
// via arguments.log_progress. Satisfied by *services.ProgressService.
type ProgressLogger interface {
	LogProgress(ctx context.Context, workspaceID string, status models.ProgressStatus, description string, parentID *int64, meta *models.ProgressEntry) (int64, error)
}

// Broker routes tool invocations.
type Broker struct {
	cfg      *config.Config
	registry *registry.Registry
	caller   ToolCaller
	att      AttentionReader // may be nil: attention shaping disabled
	sink     EventSink       // may be nil: no event emission
	progress ProgressLogger  // may be nil: log_progress ignored

	budgets  *budgetLedger
	breakers *breakerSet
	stats    *statsCollector

	logger *slog.Logger

	// sleep is the backoff wait, swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a broker over the registry and caller.
func New(cfg *config.Config, reg *registry.Registry, caller ToolCaller, att AttentionReader, sink EventSink, progress ProgressLogger) *Broker {
	return &Broker{
		cfg:      cfg,
		registry: reg,
		caller:   caller,
		att:      att,
		sink:     sink,
		progress: progress,
		budgets:  newBudgetLedger(),
		breakers: newBreakerSet(cfg.Broker.BreakerFailureThreshold, time.Duration(cfg.Broker.BreakerCooloffSeconds)*time.Second, reg),
		stats:    newStatsCollector(),
		logger:   slog.Default(),
		sleep:    sleepCtx,
	}
}

// Invoke routes one tool invocation: validation, break enforcement,
// attention shaping, budget admission, resolution, then execution with
// retries, failover, and per-backend circuit breaking.
func (b *Broker) Invoke(ctx context.Context, req *models.InvokeRequest) (*models.ToolResult, *models.ToolError) {
	if terr := validateRequest(req); terr != nil {
		b.stats.RecordFailure("", terr.Kind)
		return nil, terr
	}

	if b.att != nil && b.att.BreakActive(req.UserID) {
		terr := b.fail(req, models.ErrKindBreakRequired, "a mandatory break is active; resume the session to continue", "")
		b.stats.RecordFailure("", terr.Kind)
		return nil, terr
	}

	reading := b.reading(req)

	deadline, terr := b.effectiveDeadline(req, reading.AttentionState)
	if terr != nil {
		b.stats.RecordFailure("", terr.Kind)
		return nil, terr
	}

	roleCfg := b.cfg.RoleFor(req.Role)
	estimate := callEstimate(req.Arguments)
	if !b.budgets.Admit(req.WorkspaceID, req.Role, roleCfg.BudgetUnits, estimate) {
		terr := b.fail(req, models.ErrKindBudgetExceeded,
			"role budget exhausted for this workspace in the last 24h", "")
		b.stats.RecordFailure("", terr.Kind)
		return nil, terr
	}

	candidates := b.resolve(req.Role, req.Tool)
	if len(candidates) == 0 {
		terr := b.fail(req, models.ErrKindNoBackend, "no healthy backend can serve this role", "")
		b.stats.RecordFailure("", terr.Kind)
		return nil, terr
	}

	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	result, terr := b.execute(callCtx, req, reading.AttentionState, candidates)
	if terr != nil {
		b.stats.RecordFailure(terr.BackendName, terr.Kind)
		return nil, terr
	}

	b.budgets.Commit(req.WorkspaceID, req.Role, result.Cost)
	b.stats.RecordSuccess(result.BackendName, result.Cost)
	b.logProgress(ctx, req, result)
	b.emitToolInvoked(req, result)
	return result, nil
}

// logProgress honors arguments.log_progress on a successful invocation:
// true records a DONE entry describing the call, a string supplies the
// description, and a map may carry status and description.
func (b *Broker) logProgress(ctx context.Context, req *models.InvokeRequest, result *models.ToolResult) {
	if b.progress == nil {
		return
	}
	status := models.StatusDone
	description := fmt.Sprintf("%s completed via %s", req.Tool, result.BackendName)
	switch v := req.Arguments["log_progress"].(type) {
	case bool:
		if !v {
			return
		}
	case string:
		if v == "" {
			return
		}
		description = v
	case map[string]any:
		if s, ok := v["status"].(string); ok && models.ProgressStatus(s).IsValid() {
			status = models.ProgressStatus(s)
		}
		if d, ok := v["description"].(string); ok && d != "" {
			description = d
		}
	default:
		return
	}
	if _, err := b.progress.LogProgress(ctx, req.WorkspaceID, status, description, nil, nil); err != nil {
		b.logger.Warn("Failed to log progress for invocation",
			"workspace_id", req.WorkspaceID, "tool", req.Tool, "error", err)
	}
}

// execute walks the candidate list: same-backend retries with jittered
// exponential backoff, then failover to the next candidate. An open circuit
// skips a candidate without consuming the retry budget.
func (b *Broker) execute(ctx context.Context, req *models.InvokeRequest, state models.AttentionState, candidates []models.BackendStatus) (*models.ToolResult, *models.ToolError) {
	maxRetries := b.cfg.Broker.MaxRetries
	backoffBase := time.Duration(b.cfg.Broker.RetryBackoffBaseMS) * time.Millisecond
	retries := 0
	var lastErr error

	for _, candidate := range candidates {
		name := candidate.Descriptor.Name
		cb := b.breakers.forBackend(name)

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if ctx.Err() != nil {
				return nil, b.fail(req, models.ErrKindCancelled, "deadline exceeded before completion", name)
			}
			if attempt > 0 {
				retries++
				if err := b.sleep(ctx, backoffDelay(backoffBase, attempt)); err != nil {
					return nil, b.fail(req, models.ErrKindCancelled, "deadline exceeded during retry backoff", name)
				}
			}

			start := time.Now()
			raw, err := cb.Execute(func() (any, error) {
				res, callErr := b.caller.CallTool(ctx, name, req.Tool, req.Arguments)
				if callErr != nil {
					return nil, callErr
				}
				// Tool-level failures arrive as IsError results; surface them
				// as errors so breaker counting and fallback see them.
				if res != nil && res.IsError {
					return nil, fmt.Errorf("tool error from %q: %s", name, mcp.FlattenResult(res))
				}
				return res, nil
			})
			latency := time.Since(start)

			if err == nil {
				b.registry.ReportSuccess(name, latency)
				return b.buildResult(req, state, name, raw.(*mcpsdk.CallToolResult), latency, retries), nil
			}

			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				// Circuit is shedding load for this backend; fail over without
				// counting it against the retry budget.
				lastErr = err
				break
			}

			b.registry.ReportFailure(name, err.Error())
			lastErr = err

			if mcp.IsNotFound(err) {
				// The backend answered but has nothing; the next candidate
				// (web research, for docs-preferred calls) may.
				break
			}

			switch mcp.ClassifyError(err) {
			case mcp.RetrySameSession:
				continue
			case mcp.RetryNewSession:
				if rerr := b.caller.Reconnect(ctx, name); rerr != nil {
					b.logger.Warn("Backend reconnect failed", "backend", name, "error", rerr)
				}
				continue
			default:
				if ctx.Err() != nil {
					return nil, b.fail(req, models.ErrKindCancelled, "deadline exceeded before completion", name)
				}
				// Not recoverable on this backend; try the next one.
			}
			break
		}
	}

	if ctx.Err() != nil {
		return nil, b.fail(req, models.ErrKindCancelled, "deadline exceeded before completion", "")
	}
	msg := "all candidate backends failed"
	if lastErr != nil {
		msg = "all candidate backends failed: " + lastErr.Error()
	}
	return nil, b.fail(req, models.ErrKindUnavailable, msg, "")
}

// buildResult flattens the MCP result, applies attention shaping to the
// payload, and fills observability metadata.
func (b *Broker) buildResult(req *models.InvokeRequest, state models.AttentionState, backend string, raw *mcpsdk.CallToolResult, latency time.Duration, retries int) *models.ToolResult {
	text := mcp.FlattenResult(raw)
	shaped, trimmed := shapeResult(state, text, b.cfg.Broker.ScatteredMaxResultTokens)
	if trimmed {
		b.logger.Debug("Result trimmed for attention state",
			"user_id", req.UserID, "state", state, "backend", backend)
	}
	return &models.ToolResult{
		Payload:     shaped,
		Cost:        mcp.EstimateCallCost(req.Arguments, raw),
		BackendName: backend,
		LatencyMS:   latency.Milliseconds(),
		Retries:     retries,
	}
}

// reading resolves the attention state for this invocation: an explicit
// hint overrides the engine, and with no engine the user counts as focused.
func (b *Broker) reading(req *models.InvokeRequest) models.AttentionReading {
	if req.AttentionHint != nil && req.AttentionHint.AttentionState.IsValid() {
		r := models.AttentionReading{
			UserID:         req.UserID,
			AttentionState: req.AttentionHint.AttentionState,
			EnergyLevel:    req.AttentionHint.EnergyLevel,
		}
		if !r.EnergyLevel.IsValid() {
			r.EnergyLevel = models.EnergyMedium
		}
		return r
	}
	if b.att != nil {
		return b.att.Reading(req.UserID)
	}
	return models.AttentionReading{
		UserID:         req.UserID,
		AttentionState: models.AttentionFocused,
		EnergyLevel:    models.EnergyMedium,
	}
}

// effectiveDeadline picks the caller's deadline or the role default, then
// shapes it. An explicit non-positive deadline is already expired.
func (b *Broker) effectiveDeadline(req *models.InvokeRequest, state models.AttentionState) (time.Duration, *models.ToolError) {
	var deadline time.Duration
	if req.DeadlineMS != nil {
		if *req.DeadlineMS <= 0 {
			return 0, b.fail(req, models.ErrKindCancelled, "deadline expired before dispatch", "")
		}
		deadline = time.Duration(*req.DeadlineMS) * time.Millisecond
	} else {
		deadline = b.cfg.RoleFor(req.Role).DefaultTimeout()
	}
	shaped := shapeDeadline(state, deadline)
	if shaped <= 0 {
		return 0, b.fail(req, models.ErrKindCancelled, "deadline expired before dispatch", "")
	}
	return shaped, nil
}

func (b *Broker) emitToolInvoked(req *models.InvokeRequest, result *models.ToolResult) {
	if b.sink == nil {
		return
	}
	event := models.Event{
		EventType:     models.EventTypeToolInvoked,
		EventID:       uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		SourceSystem:  models.SourceBroker,
		TargetSystems: []string{"*"},
		Priority:      models.EventPriorityLow,
		Data: map[string]any{
			"tool":         req.Tool,
			"role":         string(req.Role),
			"backend":      result.BackendName,
			"workspace_id": req.WorkspaceID,
			"user_id":      req.UserID,
			"cost":         result.Cost,
			"latency_ms":   result.LatencyMS,
			"retries":      result.Retries,
		},
	}
	// Observability event; invocation success does not depend on it.
	if err := b.sink.Publish(context.Background(), event); err != nil {
		b.logger.Warn("Failed to publish tool_invoked event", "error", err)
	}
}

// Budgets exposes the ledger's spent view for the stats surface.
func (b *Broker) BudgetSpent(workspaceID string, role models.Role) int {
	return b.budgets.Spent(workspaceID, role)
}

// Stats returns a snapshot of invocation counters.
func (b *Broker) Stats() Stats {
	return b.stats.Snapshot()
}

func (b *Broker) fail(req *models.InvokeRequest, kind models.ErrorKind, msg, backend string) *models.ToolError {
	terr := &models.ToolError{
		Kind:        kind,
		Message:     msg,
		Retryable:   kind.Retryable(),
		EventID:     uuid.NewString(),
		BackendName: backend,
		WorkspaceID: req.WorkspaceID,
	}
	b.logger.Warn("Invocation failed",
		"kind", terr.Kind, "tool", req.Tool, "role", req.Role,
		"workspace_id", req.WorkspaceID, "backend", backend,
		"event_id", terr.EventID, "message", msg)
	return terr
}

func validateRequest(req *models.InvokeRequest) *models.ToolError {
	var missing string
	switch {
	case req.Tool == "":
		missing = "tool is required"
	case req.WorkspaceID == "":
		missing = "workspace_id is required"
	case req.UserID == "":
		missing = "user_id is required"
	case !req.Role.IsValid():
		missing = "role must be one of research, implementation, quality, coordination"
	}
	if missing == "" {
		return nil
	}
	return &models.ToolError{
		Kind:        models.ErrKindValidationError,
		Message:     missing,
		EventID:     uuid.NewString(),
		WorkspaceID: req.WorkspaceID,
	}
}

// callEstimate approximates the cost of an upcoming call before it runs:
// serialized arguments plus a reserve for the unknown result.
func callEstimate(args map[string]any) int {
	return mcp.EstimateCallCost(args, nil) + resultReserve
}

// backoffDelay is exponential in the attempt number with ±50% jitter so
// concurrent retries against a struggling backend spread out.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
