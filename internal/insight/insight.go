// File: internal/insight/insight.go
// Description: The request-orchestration engine. It turns a natural-language
// instruction into a structured result by delegating perception to an
// external model and deterministically post-processing its reply.
package insight

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
	"github.com/glimpsehq/glimpse/internal/config"
	"github.com/glimpsehq/glimpse/internal/modelswitch"
)

// Deps bundles the collaborators the engine is composed from. Retriever and
// the four model callers are required; Emitter defaults to a log-only emitter
// and BaseTask is optional caller-supplied telemetry merged into every dump.
type Deps struct {
	Store     *config.Store
	Retriever schemas.ContextRetriever
	Section   schemas.SectionLocator
	Element   schemas.ElementLocator
	Extract   schemas.ExtractCaller
	Assert    schemas.AssertCaller
	Emitter   *DumpEmitter
	BaseTask  map[string]any
}

// Insight orchestrates the three perception operations. All per-call state is
// created at call entry and discarded at call exit; the only cross-call
// mutable state is the one-shot dump-subscriber slot.
type Insight struct {
	logger   *zap.Logger
	store    *config.Store
	deps     Deps
	switcher *modelswitch.Switcher
	// nextDump is a single-use, last-writer-wins subscriber slot, consumed
	// atomically the instant a call begins.
	nextDump atomic.Pointer[schemas.DumpSink]
}

// New composes an engine from its collaborators.
func New(logger *zap.Logger, deps Deps) (*Insight, error) {
	if deps.Store == nil || deps.Retriever == nil || deps.Section == nil ||
		deps.Element == nil || deps.Extract == nil || deps.Assert == nil {
		return nil, fmt.Errorf("cannot initialize insight engine with nil collaborators")
	}
	log := logger.Named("insight")
	if deps.Emitter == nil {
		deps.Emitter = NewDumpEmitter(config.InsightConfig{}, log)
	}
	return &Insight{
		logger:   log,
		store:    deps.Store,
		deps:     deps,
		switcher: modelswitch.New(deps.Store, log),
	}, nil
}

// SetNextDumpSubscriber registers a subscriber for the next call's dump.
// Registration is single-use and last-writer-wins, not a queue.
func (in *Insight) SetNextDumpSubscriber(sink schemas.DumpSink) {
	in.nextDump.Store(&sink)
}

// takeDumpSink consumes the one-shot slot and resolves which sink, if any,
// receives this call's dump. An explicit per-call sink takes precedence, but
// the slot is cleared either way.
func (in *Insight) takeDumpSink(override schemas.DumpSink) schemas.DumpSink {
	stored := in.nextDump.Swap(nil)
	if override != nil {
		return override
	}
	if stored != nil {
		return *stored
	}
	return nil
}

// newDump starts the per-call dump record and returns an emit closure that
// finalizes telemetry and publishes exactly once.
func (in *Insight) newDump(kind schemas.ActionKind, query string, sink schemas.DumpSink) (*schemas.DumpRecord, *schemas.TaskInfo, func()) {
	started := time.Now()
	task := &schemas.TaskInfo{}
	rec := &schemas.DumpRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Query:     query,
		Timestamp: started,
	}
	emitted := false
	emit := func() {
		if emitted {
			return
		}
		emitted = true
		task.DurationMs = time.Since(started).Milliseconds()
		task.Merge(in.deps.BaseTask)
		rec.Task = task
		in.deps.Emitter.Emit(rec, sink)
	}
	return rec, task, emit
}

// CallOptions tunes a single extract or assert call.
type CallOptions struct {
	// OnDump receives this call's diagnostic dump, taking precedence over a
	// subscriber registered through SetNextDumpSubscriber.
	OnDump schemas.DumpSink
}

// Extract pulls structured data out of the current snapshot. When the model
// reports parse errors but still produced data, the data wins: errors are
// recorded in telemetry only and the call succeeds.
func (in *Insight) Extract(ctx context.Context, demand schemas.ExtractDemand, opts *CallOptions) (*schemas.ExtractResult, error) {
	var override schemas.DumpSink
	if opts != nil {
		override = opts.OnDump
	}
	sink := in.takeDumpSink(override)
	rec, task, emit := in.newDump(schemas.ActionExtract, demandQuery(demand), sink)

	if demand.IsZero() {
		err := &PreconditionError{Reason: "extract expects a data demand: pass a natural-language description or a field-to-description map"}
		rec.Error = err.Error()
		emit()
		return nil, err
	}

	uiCtx, err := in.deps.Retriever.Retrieve(ctx, schemas.ActionExtract)
	if err != nil {
		rec.Error = err.Error()
		emit()
		return nil, fmt.Errorf("failed to retrieve ui context: %w", err)
	}

	resp, err := in.deps.Extract.CallExtract(ctx, uiCtx, demand)
	if err != nil {
		rec.Error = err.Error()
		emit()
		return nil, fmt.Errorf("extract model call failed: %w", err)
	}

	task.RawResponse = resp.RawResponse
	task.Usage = resp.Usage
	rec.Data = resp.Parsed.Data

	if len(resp.Parsed.Errors) > 0 {
		joined := strings.Join(resp.Parsed.Errors, "; ")
		if resp.Parsed.Data == nil {
			rec.Error = joined
			emit()
			return nil, &ModelReplyError{Detail: fmt.Sprintf("extract produced no data: %s", joined)}
		}
		// Partial success: keep the data, note the errors in telemetry.
		in.logger.Warn("Extract reply reported errors alongside usable data", zap.String("errors", joined))
		task.Merge(map[string]any{"modelErrors": joined})
	}

	emit()
	return &schemas.ExtractResult{Kind: demand.Kind, Data: resp.Parsed.Data, Usage: resp.Usage}, nil
}

// Assert evaluates a natural-language assertion. A failed assertion is a
// normal, successful evaluation: Pass is false, Thought explains why, and no
// error is raised. The dump records the thought as its error string only when
// the assertion did not pass.
func (in *Insight) Assert(ctx context.Context, assertion string, opts *CallOptions) (*schemas.AssertResult, error) {
	var override schemas.DumpSink
	if opts != nil {
		override = opts.OnDump
	}
	sink := in.takeDumpSink(override)
	rec, task, emit := in.newDump(schemas.ActionAssert, assertion, sink)

	if strings.TrimSpace(assertion) == "" {
		err := &InvalidInputError{Reason: "assert expects a plain natural-language assertion string; it is not a test-framework assertion helper"}
		rec.Error = err.Error()
		emit()
		return nil, err
	}

	uiCtx, err := in.deps.Retriever.Retrieve(ctx, schemas.ActionAssert)
	if err != nil {
		rec.Error = err.Error()
		emit()
		return nil, fmt.Errorf("failed to retrieve ui context: %w", err)
	}

	resp, err := in.deps.Assert.CallAssert(ctx, uiCtx, assertion)
	if err != nil {
		rec.Error = err.Error()
		emit()
		return nil, fmt.Errorf("assert model call failed: %w", err)
	}

	task.RawResponse = resp.RawResponse
	task.Usage = resp.Usage
	if !resp.Content.Pass {
		rec.Error = resp.Content.Thought
	}

	emit()
	return &schemas.AssertResult{
		Pass:    resp.Content.Pass,
		Thought: resp.Content.Thought,
		Usage:   resp.Usage,
	}, nil
}

// demandQuery renders the extract demand as the dump's user-query string.
func demandQuery(demand schemas.ExtractDemand) string {
	if demand.Kind == schemas.DemandSchema && len(demand.Schema) > 0 {
		fields := make([]string, 0, len(demand.Schema))
		for name := range demand.Schema {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		return "schema{" + strings.Join(fields, ",") + "}"
	}
	return demand.Text
}
