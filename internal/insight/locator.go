// File: internal/insight/locator.go
// Description: The two-stage locate flow: optional vision-language search-area
// narrowing, then element location and reconciliation of claimed ids against
// the live snapshot.
package insight

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
)

// LocateOptions tunes a single locate call.
type LocateOptions struct {
	// QuickAnswer supplies a cached partial answer. When its ID resolves in
	// the fresh snapshot, the model is not consulted at all; otherwise it is
	// passed down as a hint to the element-locate stage.
	QuickAnswer *schemas.QuickAnswer
	// CallAI substitutes the element-locate model call for this one call,
	// replacing the engine's configured locator.
	CallAI func(ctx context.Context, uiCtx *schemas.UIContext, call schemas.ElementLocateCall) (*schemas.ElementLocateResponse, error)
	// OnDump receives this call's diagnostic dump, taking precedence over a
	// subscriber registered through SetNextDumpSubscriber.
	OnDump schemas.DumpSink
}

// Locate resolves a natural-language target description to at most one
// element. Exactly one diagnostic dump is emitted per call, on success and on
// every failure path alike, always before a fatal error is returned.
func (in *Insight) Locate(ctx context.Context, query *schemas.LocateQuery, opts *LocateOptions) (*schemas.LocateResult, error) {
	var qa *schemas.QuickAnswer
	var override schemas.DumpSink
	locateElement := in.deps.Element.LocateElement
	if opts != nil {
		qa = opts.QuickAnswer
		override = opts.OnDump
		if opts.CallAI != nil {
			locateElement = opts.CallAI
		}
	}
	sink := in.takeDumpSink(override)

	prompt := ""
	if query != nil {
		prompt = query.Prompt
	}
	rec, task, emit := in.newDump(schemas.ActionLocate, prompt, sink)

	if query == nil || (strings.TrimSpace(prompt) == "" && qa == nil) {
		err := &PreconditionError{Reason: "locate expects a target description or a quick answer"}
		rec.Error = err.Error()
		emit()
		return nil, err
	}

	uiCtx, err := in.deps.Retriever.Retrieve(ctx, schemas.ActionLocate)
	if err != nil {
		rec.Error = err.Error()
		emit()
		return nil, fmt.Errorf("failed to retrieve ui context: %w", err)
	}

	// A quick answer whose id still resolves in the fresh snapshot settles the
	// call without consulting the model.
	if qa != nil && qa.ID != "" {
		if el := uiCtx.ElementByID(qa.ID); el != nil {
			located := locatedFrom(el)
			rec.MatchedElements = []*schemas.LocatedElement{located}
			task.Merge(map[string]any{"quickAnswer": true})
			emit()
			return &schemas.LocateResult{Element: located, Rect: el.Rect}, nil
		}
		in.logger.Warn("Quick answer id not present in the current snapshot, falling back to a model call",
			zap.String("element_id", qa.ID))
	}

	want := in.wantNarrowing(query)
	profile, release := in.switcher.Acquire(want)
	defer release()

	if want && !profile.SupportsSectionLocate() {
		in.logger.Warn("Search-area narrowing requested but no vision-language pathway is available, locating against the full page",
			zap.String("model", profile.Model))
		want = false
	}

	// Stage one: narrow the search to a rectangle of the page.
	var searchArea *schemas.Rect
	if want {
		section, err := in.deps.Section.LocateSection(ctx, uiCtx, prompt, profile)
		if err != nil {
			rec.Error = err.Error()
			emit()
			return nil, fmt.Errorf("search-area narrowing call failed: %w", err)
		}
		task.SearchAreaRawResponse = section.RawResponse
		task.SearchAreaUsage = section.Usage
		if section.Rect == nil {
			detail := section.Error
			if detail == "" {
				detail = "model returned no search area"
			}
			perr := &PreconditionError{Reason: fmt.Sprintf("cannot find search area for %q: %s", prompt, detail)}
			rec.Error = perr.Error()
			emit()
			return nil, perr
		}
		searchArea = section.Rect
		task.SearchArea = section.Rect
	}

	// Stage two: locate the element, constrained to the narrowed area when one
	// was found.
	resp, err := locateElement(ctx, uiCtx, schemas.ElementLocateCall{
		TargetDescription: prompt,
		QuickAnswer:       qa,
		SearchArea:        searchArea,
		Profile:           profile,
	})
	if err != nil {
		rec.Error = err.Error()
		emit()
		return nil, fmt.Errorf("element locate call failed: %w", err)
	}
	task.RawResponse = resp.RawResponse
	task.Usage = resp.Usage

	resolved := in.reconcile(resp)
	rec.MatchedElements = resolved

	if len(resp.Parsed.Errors) > 0 {
		joined := strings.Join(resp.Parsed.Errors, "; ")
		rec.Error = joined
		emit()
		return nil, &ModelReplyError{Detail: joined}
	}
	if len(resolved) > 1 {
		aerr := &AmbiguityError{Count: len(resolved), Query: prompt}
		rec.Error = aerr.Error()
		emit()
		return nil, aerr
	}

	result := &schemas.LocateResult{Rect: resp.Rect}
	if len(resolved) == 1 {
		result.Element = resolved[0]
	}
	emit()
	return result, nil
}

// wantNarrowing evaluates the narrowing gate for one query. Only a truthy
// per-call mode requests narrowing: an unset mode and the literal "false"
// both disable it, even when deep think is on per call or forced globally.
func (in *Insight) wantNarrowing(query *schemas.LocateQuery) bool {
	return query.VLModeTruthy()
}

// reconcile maps the model's claimed element ids back onto the live snapshot.
// Unresolvable ids are dropped with a warning; they indicate a stale or
// hallucinated reply, not a fatal condition.
func (in *Insight) reconcile(resp *schemas.ElementLocateResponse) []*schemas.LocatedElement {
	resolved := make([]*schemas.LocatedElement, 0, len(resp.Parsed.Elements))
	for _, ref := range resp.Parsed.Elements {
		el := resp.ElementByID(ref.ID)
		if el == nil {
			in.logger.Warn("Model claimed an element id that does not exist in the snapshot, dropping it",
				zap.String("element_id", ref.ID))
			continue
		}
		resolved = append(resolved, locatedFrom(el))
	}
	return resolved
}

func locatedFrom(el *schemas.Element) *schemas.LocatedElement {
	return &schemas.LocatedElement{
		ID:      el.ID,
		IndexID: el.IndexID,
		Center:  el.Center,
		Rect:    el.Rect,
	}
}
