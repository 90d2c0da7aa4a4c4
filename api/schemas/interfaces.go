package schemas

import "context"

// -- Collaborator Interfaces --
//
// The insight engine consumes perception through these narrow contracts. How
// a snapshot is captured, how prompts are built and how model calls are
// transported is entirely the collaborator's business.

// ContextRetriever obtains an immutable snapshot of the UI universe for a
// named action kind. Implementations may take cheaper snapshots for
// non-locate actions (e.g. skip the screenshot).
type ContextRetriever interface {
	Retrieve(ctx context.Context, kind ActionKind) (*UIContext, error)
}

// SectionLocator performs the optional first stage of a locate call: it asks
// the model to narrow the search down to a rectangle of the page.
type SectionLocator interface {
	LocateSection(ctx context.Context, uiCtx *UIContext, prompt string, profile ModelProfile) (*SectionLocateResponse, error)
}

// ElementLocateCall bundles the inputs of the second locate stage.
type ElementLocateCall struct {
	TargetDescription string
	QuickAnswer       *QuickAnswer
	// SearchArea constrains the match to the stage-one rectangle when set.
	SearchArea *Rect
	Profile    ModelProfile
}

// ElementLocator resolves a target element description to concrete element
// references, optionally constrained to a search area.
type ElementLocator interface {
	LocateElement(ctx context.Context, uiCtx *UIContext, call ElementLocateCall) (*ElementLocateResponse, error)
}

// ExtractCaller performs a single data-extraction model call.
type ExtractCaller interface {
	CallExtract(ctx context.Context, uiCtx *UIContext, demand ExtractDemand) (*ExtractResponse, error)
}

// AssertCaller evaluates a natural-language assertion against the snapshot.
type AssertCaller interface {
	CallAssert(ctx context.Context, uiCtx *UIContext, assertion string) (*AssertResponse, error)
}

// DumpSink receives the one diagnostic dump emitted for a call. Delivery is
// fire-and-forget and must not alter the result being returned.
type DumpSink func(*DumpRecord)
