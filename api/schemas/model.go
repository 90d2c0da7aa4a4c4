package schemas

// ModelProfile is the fully resolved model-selection state for one request.
// The configuration store derives it from the five mutable model keys; the
// insight engine threads it through the locator so downstream calls never
// re-read shared configuration mid-flight.
type ModelProfile struct {
	Model     string `json:"model"`
	MiniModel string `json:"miniModel,omitempty"`
	BaseURL   string `json:"baseUrl"`
	APIKey    string `json:"-"`
	// VLMode names the active vision-language pathway; empty means the plain
	// text pathway.
	VLMode string `json:"vlMode,omitempty"`
}

// SupportsSectionLocate reports whether search-area narrowing can run under
// this profile. Only the vision-language pathway can narrow.
func (p ModelProfile) SupportsSectionLocate() bool {
	return p.VLMode != "" && p.VLMode != "false"
}

// SectionLocateResponse is the parsed reply of the search-area narrowing call.
// A nil Rect means the model could not identify a search area.
type SectionLocateResponse struct {
	Rect        *Rect  `json:"rect,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
	Usage       *Usage `json:"usage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ElementRef is one element identifier claimed by the model. Claimed ids are
// reconciled against the live element set and may turn out to be stale or
// hallucinated.
type ElementRef struct {
	ID string `json:"id"`
}

// ElementParseResult is the structured portion of an element-locate reply.
type ElementParseResult struct {
	Elements []ElementRef `json:"elements"`
	Errors   []string     `json:"errors,omitempty"`
}

// ElementLocateResponse is the full outcome of the element-locate model call.
// ElementByID is the single source of truth for resolving claimed ids back to
// live elements.
type ElementLocateResponse struct {
	Parsed      ElementParseResult
	Rect        Rect
	ElementByID func(id string) *Element
	RawResponse string
	Usage       *Usage
}

// ExtractParseResult is the structured portion of an extract reply. Errors
// and Data may coexist; usable data wins over reported errors.
type ExtractParseResult struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors,omitempty"`
}

// ExtractResponse is the full outcome of the extract model call.
type ExtractResponse struct {
	Parsed      ExtractParseResult
	RawResponse string
	Usage       *Usage
}

// AssertContent is the boolean verdict and justification of an assert reply.
type AssertContent struct {
	Pass    bool   `json:"pass"`
	Thought string `json:"thought"`
}

// AssertResponse is the full outcome of the assert model call.
type AssertResponse struct {
	Content     AssertContent
	RawResponse string
	Usage       *Usage
}
