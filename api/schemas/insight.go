package schemas

import "time"

// ActionKind identifies which of the three perception operations a request
// belongs to. Context retrieval is parameterized by kind so that cheaper
// snapshots can be taken for non-locate actions.
type ActionKind string

const (
	ActionLocate  ActionKind = "locate"
	ActionExtract ActionKind = "extract"
	ActionAssert  ActionKind = "assert"
)

// Point is a coordinate in CSS pixels relative to the viewport origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned region of the page. It is used both as a narrowed
// search area and as a returned match bounding box.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// IsZero reports whether the rectangle carries no area at all.
func (r Rect) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

// Element is one addressable node of a UI snapshot.
type Element struct {
	ID         string            `json:"id"`
	IndexID    int               `json:"indexId"`
	Rect       Rect              `json:"rect"`
	Center     Point             `json:"center"`
	Tag        string            `json:"tag,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// UIContext is an immutable, action-scoped snapshot of the addressable
// surface. The engine never mutates it and holds it only for the duration of
// one request.
type UIContext struct {
	Kind       ActionKind `json:"kind"`
	URL        string     `json:"url,omitempty"`
	Title      string     `json:"title,omitempty"`
	Elements   []*Element `json:"elements"`
	Screenshot []byte     `json:"-"`
	Viewport   Rect       `json:"viewport"`
	CapturedAt time.Time  `json:"capturedAt"`
}

// ElementByID returns the snapshot element with the given id, or nil.
// Note that during locate reconciliation the resolver attached to the model
// reply, not this helper, is the source of truth for "does this id exist".
func (c *UIContext) ElementByID(id string) *Element {
	for _, el := range c.Elements {
		if el.ID == id {
			return el
		}
	}
	return nil
}

// LocateQuery describes one element-location request.
//
// VLMode mirrors the loosely typed mode switch accepted by callers: the empty
// string means unset, the literal "false" is an explicit opt-out, and any
// other value both enables vision-language narrowing and names the mode.
type LocateQuery struct {
	Prompt    string `json:"prompt"`
	DeepThink bool   `json:"deepThink,omitempty"`
	VLMode    string `json:"vlLocateMode,omitempty"`
}

// VLModeSet reports whether the caller supplied any VL mode value.
func (q *LocateQuery) VLModeSet() bool { return q.VLMode != "" }

// VLModeTruthy reports whether the supplied VL mode enables narrowing.
func (q *LocateQuery) VLModeTruthy() bool {
	return q.VLMode != "" && q.VLMode != "false"
}

// QuickAnswer is an optional, partial pre-supplied answer. When present it
// substitutes for (or relaxes the requirement for) a natural-language prompt
// and seeds the element-locate model call.
type QuickAnswer struct {
	ID     string `json:"id,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Rect   *Rect  `json:"rect,omitempty"`
}

// Usage is the token accounting for one model invocation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TaskInfo is the per-call telemetry merged into every dump record.
type TaskInfo struct {
	DurationMs            int64          `json:"durationMs"`
	RawResponse           string         `json:"rawResponse,omitempty"`
	FormattedResponse     string         `json:"formattedResponse,omitempty"`
	Usage                 *Usage         `json:"usage,omitempty"`
	SearchArea            *Rect          `json:"searchArea,omitempty"`
	SearchAreaRawResponse string         `json:"searchAreaRawResponse,omitempty"`
	SearchAreaUsage       *Usage         `json:"searchAreaUsage,omitempty"`
	Extra                 map[string]any `json:"extra,omitempty"`
}

// Merge copies caller-supplied baseline metadata into the task info without
// overwriting fields the call itself produced.
func (t *TaskInfo) Merge(base map[string]any) {
	if len(base) == 0 {
		return
	}
	if t.Extra == nil {
		t.Extra = make(map[string]any, len(base))
	}
	for k, v := range base {
		if _, exists := t.Extra[k]; !exists {
			t.Extra[k] = v
		}
	}
}

// LocatedElement is the caller-facing shape of a successfully resolved match.
type LocatedElement struct {
	ID      string `json:"id"`
	IndexID int    `json:"indexId"`
	Center  Point  `json:"center"`
	Rect    Rect   `json:"rect"`
}

// LocateResult is the outcome of a locate call. Element is nil when the model
// matched nothing; Rect always reflects the overall match rectangle from the
// element-locate stage, never the narrowed search area.
type LocateResult struct {
	Element *LocatedElement `json:"element"`
	Rect    Rect            `json:"rect"`
}

// DemandKind tags the two extract input variants.
type DemandKind string

const (
	DemandText   DemandKind = "text"
	DemandSchema DemandKind = "schema"
)

// ExtractDemand is a tagged description of what to pull out of the page:
// either a free-form natural-language demand or a field-to-description map.
type ExtractDemand struct {
	Kind   DemandKind        `json:"kind"`
	Text   string            `json:"text,omitempty"`
	Schema map[string]string `json:"schema,omitempty"`
}

// TextDemand builds a natural-language extract demand.
func TextDemand(text string) ExtractDemand {
	return ExtractDemand{Kind: DemandText, Text: text}
}

// SchemaDemand builds a structured field-to-description extract demand.
func SchemaDemand(fields map[string]string) ExtractDemand {
	return ExtractDemand{Kind: DemandSchema, Schema: fields}
}

// IsZero reports whether the demand carries no request at all.
func (d ExtractDemand) IsZero() bool {
	return d.Text == "" && len(d.Schema) == 0
}

// ExtractResult carries the extracted data and its token accounting.
type ExtractResult struct {
	Kind  DemandKind `json:"kind"`
	Data  any        `json:"data"`
	Usage *Usage     `json:"usage,omitempty"`
}

// AssertResult is the evaluation of a natural-language assertion. A failed
// assertion is a normal result, not an error: Pass is false and Thought holds
// the model's justification.
type AssertResult struct {
	Pass    bool   `json:"pass"`
	Thought string `json:"thought"`
	Usage   *Usage `json:"usage,omitempty"`
}

// DumpRecord is the tagged diagnostic payload emitted exactly once per call,
// on both the success and the error path.
type DumpRecord struct {
	ID              string            `json:"id"`
	Kind            ActionKind        `json:"type"`
	Query           string            `json:"userQuery"`
	MatchedElements []*LocatedElement `json:"matchedElement,omitempty"`
	Data            any               `json:"data,omitempty"`
	Task            *TaskInfo         `json:"taskInfo,omitempty"`
	Error           string            `json:"error,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}
