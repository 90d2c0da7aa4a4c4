// File: internal/llmclient/perception.go
package llmclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
	"github.com/glimpsehq/glimpse/internal/llmutil"
)

// PerceptionClient adapts the raw chat client into the four model-call
// contracts the insight engine consumes.
type PerceptionClient struct {
	client *Client
	logger *zap.Logger
}

// Interface conformance.
var (
	_ schemas.SectionLocator = (*PerceptionClient)(nil)
	_ schemas.ElementLocator = (*PerceptionClient)(nil)
	_ schemas.ExtractCaller  = (*PerceptionClient)(nil)
	_ schemas.AssertCaller   = (*PerceptionClient)(nil)
)

// NewPerceptionClient wraps a chat client.
func NewPerceptionClient(client *Client, logger *zap.Logger) *PerceptionClient {
	return &PerceptionClient{
		client: client,
		logger: logger.Named("perception"),
	}
}

const sectionLocateSystemPrompt = `You are a visual grounding assistant. Given a page snapshot and a description of a page section, reply with the bounding box of that section as JSON: {"bbox": {"left": n, "top": n, "width": n, "height": n}}. Reply with {"bbox": null} if the section cannot be found.`

const elementLocateSystemPrompt = `You are a UI element locator. Given a list of addressable page elements and a target description, reply with JSON: {"elements": [{"id": "..."}], "bbox": {"left": n, "top": n, "width": n, "height": n}, "errors": ["..."]}. Claim at most one element id. Use an empty elements array when nothing matches.`

const extractSystemPrompt = `You are a data extraction assistant. Given a page snapshot and a data demand, reply with JSON: {"data": <the extracted value or object>, "errors": ["..."]}.`

const assertSystemPrompt = `You are a UI assertion evaluator. Given a page snapshot and an assertion, reply with JSON: {"pass": true|false, "thought": "<one sentence justification>"}.`

type sectionLocateReply struct {
	BBox *schemas.Rect `json:"bbox"`
}

type elementLocateReply struct {
	Elements []schemas.ElementRef `json:"elements"`
	BBox     schemas.Rect         `json:"bbox"`
	Errors   []string             `json:"errors"`
}

type extractReply struct {
	Data   json.RawMessage `json:"data"`
	Errors []string        `json:"errors"`
}

// LocateSection asks the vision model for the rectangle of a page section.
func (p *PerceptionClient) LocateSection(ctx context.Context, uiCtx *schemas.UIContext, prompt string, profile schemas.ModelProfile) (*schemas.SectionLocateResponse, error) {
	resp, err := p.client.Complete(ctx, CompletionRequest{
		SystemPrompt:  sectionLocateSystemPrompt,
		UserPrompt:    fmt.Sprintf("Page: %s\nViewport: %.0fx%.0f\nSection to find: %s", uiCtx.URL, uiCtx.Viewport.Width, uiCtx.Viewport.Height, prompt),
		ScreenshotPNG: uiCtx.Screenshot,
		ForceJSON:     true,
		Profile:       profile,
	})
	if err != nil {
		return nil, err
	}

	out := &schemas.SectionLocateResponse{RawResponse: resp.Content, Usage: &resp.Usage}
	parsed, err := llmutil.ParseJSONResponse[sectionLocateReply](resp.Content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	if parsed.BBox != nil && !parsed.BBox.IsZero() {
		out.Rect = parsed.BBox
	}
	return out, nil
}

// LocateElement resolves a target description to claimed element references.
func (p *PerceptionClient) LocateElement(ctx context.Context, uiCtx *schemas.UIContext, call schemas.ElementLocateCall) (*schemas.ElementLocateResponse, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Page: %s\nTarget: %s\n", uiCtx.URL, call.TargetDescription)
	if call.QuickAnswer != nil {
		if call.QuickAnswer.ID != "" {
			fmt.Fprintf(&sb, "A prior answer suggests element id %q; verify it before claiming it.\n", call.QuickAnswer.ID)
		}
		if call.QuickAnswer.Prompt != "" {
			fmt.Fprintf(&sb, "Prior answer context: %s\n", call.QuickAnswer.Prompt)
		}
	}
	if call.SearchArea != nil {
		fmt.Fprintf(&sb, "Only consider elements inside the region left=%.0f top=%.0f width=%.0f height=%.0f.\n",
			call.SearchArea.Left, call.SearchArea.Top, call.SearchArea.Width, call.SearchArea.Height)
	}
	sb.WriteString("Elements:\n")
	sb.WriteString(describeElements(uiCtx.Elements, call.SearchArea))

	resp, err := p.client.Complete(ctx, CompletionRequest{
		SystemPrompt:  elementLocateSystemPrompt,
		UserPrompt:    sb.String(),
		ScreenshotPNG: uiCtx.Screenshot,
		ForceJSON:     true,
		Profile:       call.Profile,
	})
	if err != nil {
		return nil, err
	}

	out := &schemas.ElementLocateResponse{
		RawResponse: resp.Content,
		Usage:       &resp.Usage,
		ElementByID: uiCtx.ElementByID,
	}
	parsed, err := llmutil.ParseJSONResponse[elementLocateReply](resp.Content)
	if err != nil {
		out.Parsed.Errors = []string{err.Error()}
		return out, nil
	}
	out.Parsed.Elements = parsed.Elements
	out.Parsed.Errors = parsed.Errors
	out.Rect = parsed.BBox
	return out, nil
}

// CallExtract performs a single data-extraction call.
func (p *PerceptionClient) CallExtract(ctx context.Context, uiCtx *schemas.UIContext, demand schemas.ExtractDemand) (*schemas.ExtractResponse, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Page: %s\n", uiCtx.URL)
	switch demand.Kind {
	case schemas.DemandSchema:
		sb.WriteString("Extract an object with the following fields:\n")
		// Deterministic field order keeps prompts reproducible.
		fields := make([]string, 0, len(demand.Schema))
		for name := range demand.Schema {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for _, name := range fields {
			fmt.Fprintf(&sb, "- %s: %s\n", name, demand.Schema[name])
		}
	default:
		fmt.Fprintf(&sb, "Data demand: %s\n", demand.Text)
	}
	sb.WriteString("Visible elements:\n")
	sb.WriteString(describeElements(uiCtx.Elements, nil))

	resp, err := p.client.Complete(ctx, CompletionRequest{
		SystemPrompt:  extractSystemPrompt,
		UserPrompt:    sb.String(),
		ScreenshotPNG: uiCtx.Screenshot,
		ForceJSON:     true,
	})
	if err != nil {
		return nil, err
	}

	out := &schemas.ExtractResponse{RawResponse: resp.Content, Usage: &resp.Usage}
	parsed, err := llmutil.ParseJSONResponse[extractReply](resp.Content)
	if err != nil {
		out.Parsed.Errors = []string{err.Error()}
		return out, nil
	}
	out.Parsed.Errors = parsed.Errors
	if len(parsed.Data) > 0 && string(parsed.Data) != "null" {
		var data any
		if err := json.Unmarshal(parsed.Data, &data); err == nil {
			out.Parsed.Data = data
		} else {
			out.Parsed.Errors = append(out.Parsed.Errors, fmt.Sprintf("undecodable data payload: %v", err))
		}
	}
	return out, nil
}

// CallAssert evaluates a natural-language assertion.
func (p *PerceptionClient) CallAssert(ctx context.Context, uiCtx *schemas.UIContext, assertion string) (*schemas.AssertResponse, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Page: %s\nAssertion: %s\nVisible elements:\n", uiCtx.URL, assertion)
	sb.WriteString(describeElements(uiCtx.Elements, nil))

	resp, err := p.client.Complete(ctx, CompletionRequest{
		SystemPrompt:  assertSystemPrompt,
		UserPrompt:    sb.String(),
		ScreenshotPNG: uiCtx.Screenshot,
		ForceJSON:     true,
	})
	if err != nil {
		return nil, err
	}

	out := &schemas.AssertResponse{RawResponse: resp.Content, Usage: &resp.Usage}
	parsed, err := llmutil.ParseJSONResponse[schemas.AssertContent](resp.Content)
	if err != nil {
		// An unparseable verdict is a failed evaluation, not a dropped call.
		out.Content = schemas.AssertContent{Pass: false, Thought: fmt.Sprintf("unparseable assertion reply: %v", err)}
		return out, nil
	}
	out.Content = *parsed
	return out, nil
}

// describeElements renders the element set as one compact line per element,
// optionally restricted to those intersecting a search area.
func describeElements(elements []*schemas.Element, area *schemas.Rect) string {
	var sb strings.Builder
	for _, el := range elements {
		if area != nil && !intersects(el.Rect, *area) {
			continue
		}
		fmt.Fprintf(&sb, "id=%s tag=%s rect=(%.0f,%.0f,%.0f,%.0f)", el.ID, el.Tag, el.Rect.Left, el.Rect.Top, el.Rect.Width, el.Rect.Height)
		if el.Text != "" {
			fmt.Fprintf(&sb, " text=%q", clip(el.Text, 80))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func intersects(a, b schemas.Rect) bool {
	return a.Left < b.Left+b.Width && b.Left < a.Left+a.Width &&
		a.Top < b.Top+b.Height && b.Top < a.Top+a.Height
}

// clip shortens page-derived text without splitting a multi-byte rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
