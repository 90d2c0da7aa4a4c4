package llmclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
)

func testUIContext() *schemas.UIContext {
	return &schemas.UIContext{
		Kind: schemas.ActionLocate,
		URL:  "https://shop.example/cart",
		Elements: []*schemas.Element{
			{ID: "e0", IndexID: 0, Tag: "button", Text: "Submit", Rect: schemas.Rect{Left: 10, Top: 10, Width: 100, Height: 30}},
			{ID: "e1", IndexID: 1, Tag: "a", Text: "Home", Rect: schemas.Rect{Left: 500, Top: 10, Width: 60, Height: 20}},
		},
		Viewport: schemas.Rect{Width: 1280, Height: 800},
	}
}

func newPerception(t *testing.T, srv *httptest.Server) *PerceptionClient {
	t.Helper()
	return NewPerceptionClient(newTestClient(t, srv.URL), zap.NewNop())
}

func TestLocateSection_ParsesRect(t *testing.T) {
	srv := newChatServer(t, `{"bbox": {"left": 0, "top": 0, "width": 200, "height": 100}}`, nil)
	defer srv.Close()

	resp, err := newPerception(t, srv).LocateSection(context.Background(), testUIContext(), "the checkout form", schemas.ModelProfile{VLMode: "qwen-vl"})
	require.NoError(t, err)
	require.NotNil(t, resp.Rect)
	assert.Equal(t, 200.0, resp.Rect.Width)
	assert.NotNil(t, resp.Usage)
	assert.Empty(t, resp.Error)
}

func TestLocateSection_NullBBoxMeansNoRect(t *testing.T) {
	srv := newChatServer(t, `{"bbox": null}`, nil)
	defer srv.Close()

	resp, err := newPerception(t, srv).LocateSection(context.Background(), testUIContext(), "nonexistent area", schemas.ModelProfile{})
	require.NoError(t, err)
	assert.Nil(t, resp.Rect)
}

func TestLocateElement_ClaimsAndResolver(t *testing.T) {
	srv := newChatServer(t, `{"elements": [{"id": "e0"}], "bbox": {"left": 10, "top": 10, "width": 100, "height": 30}}`, nil)
	defer srv.Close()

	uiCtx := testUIContext()
	resp, err := newPerception(t, srv).LocateElement(context.Background(), uiCtx, schemas.ElementLocateCall{
		TargetDescription: "the submit button",
	})
	require.NoError(t, err)
	require.Len(t, resp.Parsed.Elements, 1)
	assert.Equal(t, "e0", resp.Parsed.Elements[0].ID)
	assert.Equal(t, 100.0, resp.Rect.Width)

	// The attached resolver maps claimed ids back to live snapshot elements.
	require.NotNil(t, resp.ElementByID)
	assert.Equal(t, "button", resp.ElementByID("e0").Tag)
	assert.Nil(t, resp.ElementByID("stale"))
}

func TestLocateElement_GarbageReplyBecomesParseError(t *testing.T) {
	srv := newChatServer(t, "I could not find anything, sorry!", nil)
	defer srv.Close()

	resp, err := newPerception(t, srv).LocateElement(context.Background(), testUIContext(), schemas.ElementLocateCall{TargetDescription: "x"})
	require.NoError(t, err)
	assert.Empty(t, resp.Parsed.Elements)
	assert.NotEmpty(t, resp.Parsed.Errors)
}

func TestCallExtract_TextDemand(t *testing.T) {
	srv := newChatServer(t, `{"data": {"price": "9.99"}}`, nil)
	defer srv.Close()

	resp, err := newPerception(t, srv).CallExtract(context.Background(), testUIContext(), schemas.TextDemand("the price"))
	require.NoError(t, err)
	data, ok := resp.Parsed.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "9.99", data["price"])
	assert.Empty(t, resp.Parsed.Errors)
}

func TestCallExtract_ErrorsWithData(t *testing.T) {
	srv := newChatServer(t, `{"data": {"price": "9.99"}, "errors": ["currency symbol ambiguous"]}`, nil)
	defer srv.Close()

	resp, err := newPerception(t, srv).CallExtract(context.Background(), testUIContext(), schemas.SchemaDemand(map[string]string{"price": "item price"}))
	require.NoError(t, err)
	assert.NotNil(t, resp.Parsed.Data)
	assert.Len(t, resp.Parsed.Errors, 1)
}

func TestCallAssert_Verdict(t *testing.T) {
	srv := newChatServer(t, `{"pass": false, "thought": "cart is not empty"}`, nil)
	defer srv.Close()

	resp, err := newPerception(t, srv).CallAssert(context.Background(), testUIContext(), "cart is empty")
	require.NoError(t, err)
	assert.False(t, resp.Content.Pass)
	assert.Equal(t, "cart is not empty", resp.Content.Thought)
}

func TestDescribeElements_SearchAreaFilter(t *testing.T) {
	uiCtx := testUIContext()
	area := schemas.Rect{Left: 0, Top: 0, Width: 200, Height: 200}

	out := describeElements(uiCtx.Elements, &area)
	assert.Contains(t, out, "id=e0")
	assert.NotContains(t, out, "id=e1", "elements outside the search area are omitted")
}

func TestClip_KeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 50)
	out := clip(s, 81)
	assert.True(t, utf8.ValidString(out), "clipping must not split a rune")
	assert.Equal(t, strings.Repeat("é", 40)+"…", out)

	assert.Equal(t, "short", clip("short", 81))
}
