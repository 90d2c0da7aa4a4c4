// File: internal/retriever/context.go
package retriever

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/glimpsehq/glimpse/api/schemas"
)

// buildContext turns a raw page snapshot into the immutable UIContext handed
// to the engine. Element ids are content hashes, so an unchanged element keeps
// its id across snapshots and a cached quick answer can resolve again.
func buildContext(kind schemas.ActionKind, url, title string, raw rawSnapshot, screenshot []byte) *schemas.UIContext {
	elements := make([]*schemas.Element, 0, len(raw.Nodes))
	for i, node := range raw.Nodes {
		elements = append(elements, &schemas.Element{
			ID:         elementID(node),
			IndexID:    i,
			Rect:       node.Rect,
			Center:     node.Rect.Center(),
			Tag:        node.Tag,
			Text:       node.Text,
			Attributes: node.Attributes,
		})
	}
	return &schemas.UIContext{
		Kind:       kind,
		URL:        url,
		Title:      title,
		Elements:   elements,
		Screenshot: screenshot,
		Viewport:   raw.Viewport,
		CapturedAt: time.Now(),
	}
}

// elementID derives a stable id from the node's tag, text and geometry.
func elementID(node rawNode) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%.0f|%.0f|%.0f|%.0f",
		node.Tag, node.Text,
		node.Rect.Left, node.Rect.Top, node.Rect.Width, node.Rect.Height,
	)
	return fmt.Sprintf("e%08x", h.Sum32())
}
