// File: internal/retriever/retriever.go
// Description: Headless-browser snapshot retriever. It owns one Chrome tab and
// turns the live page into the immutable UIContext consumed by the insight
// engine.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/glimpsehq/glimpse/api/schemas"
	"github.com/glimpsehq/glimpse/internal/config"
)

// snapshotScript walks the DOM and serializes every visible, addressable node
// together with the viewport geometry. It runs inside the page.
const snapshotScript = `(() => {
	const selector = 'a, button, input, select, textarea, [role], [onclick], [contenteditable], h1, h2, h3, label, img, li, td, span, p, div';
	const nodes = [];
	const seen = new Set();
	for (const el of document.querySelectorAll(selector)) {
		if (seen.has(el)) continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') continue;
		const rect = el.getBoundingClientRect();
		if (rect.width < 1 || rect.height < 1) continue;
		if (rect.bottom < 0 || rect.right < 0 || rect.top > window.innerHeight || rect.left > window.innerWidth) continue;
		const text = (el.innerText || el.value || el.getAttribute('aria-label') || '').trim().slice(0, 120);
		const tag = el.tagName.toLowerCase();
		// Containers only matter when they carry their own short text.
		if (['div', 'span', 'p', 'li', 'td'].includes(tag)) {
			if (!text || el.children.length > 3 || text.length > 80) continue;
		}
		const attributes = {};
		for (const name of ['type', 'placeholder', 'href', 'role', 'title', 'alt', 'name', 'value']) {
			const v = el.getAttribute(name);
			if (v) attributes[name] = v.slice(0, 200);
		}
		seen.add(el);
		nodes.push({
			tag: tag,
			text: text,
			rect: { left: rect.left, top: rect.top, width: rect.width, height: rect.height },
			attributes: attributes,
		});
	}
	return {
		viewport: { left: 0, top: 0, width: window.innerWidth, height: window.innerHeight },
		nodes: nodes,
	};
})()`

type rawNode struct {
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Rect       schemas.Rect      `json:"rect"`
	Attributes map[string]string `json:"attributes"`
}

type rawSnapshot struct {
	Viewport schemas.Rect `json:"viewport"`
	Nodes    []rawNode    `json:"nodes"`
}

// Retriever drives a single headless Chrome tab and snapshots it on demand.
// Concurrent snapshot requests of the same action kind are coalesced into one
// browser round-trip.
type Retriever struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	group singleflight.Group
}

var _ schemas.ContextRetriever = (*Retriever)(nil)

// New creates a retriever. Chrome is launched lazily on the first use.
func New(cfg config.BrowserConfig, logger *zap.Logger) *Retriever {
	return &Retriever{cfg: cfg, logger: logger.Named("retriever")}
}

// ensureTab lazily launches Chrome and opens the working tab. Must be called
// with r.mu held.
func (r *Retriever) ensureTab() error {
	if r.tabCtx != nil && r.tabCtx.Err() == nil {
		return nil
	}
	// First call, or Chrome died underneath us; start fresh.
	if r.allocCancel != nil {
		r.allocCancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-gpu", r.cfg.Headless),
		chromedp.WindowSize(r.cfg.ViewportWidth, r.cfg.ViewportHeight),
	)
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.tabCtx, r.tabCancel = chromedp.NewContext(r.allocCtx)

	if err := chromedp.Run(r.tabCtx,
		emulation.SetDeviceMetricsOverride(int64(r.cfg.ViewportWidth), int64(r.cfg.ViewportHeight), 1, false),
		chromedp.Navigate("about:blank"),
	); err != nil {
		r.tabCancel()
		r.allocCancel()
		r.tabCtx, r.allocCtx = nil, nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	r.logger.Info("Headless browser launched",
		zap.Int("viewport_width", r.cfg.ViewportWidth),
		zap.Int("viewport_height", r.cfg.ViewportHeight),
	)
	return nil
}

// runCtx derives a deadline-bound chromedp context for one operation and ties
// it to the caller's context.
func (r *Retriever) runCtx(callCtx context.Context) (context.Context, context.CancelFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureTab(); err != nil {
		return nil, nil, err
	}

	timeout := r.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.tabCtx, timeout)
	if callCtx != nil {
		go func() {
			select {
			case <-callCtx.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	return ctx, cancel, nil
}

// Navigate points the working tab at a URL and waits for the page to settle.
func (r *Retriever) Navigate(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("navigate requires a non-empty url")
	}
	runCtx, cancel, err := r.runCtx(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	r.logger.Debug("Navigation complete", zap.String("url", url))
	return nil
}

// Retrieve snapshots the current page. Locate snapshots carry a screenshot for
// the vision pathway; extract and assert snapshots skip it, which keeps them
// cheaper. Concurrent calls for the same kind share one capture.
func (r *Retriever) Retrieve(ctx context.Context, kind schemas.ActionKind) (*schemas.UIContext, error) {
	v, err, _ := r.group.Do(string(kind), func() (interface{}, error) {
		return r.capture(ctx, kind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*schemas.UIContext), nil
}

func (r *Retriever) capture(ctx context.Context, kind schemas.ActionKind) (*schemas.UIContext, error) {
	runCtx, cancel, err := r.runCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var (
		url, title string
		raw        rawSnapshot
		shot       []byte
	)
	actions := []chromedp.Action{
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.Evaluate(snapshotScript, &raw),
	}
	if kind == schemas.ActionLocate {
		actions = append(actions, chromedp.CaptureScreenshot(&shot))
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}

	uiCtx := buildContext(kind, url, title, raw, shot)
	r.logger.Debug("Page snapshot captured",
		zap.String("kind", string(kind)),
		zap.String("url", url),
		zap.Int("element_count", len(uiCtx.Elements)),
	)
	return uiCtx, nil
}

// Close tears down the tab and the Chrome process.
func (r *Retriever) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tabCancel != nil {
		r.tabCancel()
		r.tabCancel, r.tabCtx = nil, nil
	}
	if r.allocCancel != nil {
		r.allocCancel()
		r.allocCancel, r.allocCtx = nil, nil
	}
}
