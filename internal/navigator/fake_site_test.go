// internal/navigator/fake_site_test.go
package navigator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/session"
)

// fakePage is one scripted page of the fake site.
type fakePage struct {
	// queries maps a CSS selector to the elements it matches, in document order.
	queries map[string][]schemas.ElementInfo
	// links maps an element selector to the URL a click loads in the same tab.
	links map[string]string
	// popups maps an element selector to the URL a click opens in a new tab.
	popups map[string]string
	// rejects lists inputs whose value only changes through key events.
	rejects map[string]bool
	// renderDelay hides every element until the page has been open this long.
	renderDelay time.Duration
}

func newFakePage() *fakePage {
	return &fakePage{
		queries: make(map[string][]schemas.ElementInfo),
		links:   make(map[string]string),
		popups:  make(map[string]string),
		rejects: make(map[string]bool),
	}
}

// add registers el under the query selector.
func (p *fakePage) add(query string, el schemas.ElementInfo) *fakePage {
	el.Visible = true
	p.queries[query] = append(p.queries[query], el)
	return p
}

func (p *fakePage) has(selector string) bool {
	for _, els := range p.queries {
		for _, el := range els {
			if el.Selector == selector {
				return true
			}
		}
	}
	return false
}

// fakeBrowser is a scripted site implementing Browser without Chrome.
type fakeBrowser struct {
	mu sync.Mutex

	pages  map[string]*fakePage
	url    string
	// openedAt is when the current page was loaded.
	openedAt time.Time
	values map[string]string
	// focus is the element the pointer last targeted.
	focus      string
	pendingTab string

	navTimeouts int
	navigations int
	clicks      []string

	expired   bool
	handedOff bool
	closed    bool
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		pages:  make(map[string]*fakePage),
		values: make(map[string]string),
		url:    "about:blank",
	}
}

// open switches to url. Callers hold mu.
func (f *fakeBrowser) open(url string) {
	f.url = url
	f.openedAt = time.Now()
}

func (f *fakeBrowser) page() *fakePage {
	if p, ok := f.pages[f.url]; ok {
		return p
	}
	return newFakePage()
}

func (f *fakeBrowser) QueryAll(ctx context.Context, selector string, limit int) ([]schemas.ElementInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.page()
	if p.renderDelay > 0 && time.Since(f.openedAt) < p.renderDelay {
		return nil, ctx.Err()
	}
	els := p.queries[selector]
	if limit > 0 && len(els) > limit {
		els = els[:limit]
	}
	return append([]schemas.ElementInfo(nil), els...), ctx.Err()
}

func (f *fakeBrowser) Ancestors(ctx context.Context, selector string, depth int) ([]schemas.ElementInfo, error) {
	return nil, ctx.Err()
}

func (f *fakeBrowser) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func (f *fakeBrowser) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data.Type != schemas.MouseRelease {
		return nil
	}
	f.clicks = append(f.clicks, f.focus)
	p := f.page()
	if to, ok := p.links[f.focus]; ok {
		f.open(to)
	} else if to, ok := p.popups[f.focus]; ok {
		f.pendingTab = to
	}
	return nil
}

func (f *fakeBrowser) SendKeys(ctx context.Context, keys string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if keys == "\b" {
		f.values[f.focus] = ""
		return nil
	}
	f.values[f.focus] += keys
	return nil
}

func (f *fakeBrowser) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	return nil
}

func (f *fakeBrowser) GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.page().has(selector) {
		return nil, fmt.Errorf("element '%s' not found or not visible", selector)
	}
	f.focus = selector
	return &schemas.ElementGeometry{
		Vertices: []float64{10, 10, 110, 10, 110, 40, 10, 40},
		Width:    100,
		Height:   30,
	}, nil
}

// ExecuteScript only serves the humanoid scroll-into-view script.
func (f *fakeBrowser) ExecuteScript(ctx context.Context, script string, args []interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sel, _ := args[0].(string)
	if !f.page().has(sel) {
		return json.RawMessage(`{"exists":false,"inView":false,"scrolled":false}`), nil
	}
	return json.RawMessage(`{"exists":true,"inView":true,"scrolled":false}`), nil
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations++
	if f.navTimeouts > 0 {
		f.navTimeouts--
		return fmt.Errorf("navigate to %s: %w", url, session.ErrNavigationTimeout)
	}
	f.open(url)
	return ctx.Err()
}

func (f *fakeBrowser) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, ctx.Err()
}

func (f *fakeBrowser) SetValue(ctx context.Context, selector, value string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.page().has(selector) {
		return "", fmt.Errorf("setValue: element '%s' not found", selector)
	}
	if !f.page().rejects[selector] {
		f.values[selector] = value
	}
	return f.values[selector], nil
}

func (f *fakeBrowser) Value(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[selector], nil
}

func (f *fakeBrowser) AdoptNewTab(ctx context.Context, wait time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingTab == "" {
		return false, nil
	}
	f.open(f.pendingTab)
	f.pendingTab = ""
	return true, nil
}

func (f *fakeBrowser) Expired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired
}

func (f *fakeBrowser) Handoff() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired {
		return session.ErrClosed
	}
	f.handedOff = true
	return nil
}

func (f *fakeBrowser) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBrowser) value(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[selector]
}

func (f *fakeBrowser) state() (handedOff, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handedOff, f.closed
}

// hasLine reports whether any log line contains substr.
func hasLine(log []string, substr string) bool {
	for _, l := range log {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
