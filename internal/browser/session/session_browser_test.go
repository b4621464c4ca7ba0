// internal/browser/session/session_browser_test.go
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/checkout-navigator/internal/config"
)

const fixtureHTML = `<!doctype html>
<html><head><title>Fixture</title></head>
<body>
  <div class="card"><span>Alpha</span></div>
  <div class="card"><span>Beta</span></div>
  <p id="dup">one</p>
  <p id="dup">two</p>
  <a id="open" href="/popup" target="_blank"><span id="label">Open deal</span></a>
  <div id="pad" style="cursor:pointer" tabindex="0"><span id="inner">Pointer</span></div>
  <div id="plain"><span id="static">Static</span></div>
  <input id="first" name="firstname" type="text">
  <select id="rooms"><option value="0">0</option><option value="1">1</option><option value="2">2</option></select>
  <button id="go" style="width:120px;height:40px">Book</button>
</body></html>`

const popupHTML = `<!doctype html><html><head><title>Deal</title></head><body><h1>Deal</h1></body></html>`

// findChrome skips the test unless a Chrome binary is available.
func findChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if p := os.Getenv("NAVIGATOR_BROWSER_EXEC_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary found")
	return ""
}

func newBrowserController(t *testing.T) *Controller {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.Headless = true
	cfg.BrowserCfg.ExecPath = findChrome(t)
	cfg.BrowserCfg.Args = []string{"--no-sandbox", "--disable-gpu"}
	cfg.BrowserCfg.Persona.Languages = []string{"de-DE", "de"}

	c := NewController(cfg, zaptest.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, c.Shutdown(ctx))
	})
	return c
}

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fixtureHTML)
	})
	mux.HandleFunc("/popup", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, popupHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	timeout := 60 * time.Second
	if dl, ok := t.Deadline(); ok {
		if remaining := time.Until(dl) - 5*time.Second; remaining < timeout {
			timeout = remaining
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

func TestSession_Browser(t *testing.T) {
	c := newBrowserController(t)
	srv := newFixtureServer(t)
	ctx := testContext(t)

	s, err := c.Launch(ctx, 5*time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	require.NoError(t, s.Navigate(ctx, srv.URL+"/"))

	t.Run("selectors are unique", func(t *testing.T) {
		for _, query := range []string{"div.card span", "p"} {
			found, err := s.QueryAll(ctx, query, 10)
			require.NoError(t, err)
			require.Len(t, found, 2, query)
			assert.NotEqual(t, found[0].Selector, found[1].Selector)

			for _, el := range found {
				assert.NotEqual(t, "#dup", el.Selector, "duplicated ids are not unique")
				again, err := s.QueryAll(ctx, el.Selector, 10)
				require.NoError(t, err)
				require.Len(t, again, 1, el.Selector)
				assert.Equal(t, el.Text, again[0].Text)
				assert.Equal(t, el.Selector, again[0].Selector)
			}
		}
	})

	t.Run("clickable ancestors", func(t *testing.T) {
		label, err := s.QueryAll(ctx, "#label", 1)
		require.NoError(t, err)
		require.Len(t, label, 1)
		assert.False(t, label[0].Clickable)
		assert.True(t, label[0].Visible)

		anc, err := s.Ancestors(ctx, "#label", 3)
		require.NoError(t, err)
		require.NotEmpty(t, anc)
		assert.Equal(t, "a", anc[0].Tag)
		assert.True(t, anc[0].Clickable)
		assert.True(t, strings.HasSuffix(anc[0].Href, "/popup"))

		anc, err = s.Ancestors(ctx, "#inner", 1)
		require.NoError(t, err)
		require.Len(t, anc, 1)
		assert.Equal(t, "#pad", anc[0].Selector)
		assert.True(t, anc[0].Clickable, "pointer cursor with a tab stop")

		anc, err = s.Ancestors(ctx, "#static", 1)
		require.NoError(t, err)
		require.Len(t, anc, 1)
		assert.False(t, anc[0].Clickable)
	})

	t.Run("value round trip", func(t *testing.T) {
		got, err := s.SetValue(ctx, "#first", "Ada")
		require.NoError(t, err)
		assert.Equal(t, "Ada", got)
		got, err = s.Value(ctx, "#first")
		require.NoError(t, err)
		assert.Equal(t, "Ada", got)

		got, err = s.SetValue(ctx, "#rooms", "2")
		require.NoError(t, err)
		assert.Equal(t, "2", got)
		got, err = s.Value(ctx, "#rooms")
		require.NoError(t, err)
		assert.Equal(t, "2", got)

		_, err = s.Value(ctx, "#missing")
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("geometry", func(t *testing.T) {
		geom, err := s.GetElementGeometry(ctx, "#go")
		require.NoError(t, err)
		assert.Len(t, geom.Vertices, 8)
		assert.Equal(t, int64(120), geom.Width)
		assert.Equal(t, int64(40), geom.Height)
		assert.Equal(t, "BUTTON", geom.TagName)

		_, err = s.GetElementGeometry(ctx, "#missing")
		assert.Error(t, err)
	})

	t.Run("adopts a new tab with the persona", func(t *testing.T) {
		adopted, err := s.AdoptNewTab(ctx, 0)
		require.NoError(t, err)
		assert.False(t, adopted, "nothing opened yet")

		require.NoError(t, s.RunActions(ctx, chromedp.Click("#open", chromedp.ByQuery)))
		adopted, err = s.AdoptNewTab(ctx, 10*time.Second)
		require.NoError(t, err)
		require.True(t, adopted)

		loc, err := s.CurrentURL(ctx)
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/popup", loc)

		var webdriverHidden bool
		var languages string
		require.NoError(t, s.RunActions(ctx,
			chromedp.Evaluate(`navigator.webdriver === undefined`, &webdriverHidden),
			chromedp.Evaluate(`navigator.languages.join(',')`, &languages),
		))
		assert.True(t, webdriverHidden)
		assert.Equal(t, "de-DE,de", languages)
	})
}

func TestController_BrowserDeadline(t *testing.T) {
	c := newBrowserController(t)
	ctx := testContext(t)

	t.Run("a deadline shorter than the launch fails it", func(t *testing.T) {
		s, err := c.Launch(ctx, time.Millisecond)
		require.Error(t, err)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrLaunch)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 0, c.Active())
	})

	t.Run("the deadline kills a running browser", func(t *testing.T) {
		s, err := c.Launch(ctx, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, 1, c.Active())

		cdp := chromedp.FromContext(s.browserCtx)
		require.NotNil(t, cdp)
		require.NotNil(t, cdp.Browser)
		proc := cdp.Browser.Process()
		require.NotNil(t, proc)

		assert.Eventually(t, s.Expired, 15*time.Second, 50*time.Millisecond)
		assert.Eventually(t, func() bool {
			return proc.Signal(syscall.Signal(0)) != nil
		}, 15*time.Second, 50*time.Millisecond, "browser process is still running")

		assert.ErrorIs(t, s.RunActions(ctx), ErrClosed)
		assert.ErrorIs(t, s.Handoff(), ErrClosed)
		require.NoError(t, s.Close(ctx))
		assert.Equal(t, 0, c.Active())
	})
}
