// Package fallback synthesizes the deterministic search URL returned whenever
// automation cannot reach a checkout page. It never launches a browser.
package fallback

import (
	"net/url"
	"strings"
	"time"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

const (
	DefaultSite     = "www.booking.com"
	DefaultCurrency = "USD"

	searchPath = "/searchresults.html"
)

// Builder turns booking requests into search URLs on one site.
type Builder struct {
	site     string
	currency string
	now      func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithCurrency overrides the selected_currency parameter.
func WithCurrency(code string) Option {
	return func(b *Builder) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			b.currency = code
		}
	}
}

// WithClock sets the clock used to synthesize missing dates.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns a Builder for site, a bare host such as "www.booking.com".
// Scheme prefixes and trailing slashes are tolerated.
func New(site string, opts ...Option) *Builder {
	b := &Builder{
		site:     normalizeSite(site),
		currency: DefaultCurrency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Site returns the host the builder targets.
func (b *Builder) Site() string { return b.site }

// Build returns the search URL for req. Missing or inverted dates are repaired the
// same way the navigator repairs them, so the result is always well formed.
func (b *Builder) Build(req schemas.BookingRequest) string {
	norm := req.Normalize(b.now())

	// Fixed parameter order keeps the output byte-for-byte deterministic,
	// which url.Values.Encode (sorted keys) would not preserve.
	var sb strings.Builder
	sb.Grow(160 + len(norm.TargetName) + len(norm.Location))
	sb.WriteString("https://")
	sb.WriteString(b.site)
	sb.WriteString(searchPath)
	sb.WriteString("?ss=")
	sb.WriteString(EscapeTerm(norm.SearchTerm()))
	sb.WriteString("&checkin=")
	sb.WriteString(norm.CheckIn.String())
	sb.WriteString("&checkout=")
	sb.WriteString(norm.CheckOut.String())
	sb.WriteString("&group_adults=1&group_children=0&no_rooms=1")
	sb.WriteString("&selected_currency=")
	sb.WriteString(url.QueryEscape(b.currency))
	return sb.String()
}

// EscapeTerm percent-encodes a free-text query value, encoding spaces as %20.
func EscapeTerm(term string) string {
	// QueryEscape turns a literal '+' into %2B, so every remaining '+' is a space.
	return strings.ReplaceAll(url.QueryEscape(term), "+", "%20")
}

func normalizeSite(site string) string {
	site = strings.TrimSpace(site)
	site = strings.TrimPrefix(site, "https://")
	site = strings.TrimPrefix(site, "http://")
	site = strings.TrimRight(site, "/")
	if site == "" {
		return DefaultSite
	}
	return site
}
