// internal/resolver/resolver.go
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// ErrNotFound is returned when no candidate satisfies a target.
var ErrNotFound = errors.New("element not found")

// DOM is the read-only view of the live page the resolver searches.
type DOM interface {
	// QueryAll returns up to limit elements matching selector in document order.
	QueryAll(ctx context.Context, selector string, limit int) ([]schemas.ElementInfo, error)
	// Ancestors returns up to depth ancestors of the element at selector, nearest first.
	Ancestors(ctx context.Context, selector string, depth int) ([]schemas.ElementInfo, error)
}

// Target describes one logical element, e.g. "the reserve button".
type Target struct {
	Name string
	// Selectors are tried in priority order, most site-specific first.
	Selectors []string
	// Text, when set, must match the element's visible text (see MatchScore).
	Text string
	// Hint reorders accepted candidates by how well they match it, without filtering.
	Hint string
	// Verbs filters action labels.
	Verbs VerbFilter
	// Clickable walks non-clickable matches up to their nearest clickable ancestor.
	Clickable bool
	// IncludeHidden accepts elements that are not visible, e.g. payment iframes.
	IncludeHidden bool
	// Limit bounds how many elements each selector contributes.
	Limit int
}

// WithText returns a copy of t that must match text.
func (t Target) WithText(text string) Target {
	t.Text = text
	return t
}

// WithHint returns a copy of t ranked by hint.
func (t Target) WithHint(hint string) Target {
	t.Hint = hint
	return t
}

// Match is one resolved candidate.
type Match struct {
	Element schemas.ElementInfo
	// Source is the element the selector matched, before any ancestor walk.
	Source   schemas.ElementInfo
	Selector string
	// Rank is the index of the selector that produced the match.
	Rank  int
	Score int
	// Hinted is set when the candidate matched the target's Hint.
	Hinted bool
}

const (
	defaultLimit     = 10
	maxAncestorDepth = 6
	// PollInterval is how often Await repeats a lookup that found nothing.
	PollInterval = 200 * time.Millisecond
)

// Resolver searches the DOM for targets. It never mutates the page.
type Resolver struct {
	logger *zap.Logger
}

// New creates a Resolver.
func New(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger.Named("resolver")}
}

// Resolve returns the best candidate for t, or an error wrapping ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, dom DOM, t Target) (Match, error) {
	matches, err := r.Candidates(ctx, dom, t)
	if err != nil {
		return Match{}, err
	}
	return matches[0], nil
}

// Candidates returns every accepted candidate for t, best first: hinted candidates,
// then selector rank, then text score. Duplicates after the ancestor walk are dropped.
func (r *Resolver) Candidates(ctx context.Context, dom DOM, t Target) ([]Match, error) {
	limit := t.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		out  []Match
		seen = make(map[string]bool)
	)
	for rank, sel := range t.Selectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		elems, err := dom.QueryAll(ctx, sel, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// An unsupported or stale selector is not fatal; later ranks may still hit.
			r.logger.Debug("Selector query failed.", zap.String("target", t.Name), zap.String("selector", sel), zap.Error(err))
			continue
		}

		for _, el := range elems {
			if !el.Visible && !t.IncludeHidden {
				continue
			}
			score := MatchScore(t.Text, el.Text)
			if score == 0 {
				continue
			}
			if !t.Verbs.Accepts(label(el)) {
				continue
			}

			chosen := el
			if t.Clickable && !el.Clickable {
				anc, ok, err := r.clickableAncestor(ctx, dom, el)
				if err != nil {
					return nil, err
				}
				if !ok {
					r.logger.Debug("No clickable ancestor.", zap.String("target", t.Name), zap.String("selector", el.Selector))
					continue
				}
				chosen = anc
			}
			if seen[chosen.Selector] {
				continue
			}
			seen[chosen.Selector] = true

			out = append(out, Match{
				Element:  chosen,
				Source:   el,
				Selector: sel,
				Rank:     rank,
				Score:    score,
				Hinted:   t.Hint != "" && Matches(t.Hint, el.Text),
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", t.Name, ErrNotFound)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hinted != out[j].Hinted {
			return out[i].Hinted
		}
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Score > out[j].Score
	})
	r.logger.Debug("Resolved target.",
		zap.String("target", t.Name),
		zap.Int("candidates", len(out)),
		zap.String("best", out[0].Element.Selector))
	return out, nil
}

// Await polls for t until a candidate appears or timeout passes. A timeout of
// zero or less makes a single pass, like Candidates.
func (r *Resolver) Await(ctx context.Context, dom DOM, t Target, timeout time.Duration) ([]Match, error) {
	_, matches, err := r.AwaitAny(ctx, dom, timeout, t)
	return matches, err
}

// AwaitAny polls targets in order and returns the index and candidates of the
// first one found. Each pass checks every target before waiting again.
func (r *Resolver) AwaitAny(ctx context.Context, dom DOM, timeout time.Duration, targets ...Target) (int, []Match, error) {
	if len(targets) == 0 {
		return -1, nil, fmt.Errorf("no targets: %w", ErrNotFound)
	}
	deadline := time.Now().Add(timeout)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for pass := 1; ; pass++ {
		var lastErr error
		for i, t := range targets {
			matches, err := r.Candidates(ctx, dom, t)
			if err == nil {
				if pass > 1 {
					r.logger.Debug("Target appeared.", zap.String("target", t.Name), zap.Int("passes", pass))
				}
				return i, matches, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return -1, nil, err
			}
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return -1, nil, lastErr
		}
		wait := PollInterval
		if remaining < wait {
			wait = remaining
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return -1, nil, ctx.Err()
		}
	}
}

// Exists reports whether any candidate for t is present.
func (r *Resolver) Exists(ctx context.Context, dom DOM, t Target) (bool, error) {
	_, err := r.Candidates(ctx, dom, t)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *Resolver) clickableAncestor(ctx context.Context, dom DOM, el schemas.ElementInfo) (schemas.ElementInfo, bool, error) {
	ancestors, err := dom.Ancestors(ctx, el.Selector, maxAncestorDepth)
	if err != nil {
		if ctx.Err() != nil {
			return schemas.ElementInfo{}, false, ctx.Err()
		}
		return schemas.ElementInfo{}, false, nil
	}
	for _, a := range ancestors {
		if a.Clickable {
			if a.Text == "" {
				a.Text = el.Text
			}
			return a, true, nil
		}
	}
	return schemas.ElementInfo{}, false, nil
}

func label(el schemas.ElementInfo) string {
	if el.Text != "" {
		return el.Text
	}
	return el.Role
}
