// internal/navigator/stages.go
package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/internal/browser/session"
	"github.com/xkilldash9x/checkout-navigator/internal/resolver"
)

// search loads the site's search results, retrying navigation timeouts.
func (n *Navigator) search(ctx context.Context, s *automationSession) error {
	attempts := n.cfg.Navigator().NavigationAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.browser.Navigate(ctx, s.fallbackURL)
		if err == nil {
			s.lastURL = s.fallbackURL
			s.record("navigated to %s", s.fallbackURL)
			return s.human.Pause(ctx)
		}
		if ctx.Err() != nil || !errors.Is(err, session.ErrNavigationTimeout) {
			return err
		}
		s.record("navigation attempt %d/%d timed out", attempt, attempts)
	}
	return err
}

// locateTarget waits for the result list, clears interstitials and picks the
// result candidates to try.
func (n *Navigator) locateTarget(ctx context.Context, s *automationSession) error {
	matches, err := s.resolver.Await(ctx, s.browser, resolver.SearchResults, n.cfg.Navigator().ElementTimeout)
	if err != nil {
		return err
	}

	n.dismissInterstitials(ctx, s)
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.req.TargetName != "" {
		named, err := s.resolver.Candidates(ctx, s.browser, resolver.SearchResults.WithText(s.req.TargetName))
		switch {
		case err == nil:
			matches = named
		case errors.Is(err, resolver.ErrNotFound):
			s.record("fallback-to-first-result: no result matches %q", s.req.TargetName)
		default:
			return err
		}
	}

	if limit := n.cfg.Navigator().MaxCandidates; limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	s.candidates = matches
	s.record("found %d candidate result(s), best %q", len(matches), matches[0].Element.Text)
	return nil
}

// dismissInterstitials closes consent and sign-in prompts. Nothing here is fatal.
func (n *Navigator) dismissInterstitials(ctx context.Context, s *automationSession) {
	matches, err := s.resolver.Candidates(ctx, s.browser, resolver.ConsentDismiss)
	if err != nil {
		if !errors.Is(err, resolver.ErrNotFound) {
			s.logger.Debug("Interstitial lookup failed.", zap.Error(err))
		}
		return
	}
	for _, m := range matches {
		if err := s.human.Click(ctx, m.Element.Selector); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Closing one dialog often removes the others.
			s.logger.Debug("Interstitial click failed.", zap.String("selector", m.Element.Selector), zap.Error(err))
			continue
		}
		s.record("dismissed dialog %q", m.Element.Text)
	}
}

// selectTarget clicks result candidates until one opens a new page.
func (n *Navigator) selectTarget(ctx context.Context, s *automationSession) error {
	for i, m := range s.candidates {
		ok, err := n.clickAndVerify(ctx, s, m.Element.Selector, nil)
		if err != nil {
			return err
		}
		if ok {
			s.record("opened %q at %s", m.Element.Text, s.lastURL)
			return nil
		}
		s.record("candidate %d/%d %q did not open a page", i+1, len(s.candidates), m.Element.Text)
	}
	return fmt.Errorf("none of %d result(s) opened a property page: %w", len(s.candidates), ErrVerification)
}

// selectSubOption picks a room and continues to the guest form. It is a
// no-op when the form is already on the page.
func (n *Navigator) selectSubOption(ctx context.Context, s *automationSession) error {
	hint := s.req.Preference("room")
	found, matches, err := s.resolver.AwaitAny(ctx, s.browser, n.cfg.Navigator().ElementTimeout,
		resolver.ContactForm, resolver.SubOption.WithHint(hint))
	if err != nil {
		return err
	}
	if found == 0 {
		s.record("contact form already present, skipping room selection")
		return nil
	}

	n.setRoomQuantity(ctx, s)

	if limit := n.cfg.Navigator().MaxCandidates; limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	if hint != "" && !matches[0].Hinted {
		s.record("no room matches preference %q, using the first offer", hint)
	}

	formAppeared := func(ctx context.Context) (bool, error) {
		return s.resolver.Exists(ctx, s.browser, resolver.ContactForm)
	}
	for i, m := range matches {
		ok, err := n.clickAndVerify(ctx, s, m.Element.Selector, formAppeared)
		if err != nil {
			return err
		}
		if ok {
			s.record("selected %q", m.Element.Text)
			return nil
		}
		s.record("room control %d/%d %q had no effect", i+1, len(matches), m.Element.Text)
	}
	return fmt.Errorf("no room control led to the guest form: %w", ErrVerification)
}

// setRoomQuantity selects one unit on the first quantity picker, if any.
func (n *Navigator) setRoomQuantity(ctx context.Context, s *automationSession) {
	m, err := s.resolver.Resolve(ctx, s.browser, resolver.RoomQuantity)
	if err != nil {
		return
	}
	got, err := s.browser.SetValue(ctx, m.Element.Selector, "1")
	if err != nil {
		s.logger.Debug("Room quantity not set.", zap.Error(err))
		return
	}
	s.record("set room quantity to %s", got)
}

type formEntry struct {
	field    resolver.Field
	value    string
	required bool
}

// fillForm enters the guest details. Optional fields that cannot be filled
// are logged and skipped.
func (n *Navigator) fillForm(ctx context.Context, s *automationSession) error {
	g := s.req.Guest
	entries := []formEntry{
		{resolver.FieldFirstName, g.FirstName, true},
		{resolver.FieldLastName, g.LastName, true},
		{resolver.FieldEmail, g.Email, true},
		{resolver.FieldPhone, g.Phone, false},
		{resolver.FieldSpecialRequests, g.SpecialRequests, false},
	}

	// Required fields wait for the form to render; optional ones are looked
	// up once it is there.
	wait := n.cfg.Navigator().ElementTimeout
	filled := 0
	for _, e := range entries {
		if e.value == "" {
			s.record("no value for %s", e.field)
			continue
		}
		fieldWait := time.Duration(0)
		if e.required {
			fieldWait = wait
		}
		if err := n.fillField(ctx, s, e.field, e.value, fieldWait); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if e.required {
				return fmt.Errorf("%s: %w", e.field, err)
			}
			s.record("optional %s not filled: %v", e.field, err)
			continue
		}
		filled++
		if err := s.human.Pause(ctx); err != nil {
			return err
		}
	}
	s.record("filled %d field(s)", filled)
	return nil
}

// fillField assigns value directly and reads it back. Pages that ignore the
// assignment get the value typed key by key instead. The field is waited for
// up to wait.
func (n *Navigator) fillField(ctx context.Context, s *automationSession, f resolver.Field, value string, wait time.Duration) error {
	matches, err := s.resolver.Await(ctx, s.browser, resolver.FieldTarget(f), wait)
	if err != nil {
		return err
	}
	sel := matches[0].Element.Selector

	if _, err := s.browser.SetValue(ctx, sel, value); err == nil {
		got, err := s.browser.Value(ctx, sel)
		if err == nil && sameFieldValue(f, got, value) {
			s.record("set %s", f)
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.record("%s rejected direct assignment, typing instead", f)
	if err := s.human.Type(ctx, sel, value); err != nil {
		return err
	}
	got, err := s.browser.Value(ctx, sel)
	if err != nil {
		return err
	}
	if !sameFieldValue(f, got, value) {
		return fmt.Errorf("%s still differs after typing: %w", f, ErrVerification)
	}
	s.record("typed %s", f)
	return nil
}

// reachCheckout clicks the continue control until the payment step shows.
// Payment itself is left to the user.
func (n *Navigator) reachCheckout(ctx context.Context, s *automationSession) error {
	matches, err := s.resolver.Await(ctx, s.browser, resolver.Continue, n.cfg.Navigator().ElementTimeout)
	if err != nil {
		return err
	}
	if limit := n.cfg.Navigator().MaxCandidates; limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	onPayment := func(ctx context.Context) (bool, error) {
		return s.resolver.Exists(ctx, s.browser, resolver.PaymentMarkers)
	}
	for i, m := range matches {
		ok, err := n.clickAndVerify(ctx, s, m.Element.Selector, onPayment)
		if err != nil {
			return err
		}
		if ok {
			s.record("continued with %q", m.Element.Text)
			return nil
		}
		s.record("continue control %d/%d %q had no effect", i+1, len(matches), m.Element.Text)
	}
	return fmt.Errorf("payment step not reached: %w", ErrVerification)
}

// clickAndVerify clicks selector and reports whether the page moved on: the
// URL changed, a new tab opened, or extra reports true. Click failures count
// as no progress; only context errors are returned.
func (n *Navigator) clickAndVerify(ctx context.Context, s *automationSession, selector string, extra func(context.Context) (bool, error)) (bool, error) {
	before, err := s.browser.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if err := s.human.Click(ctx, selector); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.record("click on %s failed: %v", selector, err)
		return false, nil
	}
	if err := s.human.Hesitate(ctx, n.cfg.Navigator().SettleDelay); err != nil {
		return false, err
	}

	adopted, err := s.browser.AdoptNewTab(ctx, 0)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.logger.Debug("New tab not adopted.", zap.Error(err))
	}
	if adopted {
		s.record("switched to a newly opened tab")
	}

	after, err := s.browser.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if adopted || after != before {
		s.lastURL = after
		return true, nil
	}
	if extra == nil {
		return false, nil
	}
	return extra(ctx)
}

// sameFieldValue compares a form value the way sites reformat them.
func sameFieldValue(f resolver.Field, got, want string) bool {
	norm := func(v string) string {
		v = strings.Join(strings.Fields(v), " ")
		switch f {
		case resolver.FieldEmail:
			return strings.ToLower(v)
		case resolver.FieldPhone:
			return strings.Map(func(r rune) rune {
				if unicode.IsDigit(r) {
					return r
				}
				return -1
			}, v)
		}
		return v
	}
	return norm(got) == norm(want)
}
