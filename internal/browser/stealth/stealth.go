package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

//go:embed evasions.js
var evasionsJS string

// AllocatorFlags are the Chrome command line switches that remove the most
// obvious automation markers. They are applied before the browser starts.
var AllocatorFlags = map[string]interface{}{
	"disable-blink-features":                             "AutomationControlled",
	"enable-automation":                                  false,
	"disable-infobars":                                   true,
	"disable-features":                                   "Translate,OptimizationHints,MediaRouter",
	"disable-background-timer-throttling":                true,
	"disable-backgrounding-occluded-windows":             true,
	"disable-renderer-backgrounding":                     true,
	"no-first-run":                                       true,
	"no-default-browser-check":                           true,
	"password-store":                                     "basic",
	"use-mock-keychain":                                  true,
	"disable-component-extensions-with-background-pages": true,
}

// EvasionsScript returns the document-start script with the persona bound.
func EvasionsScript(p schemas.Persona) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return fmt.Sprintf("%s(%s);", strings.TrimSpace(evasionsJS), payload), nil
}

// AcceptLanguage renders the persona languages as an Accept-Language value
// with descending quality factors.
func AcceptLanguage(languages []string) string {
	if len(languages) == 0 {
		return "en-US,en;q=0.9"
	}
	parts := make([]string, 0, len(languages))
	for i, lang := range languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// Apply constructs the DevTools actions that make a tab present the persona
// consistently: user agent, locale, timezone, viewport, headers and the
// document-start evasions.
func Apply(p schemas.Persona, logger *zap.Logger) chromedp.Tasks {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("platform", p.Platform),
		zap.String("timezone", p.Timezone),
	)

	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent).
			WithPlatform(p.Platform).
			WithAcceptLanguage(AcceptLanguage(p.Languages)),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": AcceptLanguage(p.Languages),
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := EvasionsScript(p)
			if err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}

	if p.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.Timezone))
	}
	if p.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(p.Locale))
	}
	if p.Width > 0 && p.Height > 0 {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(p.Width, p.Height, 1, false))
	}
	return tasks
}
