package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/session"
	"github.com/xkilldash9x/checkout-navigator/internal/config"
	"github.com/xkilldash9x/checkout-navigator/internal/navigator"
	"github.com/xkilldash9x/checkout-navigator/internal/observability"
)

// shutdownTimeout bounds closing the browsers when the command exits.
const shutdownTimeout = 15 * time.Second

// newLauncher is a seam for tests. It returns the launcher for runs and a
// function that closes every browser it started, handed off or not.
var newLauncher = func(cfg config.Interface, logger *zap.Logger) (navigator.Launcher, func(context.Context) error) {
	controller := session.NewController(cfg, logger)
	return navigator.SessionLauncher(controller), controller.Shutdown
}

// ErrAutomationFailed is returned when the run could not even launch a browser.
var ErrAutomationFailed = errors.New("automation failed")

func newRunCmd() *cobra.Command {
	var (
		bookingPath string
		headless    bool
		deadline    time.Duration
		site        string
		chromePath  string
		wait        bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one checkout automation for a booking request",
		Long: `Reads a booking request (JSON) and drives a browser from the site search to the
payable checkout page. Progress is printed to stderr and the outcome to stdout as JSON.
When the page is handed off the browser stays open until you press Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if flags.Changed("deadline") {
				cfg.SetNavigatorRunDeadline(deadline)
			}
			if flags.Changed("site") {
				cfg.SetNavigatorSite(site)
			}
			if flags.Changed("chrome") {
				path, err := homedir.Expand(chromePath)
				if err != nil {
					return fmt.Errorf("invalid --chrome path: %w", err)
				}
				cfg.SetBrowserExecPath(path)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			req, err := loadBooking(bookingPath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			logger := observability.GetLogger()
			launcher, shutdown := newLauncher(cfg, logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn("Browser shutdown reported an error.", zap.Error(err))
				}
			}()

			stderr := cmd.ErrOrStderr()
			nav := navigator.New(cfg, launcher, logger)
			outcome := nav.Run(ctx, req, navigator.WithProgress(func(ev schemas.ProgressEvent) {
				if ev.Stage.Terminal() {
					fmt.Fprintf(stderr, "[done] %s: %s\n", ev.Stage, ev.Message)
					return
				}
				fmt.Fprintf(stderr, "[%d/%d] %s: %s\n", ev.StageIndex+1, int(schemas.StageReachingCheckout)+1, ev.Stage, ev.Message)
			}))

			if err := writeOutcome(cmd.OutOrStdout(), outcome); err != nil {
				return err
			}

			if outcome.HandedOff && wait {
				fmt.Fprintf(stderr, "\nThe browser is open at %s\nFinish the booking there, then press Ctrl+C to close it.\n", outcome.URL())
				<-ctx.Done()
			}

			if !outcome.Success {
				return fmt.Errorf("%w: %s (use %s)", ErrAutomationFailed, outcome.ErrorKind, outcome.FallbackURL)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&bookingPath, "booking", "b", "", "Path to the booking request JSON, or - for stdin")
	_ = runCmd.MarkFlagRequired("booking")
	runCmd.Flags().BoolVar(&headless, "headless", true, "Run the browser without a window. (Overrides config/env)")
	runCmd.Flags().DurationVar(&deadline, "deadline", 0, "Overall run deadline, e.g. 45s. (Overrides config/env)")
	runCmd.Flags().StringVar(&site, "site", "", "Target site host. (Overrides config/env)")
	runCmd.Flags().StringVar(&chromePath, "chrome", "", "Chrome or Chromium executable. (Overrides config/env)")
	runCmd.Flags().BoolVar(&wait, "wait", true, "After a handoff, keep the browser open until interrupted")
	return runCmd
}

// loadBooking decodes a booking request from path, or from stdin when path is "-".
func loadBooking(path string, stdin io.Reader) (schemas.BookingRequest, error) {
	var req schemas.BookingRequest

	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return req, fmt.Errorf("invalid booking path: %w", err)
		}
		f, err := os.Open(expanded)
		if err != nil {
			return req, fmt.Errorf("failed to open booking request: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode booking request: %w", err)
	}
	if strings.TrimSpace(req.TargetName) == "" && strings.TrimSpace(req.Location) == "" {
		return req, errors.New("booking request needs a targetName or a location")
	}
	return req, nil
}

func writeOutcome(w io.Writer, outcome schemas.AutomationOutcome) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
