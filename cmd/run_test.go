// File: cmd/run_test.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/session"
	"github.com/xkilldash9x/checkout-navigator/internal/config"
	"github.com/xkilldash9x/checkout-navigator/internal/navigator"
)

const seasideBooking = `{
  "targetName": "Seaside Inn",
  "location": "Miami, FL",
  "checkInDate": "2025-06-10",
  "checkOutDate": "2025-06-12",
  "guest": {"firstName": "Ana", "lastName": "Lopez", "email": "ana@example.com", "phone": "5551234"}
}`

func writeBooking(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "booking.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// stubLauncher replaces the Chrome launcher for the duration of the test and
// counts shutdown calls.
func stubLauncher(t *testing.T, l navigator.Launcher) *atomic.Int32 {
	t.Helper()
	var shutdowns atomic.Int32
	orig := newLauncher
	newLauncher = func(cfg config.Interface, logger *zap.Logger) (navigator.Launcher, func(context.Context) error) {
		return l, func(context.Context) error {
			shutdowns.Add(1)
			return nil
		}
	}
	t.Cleanup(func() { newLauncher = orig })
	return &shutdowns
}

func decodeOutcome(t *testing.T, out string) schemas.AutomationOutcome {
	t.Helper()
	var outcome schemas.AutomationOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome), out)
	return outcome
}

func TestRunCmd_LaunchFailure(t *testing.T) {
	shutdowns := stubLauncher(t, navigator.LaunchFunc(func(ctx context.Context, d time.Duration) (navigator.Browser, error) {
		return nil, fmt.Errorf("%w: chrome not found", session.ErrLaunch)
	}))

	out, errOut, err := executeCommand(t, "run", "--booking", writeBooking(t, seasideBooking))

	require.ErrorIs(t, err, ErrAutomationFailed)
	outcome := decodeOutcome(t, out)
	assert.False(t, outcome.Success)
	assert.Equal(t, schemas.StageFailed, outcome.Stage)
	assert.Equal(t, schemas.ErrorKindLaunchFailure, outcome.ErrorKind)
	assert.Contains(t, outcome.FallbackURL, "ss=Seaside%20Inn%20Miami%2C%20FL")
	assert.Contains(t, err.Error(), outcome.FallbackURL)
	assert.Contains(t, errOut, "[1/7] Init: launching browser")
	assert.Contains(t, errOut, "[done] Failed: stopped: LaunchFailure")
	assert.Equal(t, int32(1), shutdowns.Load())
}

func TestRunCmd_DeadlineFlag(t *testing.T) {
	var seen atomic.Int64
	stubLauncher(t, navigator.LaunchFunc(func(ctx context.Context, d time.Duration) (navigator.Browser, error) {
		seen.Store(int64(d))
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", session.ErrLaunch, ctx.Err())
	}))

	out, _, err := executeCommand(t, "run", "--booking", writeBooking(t, seasideBooking), "--deadline", "20ms")

	require.NoError(t, err)
	outcome := decodeOutcome(t, out)
	assert.True(t, outcome.Success)
	assert.True(t, outcome.Degraded)
	assert.Equal(t, schemas.ErrorKindDeadlineExceeded, outcome.ErrorKind)
	assert.Equal(t, int64(20*time.Millisecond), seen.Load())
}

func TestRunCmd_Stdin(t *testing.T) {
	stubLauncher(t, navigator.LaunchFunc(func(ctx context.Context, d time.Duration) (navigator.Browser, error) {
		return nil, session.ErrLaunch
	}))
	isolateHome(t)

	root := NewRootCommand()
	var out strings.Builder
	root.SetOut(&out)
	root.SetErr(&strings.Builder{})
	root.SetIn(strings.NewReader(seasideBooking))
	root.SetArgs([]string{"run", "--booking", "-"})

	err := root.ExecuteContext(context.Background())

	require.ErrorIs(t, err, ErrAutomationFailed)
	assert.Contains(t, decodeOutcome(t, out.String()).FallbackURL, "checkin=2025-06-10")
}

func TestRunCmd_FlagErrors(t *testing.T) {
	t.Run("booking is required", func(t *testing.T) {
		_, _, err := executeCommand(t, "run")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"booking"`)
	})

	t.Run("invalid site", func(t *testing.T) {
		_, _, err := executeCommand(t, "run", "--booking", writeBooking(t, seasideBooking), "--site", "example.com/path")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bare host")
	})
}

func TestLoadBooking(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		req, err := loadBooking(writeBooking(t, seasideBooking), nil)
		require.NoError(t, err)
		assert.Equal(t, "Seaside Inn", req.TargetName)
		assert.Equal(t, "2025-06-12", req.CheckOut.String())
		assert.Equal(t, "ana@example.com", req.Guest.Email)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadBooking(filepath.Join(t.TempDir(), "nope.json"), nil)
		assert.ErrorContains(t, err, "failed to open booking request")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := loadBooking("-", strings.NewReader(`{"targetName": `))
		assert.ErrorContains(t, err, "failed to decode booking request")
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := loadBooking("-", strings.NewReader(`{"targetName": "X", "checkInDate": "June 10"}`))
		assert.ErrorContains(t, err, "failed to decode booking request")
	})

	t.Run("nothing to search for", func(t *testing.T) {
		_, err := loadBooking("-", strings.NewReader(`{"guest": {"firstName": "Ana"}}`))
		assert.ErrorContains(t, err, "needs a targetName or a location")
	})
}

func TestWriteOutcome(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeOutcome(&sb, schemas.AutomationOutcome{
		Success:     true,
		Degraded:    true,
		Stage:       schemas.StageDegraded,
		FallbackURL: "https://www.booking.com/searchresults.html?ss=x",
		ErrorKind:   schemas.ErrorKindElementNotFound,
	}))

	assert.Contains(t, sb.String(), `"stage": "Degraded"`)
	assert.Contains(t, sb.String(), `"errorKind": "ElementNotFound"`)
	assert.NotContains(t, sb.String(), "checkoutUrl")
}
