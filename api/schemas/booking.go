// api/schemas/booking.go
package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for booking dates.
const DateLayout = "2006-01-02"

// Date is a calendar day. The zero value means the date was not supplied.
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location, expressed in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		// Accept full timestamps from callers that serialize time.Time directly.
		if full, ferr := time.Parse(time.RFC3339, s); ferr == nil {
			return DateOf(full), nil
		}
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Guest holds the contact details entered into the checkout form.
type Guest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

// BookingRequest is the single structured input of an automation run.
type BookingRequest struct {
	TargetName  string            `json:"targetName"`
	Location    string            `json:"location"`
	CheckIn     Date              `json:"checkInDate"`
	CheckOut    Date              `json:"checkOutDate"`
	Guest       Guest             `json:"guest"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Normalize returns a copy with whitespace collapsed and dates synthesized or repaired
// so that CheckOut is strictly after CheckIn. now is the run start time.
func (r BookingRequest) Normalize(now time.Time) BookingRequest {
	out := r
	out.TargetName = collapseSpaces(r.TargetName)
	out.Location = collapseSpaces(r.Location)
	out.Guest.FirstName = strings.TrimSpace(r.Guest.FirstName)
	out.Guest.LastName = strings.TrimSpace(r.Guest.LastName)
	out.Guest.Email = strings.TrimSpace(r.Guest.Email)
	out.Guest.Phone = strings.TrimSpace(r.Guest.Phone)
	out.Guest.SpecialRequests = strings.TrimSpace(r.Guest.SpecialRequests)

	if out.CheckIn.IsZero() {
		out.CheckIn = DateOf(now).AddDays(1)
	} else {
		out.CheckIn = DateOf(out.CheckIn.Time)
	}
	if out.CheckOut.IsZero() || !out.CheckOut.Time.After(out.CheckIn.Time) {
		out.CheckOut = out.CheckIn.AddDays(1)
	} else {
		out.CheckOut = DateOf(out.CheckOut.Time)
	}

	if r.Preferences != nil {
		out.Preferences = make(map[string]string, len(r.Preferences))
		for k, v := range r.Preferences {
			out.Preferences[k] = v
		}
	}
	return out
}

// SearchTerm is the free-text query used on the target site.
func (r BookingRequest) SearchTerm() string {
	return collapseSpaces(r.TargetName + " " + r.Location)
}

// Preference returns a preference value, or "" when absent.
func (r BookingRequest) Preference(key string) string {
	if r.Preferences == nil {
		return ""
	}
	return strings.TrimSpace(r.Preferences[key])
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Stage is one state of the checkout state machine.
type Stage int

const (
	StageInit Stage = iota
	StageSearching
	StageLocatingTarget
	StageSelectingTarget
	StageSelectingSubOption
	StageFillingForm
	StageReachingCheckout
	StageSucceeded
	StageDegraded
	StageFailed
)

var stageNames = [...]string{
	StageInit:               "Init",
	StageSearching:          "Searching",
	StageLocatingTarget:     "LocatingTarget",
	StageSelectingTarget:    "SelectingTarget",
	StageSelectingSubOption: "SelectingSubOption",
	StageFillingForm:        "FillingForm",
	StageReachingCheckout:   "ReachingCheckout",
	StageSucceeded:          "Succeeded",
	StageDegraded:           "Degraded",
	StageFailed:             "Failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s >= StageSucceeded
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(text))
}

// ErrorKind classifies why a run did not reach checkout.
type ErrorKind string

const (
	ErrorKindNone                ErrorKind = ""
	ErrorKindLaunchFailure       ErrorKind = "LaunchFailure"
	ErrorKindNavigationTimeout   ErrorKind = "NavigationTimeout"
	ErrorKindElementNotFound     ErrorKind = "ElementNotFound"
	ErrorKindVerificationFailure ErrorKind = "VerificationFailure"
	ErrorKindDeadlineExceeded    ErrorKind = "DeadlineExceeded"
)

// AutomationOutcome is the single structured result of an automation run.
type AutomationOutcome struct {
	RunID         string        `json:"runId"`
	Success       bool          `json:"success"`
	CheckoutURL   string        `json:"checkoutUrl,omitempty"`
	FallbackURL   string        `json:"fallbackUrl,omitempty"`
	Degraded      bool          `json:"degraded"`
	Stage         Stage         `json:"stage"`
	AutomationLog []string      `json:"automationLog"`
	ErrorKind     ErrorKind     `json:"errorKind,omitempty"`
	Duration      time.Duration `json:"durationNs"`
	HandedOff     bool          `json:"handedOff"`
}

// URL returns the URL the caller should present: the live checkout page when known,
// otherwise the fallback search URL.
func (o AutomationOutcome) URL() string {
	if o.CheckoutURL != "" {
		return o.CheckoutURL
	}
	return o.FallbackURL
}

// ProgressEvent is emitted once per stage transition for UI display.
type ProgressEvent struct {
	StageIndex int    `json:"stageIndex"`
	Stage      Stage  `json:"stage"`
	Message    string `json:"message"`
}
