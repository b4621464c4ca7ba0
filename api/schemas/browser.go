package schemas

// -- Browser Persona Schemas --

// Persona encapsulates the properties presented to the target site as a consistent browser fingerprint.
type Persona struct {
	UserAgent string   `json:"userAgent" mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `json:"platform" mapstructure:"platform" yaml:"platform"`
	Languages []string `json:"languages" mapstructure:"languages" yaml:"languages"`
	Width     int64    `json:"width" mapstructure:"width" yaml:"width"`
	Height    int64    `json:"height" mapstructure:"height" yaml:"height"`
	Timezone  string   `json:"timezoneId" mapstructure:"timezone" yaml:"timezone"`
	Locale    string   `json:"locale" mapstructure:"locale" yaml:"locale"`
}

// DefaultPersona is used when the configuration does not override it.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"en-US", "en"},
	Width:     1366,
	Height:    768,
	Timezone:  "America/New_York",
	Locale:    "en-US",
}

// -- DOM Inspection Schemas --

// ElementInfo is a read-only description of a DOM element returned by page queries.
// Selector is a unique structural CSS path that can be used to address the element later.
type ElementInfo struct {
	Selector  string `json:"selector"`
	Tag       string `json:"tag"`
	Text      string `json:"text"`
	Role      string `json:"role,omitempty"`
	Type      string `json:"type,omitempty"`
	Href      string `json:"href,omitempty"`
	Visible   bool   `json:"visible"`
	Clickable bool   `json:"clickable"`
}

// -- Humanoid Low-Level Interaction Schemas --

// ElementGeometry defines the bounding box, vertices, and metadata of a DOM element.
type ElementGeometry struct {
	Vertices []float64 `json:"vertices"`
	Width    int64     `json:"width"`
	Height   int64     `json:"height"`
	TagName  string    `json:"tagName"`
	Type     string    `json:"type,omitempty"`
}

// MouseEventType defines the type of a mouse event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
	MouseWheel   MouseEventType = "mouseWheel"
)

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone  MouseButton = "none"
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// MouseEventData encapsulates all data for a mouse event.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	Buttons    int64          `json:"buttons"`
	ClickCount int            `json:"clickCount"`
	DeltaX     float64        `json:"deltaX"`
	DeltaY     float64        `json:"deltaY"`
}
