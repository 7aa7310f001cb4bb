package models

// RuntimeDiagnostics records what happened while loading one capture target.
// Any failing field makes the capture unusable for comparison.
type RuntimeDiagnostics struct {
	Status            int      `json:"status"`
	HasCaptureRoot    bool     `json:"hasCaptureRoot"`
	HasErrorPage      bool     `json:"hasNextErrorPage"`
	FatalErrorMessage *string  `json:"fatalErrorMessage"`
	PageErrors        []string `json:"pageErrors"`
	ConsoleErrors     []string `json:"consoleErrors"`
	CaptureError      string   `json:"captureError,omitempty"`
}

// Node types of a DOM snapshot.
const (
	NodeText    = "text"
	NodeElement = "element"
)

// DOMNode is one node of a normalized DOM snapshot. Text nodes carry Text,
// element nodes carry Tag, Attributes and Children.
type DOMNode struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	Tag        string            `json:"tag,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []*DOMNode        `json:"children,omitempty"`
}

// Rect is an element bounding box rounded to two decimal places.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LayoutEntry is the geometry and visual style of one element.
type LayoutEntry struct {
	Path      string            `json:"path"`
	Tag       string            `json:"tag"`
	Rect      Rect              `json:"rect"`
	Style     map[string]string `json:"style"`
	ClassName string            `json:"className,omitempty"`
	Text      string            `json:"text,omitempty"`
}

// AXNode is an accessibility tree node restricted to semantic fields.
type AXNode struct {
	Role        string    `json:"role,omitempty"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Value       any       `json:"value,omitempty"`
	Checked     any       `json:"checked,omitempty"`
	Pressed     any       `json:"pressed,omitempty"`
	Selected    any       `json:"selected,omitempty"`
	Disabled    any       `json:"disabled,omitempty"`
	Expanded    any       `json:"expanded,omitempty"`
	Level       any       `json:"level,omitempty"`
	Children    []*AXNode `json:"children,omitempty"`
}

// Hashes holds the SHA-256 digests of the four normalized observations.
type Hashes struct {
	DOM           string `json:"dom"`
	Layout        string `json:"layout"`
	Accessibility string `json:"accessibility"`
	Pixel         string `json:"pixel"`
}

// SnapshotBundle is the full result of capturing one target.
type SnapshotBundle struct {
	Target        CaptureTarget
	URL           string
	Runtime       RuntimeDiagnostics
	DOM           *DOMNode
	Layout        []LayoutEntry
	Accessibility *AXNode
	Screenshot    []byte
	Hashes        Hashes
}
