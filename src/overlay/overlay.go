package overlay

import (
	"context"

	"screen-capture-upload/src/screenshot"
)

// Gesture identifies which capture mode the selection drag requested.
// The pointer button held during the drag decides the gesture.
type Gesture int

const (
	GestureStill Gesture = iota
	GestureRecording
)

func (g Gesture) String() string {
	if g == GestureRecording {
		return "recording"
	}
	return "still"
}

// Selection is the outcome of a completed region drag.
type Selection struct {
	Region  screenshot.Region
	Gesture Gesture
}

// Selector defines a synchronous region-selection API owned by the event loop.
// The call is blocking and MUST be invoked only from the single event-loop
// goroutine. Returns (selection, cancelled, error). If cancelled is true,
// selection is undefined and err is nil.
type Selector interface {
	Select(ctx context.Context) (Selection, bool, error)
}

// Capabilities describes what the host windowing system supports. Resolved
// once at startup; adapters branch on these flags instead of build identity.
type Capabilities struct {
	// WindowTransparency is true when the host supports layered, partially
	// transparent overlay windows. When false the adapter paints a dimmed
	// screenshot of the desktop as the overlay background instead.
	WindowTransparency bool
	// FocusStealing is true when the overlay may force itself to the
	// foreground when selection begins.
	FocusStealing bool
}

// Options configures the platform selector.
type Options struct {
	Capabilities Capabilities
	// OnConfigure is invoked when the user asks for the configuration
	// surface mid-selection (F1). The overlay suspends, hands control to
	// this collaborator, and resumes when it returns. May be nil.
	OnConfigure func()
}

// NewSelector returns the platform implementation. Implementations live in
// platform-specific files; non-GUI builds get a stub that always errors.
func NewSelector(opts Options) Selector {
	return newPlatformSelector(opts)
}
