package overlay

import (
	"screen-capture-upload/src/screenshot"
)

// Button identifies the pointer button driving a drag.
type Button int

const (
	ButtonPrimary   Button = iota // still capture
	ButtonSecondary               // recording
)

// Point is a pointer position in overlay-local coordinates.
type Point struct {
	X int
	Y int
}

type phase int

const (
	phaseIdle phase = iota
	phasePressed
	phaseDone
	phaseCancelled
	phaseSuspended
)

// Machine is the pure selection state machine. The host toolkit adapter
// feeds it pointer and key events; tests feed it synthetic ones. It tracks
// idle -> pressed -> released and computes the normalized region on release.
//
// The machine works in overlay-local coordinates. Origin is the offset of
// the overlay surface on the virtual multi-monitor canvas and is added to
// the emitted region so capture coordinates map correctly when the leftmost
// display is not at (0,0).
type Machine struct {
	origin   Point
	phase    phase
	button   Button
	start    Point
	current  Point
	selected Selection
}

// NewMachine creates a selection machine for an overlay surface whose
// top-left corner sits at origin on the virtual canvas.
func NewMachine(origin Point) *Machine {
	return &Machine{origin: origin}
}

// PointerDown records the drag start. Ignored unless the machine is idle.
func (m *Machine) PointerDown(p Point, b Button) {
	if m.phase != phaseIdle {
		return
	}
	m.phase = phasePressed
	m.button = b
	m.start = p
	m.current = p
}

// PointerMove updates the drag endpoint. Returns the current selection box
// (for redraw) and whether a drag is active.
func (m *Machine) PointerMove(p Point) (screenshot.Region, bool) {
	if m.phase != phasePressed {
		return screenshot.Region{}, false
	}
	m.current = p
	return normalize(m.start, m.current), true
}

// Box returns the current selection box in local coordinates while a drag
// is active. Used by adapters to repaint without new pointer input.
func (m *Machine) Box() (screenshot.Region, bool) {
	if m.phase != phasePressed {
		return screenshot.Region{}, false
	}
	return normalize(m.start, m.current), true
}

// PointerUp completes the drag. An invalid region (per the capture
// invariant) is discarded silently and the machine resets to idle without
// emitting a selection.
func (m *Machine) PointerUp(p Point) {
	if m.phase != phasePressed {
		return
	}
	m.current = p

	region := normalize(m.start, m.current)
	if !region.Valid() {
		m.reset()
		return
	}
	region.X += m.origin.X
	region.Y += m.origin.Y

	gesture := GestureStill
	if m.button == ButtonSecondary {
		gesture = GestureRecording
	}
	m.selected = Selection{Region: region, Gesture: gesture}
	m.phase = phaseDone
}

// Escape cancels the whole selection regardless of drag state.
func (m *Machine) Escape() {
	m.phase = phaseCancelled
}

// Configure asks to suspend the overlay and hand control to the external
// configuration surface. Only honored while idle; returns whether the
// suspension was granted.
func (m *Machine) Configure() bool {
	if m.phase != phaseIdle {
		return false
	}
	m.phase = phaseSuspended
	return true
}

// Resume returns a suspended machine to idle after the configuration
// collaborator hands control back.
func (m *Machine) Resume() {
	if m.phase == phaseSuspended {
		m.phase = phaseIdle
	}
}

// Dragging reports whether a press is in progress.
func (m *Machine) Dragging() bool { return m.phase == phasePressed }

// Suspended reports whether the overlay yielded to the configuration surface.
func (m *Machine) Suspended() bool { return m.phase == phaseSuspended }

// Done reports whether the interaction finished, by selection or by cancel.
func (m *Machine) Done() bool {
	return m.phase == phaseDone || m.phase == phaseCancelled
}

// Result returns the selection when one was emitted. ok is false after a
// cancel or while the interaction is still in progress.
func (m *Machine) Result() (Selection, bool) {
	if m.phase != phaseDone {
		return Selection{}, false
	}
	return m.selected, true
}

// Cancelled reports whether the user aborted the selection.
func (m *Machine) Cancelled() bool { return m.phase == phaseCancelled }

// DragButton returns the button held during the active drag. Only
// meaningful while Dragging.
func (m *Machine) DragButton() Button { return m.button }

func (m *Machine) reset() {
	m.phase = phaseIdle
	m.start = Point{}
	m.current = Point{}
}

// normalize computes the rectangle between two drag points: min of the X's,
// min of the Y's, absolute differences for the extent.
func normalize(a, b Point) screenshot.Region {
	x, w := minSpan(a.X, b.X)
	y, h := minSpan(a.Y, b.Y)
	return screenshot.Region{X: x, Y: y, Width: w, Height: h}
}

func minSpan(a, b int) (int, int) {
	if a < b {
		return a, b - a
	}
	return b, a - b
}
