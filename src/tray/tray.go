package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

const defaultTitle = "Screen Capture Upload"

// Handlers are the menu callbacks. They run on tray goroutines and must only
// post events into the loop, never block on a capture.
type Handlers struct {
	OnCapture       func()
	OnStopRecording func()
	OnQuit          func()
}

var (
	mu             sync.Mutex
	ready          bool
	pendingTooltip string
	pendingAbout   string
	stopItem       *systray.MenuItem
	aboutItem      *systray.MenuItem
)

// Run starts the system tray and blocks until Quit. Must run on the main
// thread on platforms that require it; main arranges that.
func Run(h Handlers, onReady func()) {
	systray.Run(func() {
		setup(h)
		if onReady != nil {
			onReady()
		}
	}, func() {})
}

func setup(h Handlers) {
	systray.SetTitle(defaultTitle)
	systray.SetTooltip(defaultTitle)

	mCapture := systray.AddMenuItem("Capture region", "Select a region and capture it")
	mStop := systray.AddMenuItem("Stop recording", "Finish the in-progress recording")
	mStop.Disable()
	systray.AddSeparator()
	mAbout := systray.AddMenuItem(defaultTitle, "")
	mAbout.Disable()
	mQuit := systray.AddMenuItem("Quit", "Exit the application")

	mu.Lock()
	ready = true
	stopItem = mStop
	aboutItem = mAbout
	tooltip := pendingTooltip
	about := pendingAbout
	mu.Unlock()

	if tooltip != "" {
		systray.SetTooltip(tooltip)
	}
	if about != "" {
		mAbout.SetTitle(about)
	}

	go func() {
		for {
			select {
			case <-mCapture.ClickedCh:
				if h.OnCapture != nil {
					h.OnCapture()
				}
			case <-mStop.ClickedCh:
				if h.OnStopRecording != nil {
					h.OnStopRecording()
				}
			case <-mQuit.ClickedCh:
				if h.OnQuit != nil {
					h.OnQuit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

// UpdateTooltip changes the tray tooltip. Safe to call before the tray is
// ready; the text is applied once it comes up.
func UpdateTooltip(text string) {
	mu.Lock()
	if !ready {
		pendingTooltip = text
		mu.Unlock()
		return
	}
	mu.Unlock()
	systray.SetTooltip(text)
}

// SetAboutExtra updates the informational menu entry, e.g. with the resident
// TCP port.
func SetAboutExtra(text string) {
	mu.Lock()
	if !ready {
		pendingAbout = text
		mu.Unlock()
		return
	}
	item := aboutItem
	mu.Unlock()
	if item != nil {
		item.SetTitle(text)
	}
}

// SetRecordingActive toggles the Stop recording menu entry.
func SetRecordingActive(active bool) {
	mu.Lock()
	item := stopItem
	ok := ready
	mu.Unlock()
	if !ok || item == nil {
		return
	}
	if active {
		item.Enable()
	} else {
		item.Disable()
	}
}

// Quit tears the tray down, unblocking Run.
func Quit() {
	log.Printf("tray: quitting")
	systray.Quit()
}
