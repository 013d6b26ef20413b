package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"screen-capture-upload/src/clipboard"
	"screen-capture-upload/src/config"
	"screen-capture-upload/src/notification"
	"screen-capture-upload/src/overlay"
	"screen-capture-upload/src/payload"
	"screen-capture-upload/src/recorder"
	"screen-capture-upload/src/screenshot"
	"screen-capture-upload/src/uploader"
)

// ErrCaptureFailed marks a cycle that produced no payload: the frame source
// failed or a recording stopped with zero frames.
var ErrCaptureFailed = errors.New("capture failed")

// Uploads is the slice of the orchestrator the controller depends on.
type Uploads interface {
	UploadAll(ctx context.Context, p payload.Payload) uploader.Outcome
}

// Clipboard writes the chosen URL for the user.
type Clipboard interface {
	Write(text string) error
}

type systemClipboard struct{}

func (systemClipboard) Write(text string) error { return clipboard.Write(text) }

// Deps are the controller's collaborators. Zero fields get production
// defaults; tests inject fakes.
type Deps struct {
	Uploads      Uploads
	Notifier     notification.Notifier
	Clipboard    Clipboard
	Grab         recorder.FrameSource
	DisplayIndex func(x, y int) int
	// Encoder overrides the config-driven encoder choice (GIF vs ffmpeg
	// MP4). Used by tests.
	Encoder recorder.Encoder
}

// Controller coordinates one capture cycle: it receives the selected region
// and gesture, drives the frame source or recorder, hands the payload to the
// upload orchestrator, and reports the terminal outcome.
type Controller struct {
	cfg  *config.Config
	deps Deps

	mu       sync.Mutex
	active   *recorder.Session
	inflight sync.WaitGroup
}

func New(cfg *config.Config, deps Deps) *Controller {
	if deps.Uploads == nil {
		panic("session: Uploads dependency is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.Default()
	}
	if deps.Clipboard == nil {
		deps.Clipboard = systemClipboard{}
	}
	if deps.Grab == nil {
		deps.Grab = screenshot.Grab
	}
	if deps.DisplayIndex == nil {
		deps.DisplayIndex = screenshot.DisplayIndexAt
	}
	return &Controller{cfg: cfg, deps: deps}
}

// Cycle is the single-fire token of one capture cycle: however often
// CompleteCapture is invoked for it, the terminal notification fires once.
type Cycle struct {
	once sync.Once
}

func NewCycle() *Cycle { return &Cycle{} }

// OnRegionSelected runs one full capture cycle for a completed selection and
// returns the reconciled outcome. Blocking; the event loop runs it on a
// worker, never on the interactive path.
func (c *Controller) OnRegionSelected(ctx context.Context, sel overlay.Selection) (uploader.Outcome, error) {
	c.inflight.Add(1)
	defer c.inflight.Done()

	cycle := NewCycle()
	outcome, err := c.runCycle(ctx, sel)
	c.CompleteCapture(cycle, outcome, err)
	return outcome, err
}

func (c *Controller) runCycle(ctx context.Context, sel overlay.Selection) (uploader.Outcome, error) {
	region := c.effectiveRegion(sel.Region)

	var (
		p   payload.Payload
		err error
	)
	if sel.Gesture == overlay.GestureRecording && !c.cfg.DisableRecording {
		p, err = c.record(region)
	} else {
		p, err = c.captureStill(region)
	}
	if err != nil {
		return uploader.Outcome{Kind: uploader.OutcomeFailed}, err
	}

	return c.deps.Uploads.UploadAll(ctx, p), nil
}

func (c *Controller) captureStill(region screenshot.Region) (payload.Payload, error) {
	img, err := c.deps.Grab(region)
	if err != nil {
		return payload.Payload{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	data, err := screenshot.EncodeStill(img, c.cfg.StillFormat)
	if err != nil {
		return payload.Payload{}, fmt.Errorf("still encode failed: %w", err)
	}
	return payload.NewStill(data, c.cfg.StillFormat), nil
}

func (c *Controller) record(region screenshot.Region) (payload.Payload, error) {
	rec, err := recorder.Start(region, c.deps.Grab, recorder.Options{
		FPS:         c.cfg.RecordFPS,
		MaxDuration: time.Duration(c.cfg.RecordMaxSec) * time.Second,
		Encoder:     c.encoder(),
	})
	if err != nil {
		return payload.Payload{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	c.mu.Lock()
	c.active = rec
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
	}()

	p, err := rec.Wait()
	if err != nil {
		if errors.Is(err, recorder.ErrEmpty) {
			return payload.Payload{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		return payload.Payload{}, err
	}
	return p, nil
}

func (c *Controller) encoder() recorder.Encoder {
	if c.deps.Encoder != nil {
		return c.deps.Encoder
	}
	if c.cfg.UseVideo {
		return recorder.MP4Encoder{}
	}
	return recorder.GIFEncoder{}
}

// StopRecording signals the in-progress recording, if any, to stop. The
// stop path is the status indicator or a repeated hotkey; both land here.
func (c *Controller) StopRecording() {
	c.mu.Lock()
	rec := c.active
	c.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

// RecordingActive reports whether a recording session is in progress.
func (c *Controller) RecordingActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// WaitIdle blocks until no capture cycle is in flight. The exit path calls
// this so process termination never interrupts an upload or recording.
func (c *Controller) WaitIdle() {
	c.inflight.Wait()
}

// CompleteCapture emits the one terminal user-visible notification for a
// cycle and, on success with a URL, places it on the clipboard. Calling it
// again for the same cycle is a no-op.
func (c *Controller) CompleteCapture(cycle *Cycle, outcome uploader.Outcome, err error) {
	cycle.once.Do(func() {
		if err != nil {
			log.Printf("session: cycle failed: %v", err)
			c.deps.Notifier.Notify("Capture failed", 5*time.Second)
			return
		}

		switch outcome.Kind {
		case uploader.OutcomeSavedLocally:
			c.deps.Notifier.Notify(fmt.Sprintf("Saved locally: %s", outcome.SavedPath), 5*time.Second)
		case uploader.OutcomeFailed:
			c.deps.Notifier.Notify("All uploads failed", 5*time.Second)
		case uploader.OutcomeUploaded:
			copied := false
			if !c.cfg.DisableClipboardCopy {
				if cerr := c.deps.Clipboard.Write(outcome.URL); cerr != nil {
					log.Printf("session: clipboard write failed: %v", cerr)
				} else {
					copied = true
				}
			}
			msg := fmt.Sprintf("Uploaded: %s", outcome.URL)
			if copied {
				msg += " (copied to clipboard)"
			}
			c.deps.Notifier.Notify(msg, 5*time.Second)
		}
	})
}

// effectiveRegion applies the manual per-display scaling factor when
// automatic DPI scaling is turned off.
func (c *Controller) effectiveRegion(r screenshot.Region) screenshot.Region {
	if !c.cfg.DisableAutoScaling || len(c.cfg.ScaleFactors) == 0 {
		return r
	}
	display := c.deps.DisplayIndex(r.X, r.Y)
	return r.Scale(c.cfg.ScaleFactor(display))
}
