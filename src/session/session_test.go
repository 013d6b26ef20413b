package session

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"screen-capture-upload/src/config"
	"screen-capture-upload/src/overlay"
	"screen-capture-upload/src/payload"
	"screen-capture-upload/src/recorder"
	"screen-capture-upload/src/screenshot"
	"screen-capture-upload/src/uploader"
)

type fakeUploads struct {
	mu       sync.Mutex
	outcome  uploader.Outcome
	received []payload.Payload
}

func (f *fakeUploads) UploadAll(_ context.Context, p payload.Payload) uploader.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, p)
	return f.outcome
}

func (f *fakeUploads) calls() []payload.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payload.Payload(nil), f.received...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(message string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeNotifier) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type fakeClipboard struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeClipboard) Write(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeClipboard) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type stubEncoder struct {
	p payload.Payload
}

func (s stubEncoder) Encode(frames []*image.RGBA, fps int) (payload.Payload, error) {
	if len(frames) == 0 {
		return payload.Payload{}, recorder.ErrEmpty
	}
	return s.p, nil
}

func okGrab(region screenshot.Region) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, region.Width, region.Height)), nil
}

func newTestController(cfg *config.Config, up *fakeUploads) (*Controller, *fakeNotifier, *fakeClipboard) {
	notifier := &fakeNotifier{}
	clip := &fakeClipboard{}
	ctrl := New(cfg, Deps{
		Uploads:      up,
		Notifier:     notifier,
		Clipboard:    clip,
		Grab:         okGrab,
		DisplayIndex: func(x, y int) int { return 0 },
	})
	return ctrl, notifier, clip
}

func stillSelection() overlay.Selection {
	return overlay.Selection{
		Region:  screenshot.Region{X: 10, Y: 10, Width: 100, Height: 60},
		Gesture: overlay.GestureStill,
	}
}

func TestStillCycleUploadsAndCopies(t *testing.T) {
	up := &fakeUploads{outcome: uploader.Outcome{Kind: uploader.OutcomeUploaded, URL: "https://img.example/a"}}
	ctrl, notifier, clip := newTestController(&config.Config{StillFormat: "png"}, up)

	outcome, err := ctrl.OnRegionSelected(context.Background(), stillSelection())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if outcome.Kind != uploader.OutcomeUploaded {
		t.Fatalf("expected uploaded outcome, got %v", outcome.Kind)
	}

	calls := up.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one upload, got %d", len(calls))
	}
	if calls[0].Kind != payload.KindImage {
		t.Errorf("expected image payload, got %v", calls[0].Kind)
	}
	if texts := clip.all(); len(texts) != 1 || texts[0] != "https://img.example/a" {
		t.Errorf("unexpected clipboard writes: %v", texts)
	}
	msgs := notifier.all()
	if len(msgs) != 1 {
		t.Fatalf("expected one terminal notification, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "https://img.example/a") {
		t.Errorf("notification should carry the URL, got %q", msgs[0])
	}
}

func TestCompleteCaptureFiresOnce(t *testing.T) {
	up := &fakeUploads{}
	ctrl, notifier, _ := newTestController(&config.Config{}, up)

	cycle := NewCycle()
	outcome := uploader.Outcome{Kind: uploader.OutcomeUploaded, URL: "https://img.example/x"}
	ctrl.CompleteCapture(cycle, outcome, nil)
	ctrl.CompleteCapture(cycle, outcome, nil)
	ctrl.CompleteCapture(cycle, uploader.Outcome{Kind: uploader.OutcomeFailed}, errors.New("late"))

	if msgs := notifier.all(); len(msgs) != 1 {
		t.Fatalf("terminal notification must fire exactly once, got %v", msgs)
	}
}

func TestClipboardCopyDisabled(t *testing.T) {
	up := &fakeUploads{outcome: uploader.Outcome{Kind: uploader.OutcomeUploaded, URL: "https://img.example/b"}}
	ctrl, notifier, clip := newTestController(&config.Config{DisableClipboardCopy: true}, up)

	if _, err := ctrl.OnRegionSelected(context.Background(), stillSelection()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if texts := clip.all(); len(texts) != 0 {
		t.Errorf("clipboard should be untouched, got %v", texts)
	}
	msgs := notifier.all()
	if len(msgs) != 1 || strings.Contains(msgs[0], "copied") {
		t.Errorf("notification should not claim a copy, got %v", msgs)
	}
}

func TestSavedLocallyNotification(t *testing.T) {
	up := &fakeUploads{outcome: uploader.Outcome{Kind: uploader.OutcomeSavedLocally, SavedPath: "captures/capture_x.png"}}
	ctrl, notifier, clip := newTestController(&config.Config{}, up)

	if _, err := ctrl.OnRegionSelected(context.Background(), stillSelection()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if texts := clip.all(); len(texts) != 0 {
		t.Errorf("no URL to copy, got %v", texts)
	}
	msgs := notifier.all()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "captures/capture_x.png") {
		t.Errorf("notification should carry the saved path, got %v", msgs)
	}
}

func TestAllFailedNotification(t *testing.T) {
	up := &fakeUploads{outcome: uploader.Outcome{Kind: uploader.OutcomeFailed}}
	ctrl, notifier, clip := newTestController(&config.Config{}, up)

	outcome, err := ctrl.OnRegionSelected(context.Background(), stillSelection())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if outcome.Kind != uploader.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %v", outcome.Kind)
	}
	if texts := clip.all(); len(texts) != 0 {
		t.Errorf("clipboard must stay untouched on failure, got %v", texts)
	}
	if msgs := notifier.all(); len(msgs) != 1 {
		t.Fatalf("expected one terminal notification, got %v", msgs)
	}
}

func TestGrabFailureAbortsCycle(t *testing.T) {
	up := &fakeUploads{}
	notifier := &fakeNotifier{}
	ctrl := New(&config.Config{}, Deps{
		Uploads:   up,
		Notifier:  notifier,
		Clipboard: &fakeClipboard{},
		Grab: func(screenshot.Region) (*image.RGBA, error) {
			return nil, errors.New("display gone")
		},
	})

	_, err := ctrl.OnRegionSelected(context.Background(), stillSelection())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if len(up.calls()) != 0 {
		t.Error("nothing should be uploaded when capture fails")
	}
	if msgs := notifier.all(); len(msgs) != 1 {
		t.Fatalf("expected one failure notification, got %v", msgs)
	}
}

func TestRecordingDisabledFallsBackToStill(t *testing.T) {
	up := &fakeUploads{outcome: uploader.Outcome{Kind: uploader.OutcomeUploaded, URL: "https://img.example/c"}}
	ctrl, _, _ := newTestController(&config.Config{DisableRecording: true}, up)

	sel := stillSelection()
	sel.Gesture = overlay.GestureRecording
	if _, err := ctrl.OnRegionSelected(context.Background(), sel); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	calls := up.calls()
	if len(calls) != 1 || calls[0].Kind != payload.KindImage {
		t.Fatalf("expected a still payload, got %+v", calls)
	}
}

func TestRecordingCycle(t *testing.T) {
	up := &fakeUploads{outcome: uploader.Outcome{Kind: uploader.OutcomeUploaded, URL: "https://img.example/d"}}
	notifier := &fakeNotifier{}
	encoded := payload.Payload{Data: []byte("gif"), Filename: "capture.gif", Kind: payload.KindAnimation}
	ctrl := New(&config.Config{RecordFPS: 50, RecordMaxSec: 30}, Deps{
		Uploads:   up,
		Notifier:  notifier,
		Clipboard: &fakeClipboard{},
		Grab:      okGrab,
		Encoder:   stubEncoder{p: encoded},
	})

	sel := stillSelection()
	sel.Gesture = overlay.GestureRecording

	done := make(chan uploader.Outcome, 1)
	go func() {
		outcome, err := ctrl.OnRegionSelected(context.Background(), sel)
		if err != nil {
			t.Errorf("cycle failed: %v", err)
		}
		done <- outcome
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !ctrl.RecordingActive() {
		if time.Now().After(deadline) {
			t.Fatal("recording never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	ctrl.StopRecording()

	select {
	case outcome := <-done:
		if outcome.Kind != uploader.OutcomeUploaded {
			t.Fatalf("expected uploaded outcome, got %v", outcome.Kind)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("recording cycle never finished")
	}

	if ctrl.RecordingActive() {
		t.Error("recording should be inactive after the cycle")
	}
	calls := up.calls()
	if len(calls) != 1 || calls[0].Kind != payload.KindAnimation {
		t.Fatalf("expected the encoded animation payload, got %+v", calls)
	}
}

func TestStopRecordingWithoutSessionIsNoop(t *testing.T) {
	up := &fakeUploads{}
	ctrl, _, _ := newTestController(&config.Config{}, up)
	ctrl.StopRecording()
	if ctrl.RecordingActive() {
		t.Error("no recording should be active")
	}
}

func TestManualScalingAppliedWhenAutoDisabled(t *testing.T) {
	up := &fakeUploads{outcome: uploader.Outcome{Kind: uploader.OutcomeUploaded, URL: "u"}}
	var grabbed screenshot.Region
	ctrl := New(&config.Config{
		DisableAutoScaling: true,
		ScaleFactors:       []float64{2.0},
	}, Deps{
		Uploads:   up,
		Notifier:  &fakeNotifier{},
		Clipboard: &fakeClipboard{},
		Grab: func(region screenshot.Region) (*image.RGBA, error) {
			grabbed = region
			return okGrab(region)
		},
		DisplayIndex: func(x, y int) int { return 0 },
	})

	if _, err := ctrl.OnRegionSelected(context.Background(), stillSelection()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	want := screenshot.Region{X: 20, Y: 20, Width: 200, Height: 120}
	if grabbed != want {
		t.Errorf("expected scaled region %+v, got %+v", want, grabbed)
	}
}
