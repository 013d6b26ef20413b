package recorder

import (
	"errors"
	"image"
	"testing"
	"time"

	"screen-capture-upload/src/payload"
	"screen-capture-upload/src/screenshot"
)

type stubEncoder struct {
	gotFrames int
	gotFPS    int
	err       error
}

func (e *stubEncoder) Encode(frames []*image.RGBA, fps int) (payload.Payload, error) {
	e.gotFrames = len(frames)
	e.gotFPS = fps
	if e.err != nil {
		return payload.Payload{}, e.err
	}
	return payload.New([]byte("encoded"), payload.KindAnimation, ".gif"), nil
}

func testFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestStopBeforeFirstFrameIsEmpty(t *testing.T) {
	src := func(screenshot.Region) (*image.RGBA, error) { return testFrame(), nil }
	enc := &stubEncoder{}

	// 1 fps: first tick is a second away, stop lands long before it.
	s, err := Start(screenshot.Region{Width: 8, Height: 8}, src, Options{FPS: 1, Encoder: enc})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()

	_, err = s.Wait()
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if enc.gotFrames != 0 {
		t.Errorf("encoder should not run for an empty session")
	}
	if st := s.State(); st != StateIdle {
		t.Errorf("state after empty stop = %v, want idle", st)
	}
}

func TestRecordAndEncode(t *testing.T) {
	grabbed := 0
	src := func(screenshot.Region) (*image.RGBA, error) {
		grabbed++
		return testFrame(), nil
	}
	enc := &stubEncoder{}

	s, err := Start(screenshot.Region{Width: 8, Height: 8}, src, Options{FPS: 50, Encoder: enc})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	if st := s.State(); st != StateRecording {
		t.Errorf("state mid-session = %v, want recording", st)
	}
	s.Stop()
	s.Stop() // idempotent

	p, err := s.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if enc.gotFrames == 0 || enc.gotFrames != grabbed {
		t.Errorf("encoder saw %d frames, source grabbed %d", enc.gotFrames, grabbed)
	}
	if enc.gotFPS != 50 {
		t.Errorf("encoder fps = %d, want 50", enc.gotFPS)
	}
	if p.Kind != payload.KindAnimation {
		t.Errorf("payload kind = %v, want animation", p.Kind)
	}
	if s.State() != StateIdle {
		t.Errorf("state after encode = %v, want idle", s.State())
	}
}

func TestCaptureErrorAbortsSession(t *testing.T) {
	src := func(screenshot.Region) (*image.RGBA, error) {
		return nil, errors.New("display gone")
	}
	enc := &stubEncoder{}

	s, err := Start(screenshot.Region{Width: 8, Height: 8}, src, Options{FPS: 100, Encoder: enc})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err = s.Wait()
	if err == nil {
		t.Fatal("expected capture error to abort the session")
	}
	if enc.gotFrames != 0 {
		t.Error("encoder ran despite a fatal capture error")
	}
}

func TestEncodeErrorIsFatal(t *testing.T) {
	src := func(screenshot.Region) (*image.RGBA, error) { return testFrame(), nil }
	enc := &stubEncoder{err: errors.New("codec blew up")}

	s, err := Start(screenshot.Region{Width: 8, Height: 8}, src, Options{FPS: 100, Encoder: enc})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	_, err = s.Wait()
	if err == nil || errors.Is(err, ErrEmpty) {
		t.Fatalf("expected encode failure, got %v", err)
	}
}

func TestMaxDurationStops(t *testing.T) {
	src := func(screenshot.Region) (*image.RGBA, error) { return testFrame(), nil }
	enc := &stubEncoder{}

	s, err := Start(screenshot.Region{Width: 8, Height: 8}, src, Options{
		FPS:         100,
		MaxDuration: 80 * time.Millisecond,
		Encoder:     enc,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	doneCh := make(chan struct{})
	go func() {
		_, _ = s.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop at the duration limit")
	}
}

func TestGIFEncoder(t *testing.T) {
	frames := []*image.RGBA{testFrame(), testFrame(), testFrame()}

	p, err := GIFEncoder{}.Encode(frames, 10)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if p.Kind != payload.KindAnimation {
		t.Errorf("kind = %v, want animation", p.Kind)
	}
	// GIF87a/GIF89a magic.
	if len(p.Data) < 6 || string(p.Data[:3]) != "GIF" {
		t.Errorf("output does not look like a GIF")
	}

	if _, err := (GIFEncoder{}).Encode(nil, 10); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty frame list should yield ErrEmpty, got %v", err)
	}
}
