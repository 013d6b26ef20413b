package recorder

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"screen-capture-upload/src/payload"
	"screen-capture-upload/src/screenshot"
)

// ErrEmpty is returned when a recording stops before any frame was captured.
// Upstream treats it the same as a failed capture.
var ErrEmpty = errors.New("recording captured no frames")

// State of the recording lifecycle: Idle -> Recording -> Stopping -> Idle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// FrameSource grabs pixels for a rectangle. It is the same source used for
// single-shot captures; the recorder just ticks it at a fixed rate.
type FrameSource func(screenshot.Region) (*image.RGBA, error)

// Encoder turns the accumulated frame buffer into a payload.
type Encoder interface {
	Encode(frames []*image.RGBA, fps int) (payload.Payload, error)
}

// Options configure one recording session.
type Options struct {
	FPS         int
	MaxDuration time.Duration
	Encoder     Encoder
}

type result struct {
	payload payload.Payload
	err     error
}

// Session is one in-progress recording. The frame buffer is appended only by
// the session's own goroutine; the only externally-written state is the stop
// signal.
type Session struct {
	src      FrameSource
	region   screenshot.Region
	fps      int
	maxDur   time.Duration
	encoder  Encoder
	stop     chan struct{}
	stopOnce sync.Once
	done     chan result

	mu     sync.Mutex
	state  State
	frames []*image.RGBA
}

// Start begins a recording session and returns immediately; the tick loop
// runs off the interactive path.
func Start(region screenshot.Region, src FrameSource, opts Options) (*Session, error) {
	if src == nil {
		return nil, errors.New("frame source is required")
	}
	if opts.Encoder == nil {
		return nil, errors.New("encoder is required")
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 10
	}

	s := &Session{
		src:     src,
		region:  region,
		fps:     fps,
		maxDur:  opts.MaxDuration,
		encoder: opts.Encoder,
		stop:    make(chan struct{}),
		done:    make(chan result, 1),
		state:   StateRecording,
	}
	go s.run()
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop requests the session to stop accepting frames. Safe to call more
// than once and from any goroutine; encoding of already-captured frames
// still completes.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Wait blocks until the session reaches Idle and returns the encoded
// payload, ErrEmpty when no frame was captured, or the fatal capture/encode
// error that aborted the session.
func (s *Session) Wait() (payload.Payload, error) {
	res := <-s.done
	return res.payload, res.err
}

func (s *Session) run() {
	interval := time.Second / time.Duration(s.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if s.maxDur > 0 {
		timer := time.NewTimer(s.maxDur)
		defer timer.Stop()
		deadline = timer.C
	}

	log.Printf("recorder: started %dx%d at %d fps", s.region.Width, s.region.Height, s.fps)

loop:
	for {
		select {
		case <-s.stop:
			break loop
		case <-deadline:
			log.Printf("recorder: duration limit reached")
			break loop
		case <-ticker.C:
			frame, err := s.src(s.region)
			if err != nil {
				s.finish(payload.Payload{}, fmt.Errorf("frame capture failed: %w", err))
				return
			}
			s.mu.Lock()
			s.frames = append(s.frames, frame)
			s.mu.Unlock()
		}
	}

	s.setState(StateStopping)

	s.mu.Lock()
	frames := s.frames
	s.mu.Unlock()

	if len(frames) == 0 {
		s.finish(payload.Payload{}, ErrEmpty)
		return
	}

	log.Printf("recorder: encoding %d frames", len(frames))
	p, err := s.encoder.Encode(frames, s.fps)
	if err != nil {
		s.finish(payload.Payload{}, fmt.Errorf("encode failed: %w", err))
		return
	}
	s.finish(p, nil)
}

func (s *Session) finish(p payload.Payload, err error) {
	s.setState(StateIdle)
	s.done <- result{payload: p, err: err}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
