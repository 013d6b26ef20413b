package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"screen-capture-upload/src/config"
	"screen-capture-upload/src/hotkey"
	"screen-capture-upload/src/notification"
	"screen-capture-upload/src/overlay"
	"screen-capture-upload/src/session"
	"screen-capture-upload/src/singleinstance"
	"screen-capture-upload/src/tray"
	"screen-capture-upload/src/uploader"
	"screen-capture-upload/src/worker"
)

// ErrSelectionCancelled reports that the user dismissed the overlay without
// completing a drag.
var ErrSelectionCancelled = errors.New("selection cancelled")

// Loop is the single-threaded coordinator. All trigger sources (hotkey, tray,
// delegated run-once requests) funnel into one goroutine; capture cycles run
// on the worker pool and post results back here.
type Loop struct {
	cfg        *config.Config
	selector   overlay.Selector
	controller *session.Controller
	notifier   notification.Notifier
	pool       *worker.Pool
	srv        singleinstance.Server

	busy           bool
	results        chan result
	hotkeyCh       chan struct{}
	captureCh      chan struct{}
	stopCh         chan struct{}
	defaultTooltip string
}

type result struct {
	outcome uploader.Outcome
	err     error
	target  resultTarget
	cancel  context.CancelFunc
}

// resultTarget receives the finished cycle. The terminal notification and
// clipboard copy already happened inside the controller; targets only route
// the outcome back to whoever asked for the capture.
type resultTarget interface {
	Deliver(outcome uploader.Outcome, err error)
	Close()
}

// localResultTarget serves hotkey and tray triggers. Nothing to route; the
// controller's terminal notification is the whole story.
type localResultTarget struct{}

func (localResultTarget) Deliver(uploader.Outcome, error) {}
func (localResultTarget) Close()                         {}

// delegatedResultTarget answers a run-once client over its connection.
type delegatedResultTarget struct {
	conn singleinstance.Conn
}

func (t delegatedResultTarget) Deliver(outcome uploader.Outcome, err error) {
	if err != nil {
		_ = t.conn.RespondError(err.Error())
		return
	}
	switch outcome.Kind {
	case uploader.OutcomeFailed:
		_ = t.conn.RespondError("all uploads failed")
	case uploader.OutcomeSavedLocally:
		_ = t.conn.RespondSuccess(outcome.SavedPath)
	default:
		_ = t.conn.RespondSuccess(outcome.URL)
	}
}

func (t delegatedResultTarget) Close() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
}

type requestCallbacks struct {
	onBusy        func()
	onSelectError func(err error)
	onCancelled   func()
}

// Deps bundles the loop's collaborators.
type Deps struct {
	Selector   overlay.Selector
	Controller *session.Controller
	Notifier   notification.Notifier
	Server     singleinstance.Server
}

func New(cfg *config.Config, deps Deps) *Loop {
	if deps.Selector == nil || deps.Controller == nil {
		panic("eventloop: Selector and Controller are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.Default()
	}
	if deps.Server == nil {
		deps.Server = singleinstance.NewServer()
	}
	return &Loop{
		cfg:            cfg,
		selector:       deps.Selector,
		controller:     deps.Controller,
		notifier:       deps.Notifier,
		pool:           worker.New(0),
		srv:            deps.Server,
		results:        make(chan result, 1),
		hotkeyCh:       make(chan struct{}, 4),
		captureCh:      make(chan struct{}, 4),
		stopCh:         make(chan struct{}, 4),
		defaultTooltip: "Screen Capture Upload",
	}
}

// SetDefaultTooltip sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if b {
		tray.UpdateTooltip("Capture in progress...")
	} else {
		tray.UpdateTooltip(l.defaultTooltip)
	}
}

// StartHotkey registers the global hotkey and posts events into the loop.
func (l *Loop) StartHotkey(combo string) {
	if combo == "" {
		return
	}
	hotkey.Listen(combo, func() {
		select {
		case l.hotkeyCh <- struct{}{}:
		default:
		}
	})
}

// RequestCapture posts a capture trigger, e.g. from the tray menu.
func (l *Loop) RequestCapture() {
	select {
	case l.captureCh <- struct{}{}:
	default:
	}
}

// RequestStopRecording posts a stop-recording trigger from the tray menu.
func (l *Loop) RequestStopRecording() {
	select {
	case l.stopCh <- struct{}{}:
	default:
	}
}

// Run starts the singleinstance server and processes triggers until ctx is
// cancelled. It blocks; main runs it on a dedicated goroutine.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	if p := l.srv.Port(); p > 0 {
		log.Printf("resident listening on 127.0.0.1:%d", p)
		tray.SetAboutExtra(fmt.Sprintf("Resident TCP port: %d", p))
	}
	defer l.pool.Close()

	// Accept in the background so result handling never blocks on clients.
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				close(reqCh)
				return
			}
			reqCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.controller.WaitIdle()
			return ctx.Err()
		case <-l.hotkeyCh:
			l.handleHotkey(ctx)
		case <-l.captureCh:
			l.handleCaptureRequest(ctx)
		case <-l.stopCh:
			l.controller.StopRecording()
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			if done := l.handleResult(res); done {
				return nil
			}
		}
	}
}

// handleHotkey runs a local capture, except while a recording is active: a
// second press of the hotkey stops the recording.
func (l *Loop) handleHotkey(ctx context.Context) {
	if l.controller.RecordingActive() {
		log.Printf("eventloop: hotkey during recording, stopping")
		l.controller.StopRecording()
		return
	}
	l.handleCaptureRequest(ctx)
}

func (l *Loop) handleCaptureRequest(ctx context.Context) {
	l.startRequest(ctx, localResultTarget{}, requestCallbacks{
		onBusy: func() {
			l.notifier.Notify("Busy, please retry", 3*time.Second)
		},
		onSelectError: func(err error) {
			log.Printf("eventloop: selection error: %v", err)
			l.notifier.Notify("Selection error", 3*time.Second)
		},
		onCancelled: func() {},
	})
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	target := delegatedResultTarget{conn: conn}
	l.startRequest(ctx, target, requestCallbacks{
		onBusy: func() {
			_ = conn.RespondError("busy, please retry")
			target.Close()
		},
		onSelectError: func(err error) {
			_ = conn.RespondError(fmt.Sprintf("failed to select region: %v", err))
			target.Close()
		},
		onCancelled: func() {
			_ = conn.RespondError(ErrSelectionCancelled.Error())
			target.Close()
		},
	})
}

func (l *Loop) startRequest(ctx context.Context, target resultTarget, callbacks requestCallbacks) {
	if l.busy {
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
		return
	}

	sel, cancelled, err := l.selector.Select(ctx)
	if err != nil {
		if callbacks.onSelectError != nil {
			callbacks.onSelectError(err)
		}
		return
	}
	if cancelled {
		if callbacks.onCancelled != nil {
			callbacks.onCancelled()
		}
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	l.setBusy(true)
	if sel.Gesture == overlay.GestureRecording && !l.cfg.DisableRecording {
		tray.SetRecordingActive(true)
	}
	submitted := l.pool.Submit(jobCtx, func(jctx context.Context) {
		outcome, err := l.controller.OnRegionSelected(jctx, sel)
		l.results <- result{outcome: outcome, err: err, target: target, cancel: cancel}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		tray.SetRecordingActive(false)
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
	}
}

// handleResult finishes a cycle on the loop goroutine. Returns true when the
// loop should exit because EXIT_AFTER_CAPTURE is set.
func (l *Loop) handleResult(res result) bool {
	defer func() {
		l.setBusy(false)
		tray.SetRecordingActive(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()

	if res.err != nil {
		log.Printf("eventloop: cycle error: %v", res.err)
	}
	if res.target != nil {
		res.target.Deliver(res.outcome, res.err)
		res.target.Close()
	}

	if l.cfg.ExitAfterCapture {
		log.Printf("eventloop: exit after capture")
		l.controller.WaitIdle()
		return true
	}
	return false
}
