package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"screen-capture-upload/src/clipboard"
	"screen-capture-upload/src/config"
	"screen-capture-upload/src/eventloop"
	"screen-capture-upload/src/logutil"
	"screen-capture-upload/src/notification"
	"screen-capture-upload/src/overlay"
	"screen-capture-upload/src/providers"
	"screen-capture-upload/src/screenshot"
	"screen-capture-upload/src/session"
	"screen-capture-upload/src/singleinstance"
	"screen-capture-upload/src/tray"
	"screen-capture-upload/src/uploader"
)

// normalizeFlagDashes maps GNU-style --run-once to Go's -run-once.
func normalizeFlagDashes() {
	for i := 1; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case arg == "--run-once":
			os.Args[i] = "-run-once"
		case strings.HasPrefix(arg, "--run-once="):
			os.Args[i] = "-run-once" + arg[len("--run-once"):]
		}
	}
}

// enableDPIAwareness sets per-monitor DPI awareness on Windows so overlay
// coordinates match physical pixels.
func enableDPIAwareness() {
	if runtime.GOOS != "windows" {
		return
	}
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		_, _, _ = setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		return
	}
	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err == nil {
		_, _, _ = setProcessDPIAware.Call()
	}
}

func main() {
	// DPI awareness must be set before any window or metrics query.
	enableDPIAwareness()

	// The overlay and tray expect the main goroutine to keep its OS thread.
	runtime.LockOSThread()

	runOnce := flag.Bool("run-once", false, "Capture once, copy the URL to the clipboard, and exit")
	normalizeFlagDashes()
	flag.Parse()

	if *runOnce {
		// Load .env early so CAPTURE_PORT_* apply to the delegation scan.
		_, _ = config.Load()
		ctx := context.Background()
		client := singleinstance.NewClient()
		delegated, _, err := client.Delegate(ctx, false)
		if err != nil {
			log.Printf("delegation error: %v; falling back to standalone", err)
			runCaptureOnce(false)
			return
		}
		if delegated {
			log.Printf("delegated to resident")
			return
		}
		runCaptureOnce(false)
		return
	}

	_, _ = config.Load()
	// Pre-flight: claim the resident port before building anything. A busy
	// port means another resident exists.
	startPort, _ := singleinstance.PortRange()
	addr := fmt.Sprintf("127.0.0.1:%d", startPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("pre-flight: port %d busy, resident already exists", startPort)
		fmt.Printf("one is already running on port %d\n", startPort)
		os.Exit(1)
	}
	// Release so the event loop server can re-bind.
	_ = listener.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logutil.Setup(cfg.EnableFileLogging)

	screenshot.Init()
	if err := clipboard.Init(); err != nil {
		log.Fatalf("failed to initialize clipboard: %v", err)
	}

	log.Printf("screen capture upload tool initialized")
	log.Printf("hotkey: %s", cfg.Hotkey)
	log.Printf("still format: %s, record fps: %d", cfg.StillFormat, cfg.RecordFPS)

	notifier := notification.Default()
	registry := uploader.NewRegistry()
	if cfg.LoadProvidersOnStartup {
		if err := providers.RegisterAll(registry, cfg.ProvidersFile); err != nil {
			log.Printf("provider load failed: %v", err)
		}
	}
	log.Printf("providers enabled: %v", registry.Names())

	orchestrator := uploader.NewOrchestrator(registry, cfg.PreferredProvider, cfg.SaveDir,
		uploader.NotifyFunc(func(message string) {
			notifier.Notify(message, 5*time.Second)
		}))

	controller := session.New(cfg, session.Deps{
		Uploads:  orchestrator,
		Notifier: notifier,
	})

	selector := overlay.NewSelector(overlay.Options{
		Capabilities: overlay.Capabilities{
			WindowTransparency: !cfg.DisableTransparency,
			FocusStealing:      !cfg.DisableFocusStealing,
		},
		// Mid-selection configuration: the overlay suspends, providers are
		// reloaded from disk, and selection resumes.
		OnConfigure: func() {
			if err := providers.RegisterAll(registry, cfg.ProvidersFile); err != nil {
				log.Printf("provider reload failed: %v", err)
			} else {
				log.Printf("providers reloaded: %v", registry.Names())
			}
		},
	})

	loop := eventloop.New(cfg, eventloop.Deps{
		Selector:   selector,
		Controller: controller,
		Notifier:   notifier,
	})
	loop.SetDefaultTooltip(fmt.Sprintf("Screen Capture Upload - Press %s", cfg.Hotkey))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("event loop stopped: %v", err)
		}
		cancel()
		tray.Quit()
	}()

	loop.StartHotkey(cfg.Hotkey)

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
		tray.Quit()
	}()

	// Blocks on the tray loop; platforms that require the UI on the main
	// thread get it here.
	tray.Run(tray.Handlers{
		OnCapture:       loop.RequestCapture,
		OnStopRecording: loop.RequestStopRecording,
		OnQuit:          cancel,
	}, nil)

	controller.WaitIdle()
}

// runCaptureOnce performs a single standalone capture cycle and exits.
func runCaptureOnce(printURL bool) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logutil.Setup(cfg.EnableFileLogging)

	screenshot.Init()
	if err := clipboard.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize clipboard: %v\n", err)
		os.Exit(1)
	}

	notifier := notification.Default()
	registry := uploader.NewRegistry()
	if err := providers.RegisterAll(registry, cfg.ProvidersFile); err != nil {
		log.Printf("provider load failed: %v", err)
	}
	orchestrator := uploader.NewOrchestrator(registry, cfg.PreferredProvider, cfg.SaveDir,
		uploader.NotifyFunc(func(message string) {
			notifier.Notify(message, 5*time.Second)
		}))

	controller := session.New(cfg, session.Deps{
		Uploads:  orchestrator,
		Notifier: notifier,
	})

	selector := overlay.NewSelector(overlay.Options{
		Capabilities: overlay.Capabilities{
			WindowTransparency: !cfg.DisableTransparency,
			FocusStealing:      !cfg.DisableFocusStealing,
		},
	})

	ctx := context.Background()
	sel, cancelled, err := selector.Select(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to select region: %v\n", err)
		os.Exit(1)
	}
	if cancelled {
		log.Printf("selection cancelled")
		os.Exit(0)
	}

	outcome, err := controller.OnRegionSelected(ctx, sel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture failed: %v\n", err)
		os.Exit(1)
	}
	if printURL && outcome.URL != "" {
		fmt.Print(outcome.URL)
	}
	os.Exit(0)
}
