package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-capture-upload/src/config"
	"screen-capture-upload/src/payload"
	"screen-capture-upload/src/providers"
	"screen-capture-upload/src/singleinstance"
	"screen-capture-upload/src/uploader"
)

const (
	maxFileSizeMB = 50
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath   string
	capture    bool
	jsonOutput bool
	verbose    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"capture-upload"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "capture-upload",
		Short:         "Upload a capture file, or delegate a screen capture to the resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to an image or video file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.capture, "capture", false, "Delegate an interactive capture to the resident and print the URL")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	return cmd
}

func runWithOptions(opts cliOptions) error {
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	if opts.capture {
		return captureViaResident(opts)
	}
	if opts.filePath == "" {
		return fmt.Errorf("either --file or --capture is required")
	}
	return uploadFile(opts)
}

// captureViaResident hands the interactive capture to an already-running
// resident and prints the resulting URL.
func captureViaResident(opts cliOptions) error {
	_, _ = config.Load()
	ctx := context.Background()

	url, err := delegateCapture(ctx, singleinstance.NewClient())
	if err != nil {
		return err
	}
	return outputResult(url, "capture", 0, opts.jsonOutput)
}

func delegateCapture(ctx context.Context, client singleinstance.Client) (string, error) {
	delegated, url, err := client.Delegate(ctx, true)
	if err != nil {
		return "", fmt.Errorf("resident capture failed: %w", err)
	}
	if !delegated {
		return "", fmt.Errorf("no resident instance found; start the tray application first")
	}
	return url, nil
}

func uploadFile(opts cliOptions) error {
	var data []byte
	var err error
	name := filepath.Base(opts.filePath)

	if opts.filePath == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		name = "capture.png"
	} else {
		data, err = os.ReadFile(opts.filePath)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", opts.filePath, err)
		}
	}

	if len(data) == 0 {
		return fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	registry := uploader.NewRegistry()
	if err := providers.RegisterAll(registry, cfg.ProvidersFile); err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}
	if len(registry.Names()) == 0 {
		return fmt.Errorf("no enabled providers in %s", cfg.ProvidersFile)
	}

	orchestrator := uploader.NewOrchestrator(registry, cfg.PreferredProvider, cfg.SaveDir,
		uploader.NotifyFunc(func(message string) {
			log.Printf("%s", message)
		}))

	p := payload.Payload{
		Data:     data,
		Filename: name,
		Kind:     kindForFilename(name),
	}

	start := time.Now()
	outcome := orchestrator.UploadAll(context.Background(), p)
	elapsed := time.Since(start)

	switch outcome.Kind {
	case uploader.OutcomeUploaded:
		return outputResult(outcome.URL, opts.filePath, elapsed, opts.jsonOutput)
	case uploader.OutcomeSavedLocally:
		return outputResult(outcome.SavedPath, opts.filePath, elapsed, opts.jsonOutput)
	default:
		return fmt.Errorf("all uploads failed")
	}
}

func kindForFilename(name string) payload.Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gif":
		return payload.KindAnimation
	case ".mp4", ".webm", ".mov":
		return payload.KindVideo
	default:
		return payload.KindImage
	}
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		switch {
		case arg == "-file":
			normalized[i] = "--file"
		case strings.HasPrefix(arg, "-file="):
			normalized[i] = "--file=" + arg[len("-file="):]
		case arg == "-capture":
			normalized[i] = "--capture"
		case arg == "-json":
			normalized[i] = "--json"
		case strings.HasPrefix(arg, "-json="):
			normalized[i] = "--json=" + arg[len("-json="):]
		case arg == "-verbose":
			normalized[i] = "--verbose"
		}
	}

	return normalized
}

type uploadResult struct {
	URL       string  `json:"url"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
}

func outputResult(url string, source string, elapsed time.Duration, jsonOutput bool) error {
	if jsonOutput {
		result := uploadResult{
			URL:       url,
			Source:    source,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Duration:  elapsed.Seconds(),
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}

	fmt.Print(url)
	return nil
}
