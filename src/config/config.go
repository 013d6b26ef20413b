package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultStillFormat = "png"
	DefaultRecordFPS   = 10
	// DefaultRecordMaxSec bounds a recording that the user never stops.
	DefaultRecordMaxSec = 120
	DefaultSaveDir      = "captures"
	DefaultProviders    = "providers.yaml"
	DefaultHotkey       = "Ctrl+Alt+S"

	// EnvPathVar points at an alternate config file when no .env sits next
	// to the executable.
	EnvPathVar = "SCREEN_CAPTURE_UPLOAD"
)

// Config is the explicit configuration context passed into the capture
// controller and upload orchestrator at construction. There is no ambient
// global configuration state.
type Config struct {
	StillFormat       string
	RecordFPS         int
	RecordMaxSec      int
	PreferredProvider string
	ScaleFactors      []float64
	SaveDir           string
	ProvidersFile     string
	Hotkey            string
	EnableFileLogging bool

	DisableClipboardCopy   bool
	DisableAutoScaling     bool
	DisableRecording       bool
	DisableFocusStealing   bool
	DisableTransparency    bool
	UseVideo               bool
	LoadProvidersOnStartup bool
	ExitAfterCapture       bool
}

// Load reads configuration from a .env next to the executable (falling back
// to the file named by SCREEN_CAPTURE_UPLOAD) plus process environment.
// Absent or malformed values fall back to documented defaults; Load itself
// never fails on bad values.
func Load() (*Config, error) {
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		StillFormat:       resolveStillFormat(os.Getenv("STILL_FORMAT")),
		RecordFPS:         getEnvInt("RECORD_FPS", DefaultRecordFPS),
		RecordMaxSec:      getEnvInt("RECORD_MAX_SEC", DefaultRecordMaxSec),
		PreferredProvider: strings.TrimSpace(os.Getenv("PREFERRED_PROVIDER")),
		ScaleFactors:      parseScaleFactors(os.Getenv("SCALE_FACTORS")),
		SaveDir:           getEnvWithDefault("SAVE_DIR", DefaultSaveDir),
		ProvidersFile:     getEnvWithDefault("PROVIDERS_FILE", DefaultProviders),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		EnableFileLogging: getEnvBool("ENABLE_FILE_LOGGING"),

		DisableClipboardCopy:   getEnvBool("DISABLE_CLIPBOARD_COPY"),
		DisableAutoScaling:     getEnvBool("DISABLE_AUTO_SCALING"),
		DisableRecording:       getEnvBool("DISABLE_RECORDING_LOOP"),
		DisableFocusStealing:   getEnvBool("DISABLE_FOCUS_STEALING"),
		DisableTransparency:    getEnvBool("DISABLE_TRANSPARENCY"),
		UseVideo:               getEnvBool("USE_VIDEO"),
		LoadProvidersOnStartup: getEnvBool("LOAD_PROVIDERS_ON_STARTUP"),
		ExitAfterCapture:       getEnvBool("EXIT_AFTER_CAPTURE"),
	}

	return cfg, nil
}

// ScaleFactor returns the manual scaling factor for a display index, or 1.0
// when none is configured for it.
func (c *Config) ScaleFactor(display int) float64 {
	if display < 0 || display >= len(c.ScaleFactors) {
		return 1.0
	}
	f := c.ScaleFactors[display]
	if f <= 0 {
		return 1.0
	}
	return f
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveStillFormat(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "jpg", "jpeg":
		return "jpg"
	case "", "png":
		return DefaultStillFormat
	default:
		return DefaultStillFormat
	}
}

// parseScaleFactors parses a comma-separated factor list, one entry per
// display ("1.25,1.0"). Malformed entries become 1.0 so display indexes
// keep lining up.
func parseScaleFactors(value string) []float64 {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	factors := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || f <= 0 {
			f = 1.0
		}
		factors = append(factors, f)
	}
	return factors
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	return strings.ToLower(os.Getenv(key)) == "true"
}
