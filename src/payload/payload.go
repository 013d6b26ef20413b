package payload

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Kind declares the media type of a capture payload.
type Kind int

const (
	KindImage Kind = iota
	KindAnimation
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAnimation:
		return "animation"
	case KindVideo:
		return "video"
	default:
		return "image"
	}
}

// ContentType returns the MIME type for the payload kind and extension.
func ContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// Payload is the encoded result of one capture cycle. It is owned by the
// capture controller and handed read-only to the upload orchestrator.
type Payload struct {
	Data     []byte
	Filename string
	Kind     Kind
}

// clock is stubbed in tests to make filenames deterministic.
var clock = time.Now

// New builds a payload with a timestamp-based filename. ext must include the
// leading dot.
func New(data []byte, kind Kind, ext string) Payload {
	name := fmt.Sprintf("capture_%s%s", clock().Format("20060102_150405"), ext)
	return Payload{Data: data, Filename: name, Kind: kind}
}

// NewStill builds an image payload with the extension derived from the
// configured still format.
func NewStill(data []byte, format string) Payload {
	ext := ".png"
	if format == "jpg" || format == "jpeg" {
		ext = ".jpg"
	}
	return New(data, KindImage, ext)
}

// SaveLocal persists the payload under its generated filename. This is the
// fallback when no upload provider is registered.
func (p Payload) SaveLocal(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create save directory: %w", err)
	}
	path := filepath.Join(dir, p.Filename)
	if err := os.WriteFile(path, p.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save payload: %w", err)
	}
	return path, nil
}
