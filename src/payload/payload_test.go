package payload

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func withFixedClock(t *testing.T) {
	t.Helper()
	orig := clock
	clock = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	}
	t.Cleanup(func() { clock = orig })
}

func TestNewFilename(t *testing.T) {
	withFixedClock(t)

	p := New([]byte{1, 2, 3}, KindAnimation, ".gif")
	if p.Filename != "capture_20240315_103045.gif" {
		t.Errorf("Filename = %q", p.Filename)
	}
	if p.Kind != KindAnimation {
		t.Errorf("Kind = %v, want animation", p.Kind)
	}
}

func TestNewStillExtension(t *testing.T) {
	withFixedClock(t)

	if p := NewStill(nil, "png"); filepath.Ext(p.Filename) != ".png" {
		t.Errorf("png format produced %q", p.Filename)
	}
	if p := NewStill(nil, "jpg"); filepath.Ext(p.Filename) != ".jpg" {
		t.Errorf("jpg format produced %q", p.Filename)
	}
	if p := NewStill(nil, ""); filepath.Ext(p.Filename) != ".png" {
		t.Errorf("default format produced %q", p.Filename)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.png":  "image/png",
		"a.jpg":  "image/jpeg",
		"a.gif":  "image/gif",
		"a.mp4":  "video/mp4",
		"a.blob": "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSaveLocal(t *testing.T) {
	withFixedClock(t)
	dir := t.TempDir()

	p := New([]byte("payload-bytes"), KindImage, ".png")
	path, err := p.SaveLocal(dir)
	if err != nil {
		t.Fatalf("SaveLocal failed: %v", err)
	}
	if filepath.Base(path) != p.Filename {
		t.Errorf("saved as %q, want filename %q", path, p.Filename)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(data) != "payload-bytes" {
		t.Errorf("saved content = %q", data)
	}
}
