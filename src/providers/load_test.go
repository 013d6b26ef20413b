package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingIsEmpty(t *testing.T) {
	f, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(f.Providers) != 0 {
		t.Errorf("missing file yielded %d providers", len(f.Providers))
	}
}

func TestLoadFileParsesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - name: s3-main
    type: s3
    s3:
      endpoint: minio:9000
      access_key: ak
      secret_key: sk
      bucket: captures
      public_base_url: https://cdn.example.com
  - name: imagehost
    type: http
    enabled: false
    http:
      endpoint: https://img.example.com/upload
      auth_token: tok
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(f.Providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(f.Providers))
	}

	s3 := f.Providers[0]
	if s3.Name != "s3-main" || s3.Type != "s3" || s3.S3 == nil {
		t.Errorf("first entry parsed wrong: %+v", s3)
	}
	if s3.S3.Bucket != "captures" || s3.S3.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("s3 settings parsed wrong: %+v", s3.S3)
	}

	h := f.Providers[1]
	if h.Name != "imagehost" || h.HTTP == nil || h.HTTP.AuthToken != "tok" {
		t.Errorf("http entry parsed wrong: %+v", h)
	}
	if h.Enabled == nil || *h.Enabled {
		t.Errorf("imagehost should be disabled")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("providers: [not: {valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed YAML should error")
	}
}

func TestBuildRejectsBadEntries(t *testing.T) {
	cases := []Entry{
		{Name: "", Type: "s3"},
		// missing backend settings, unknown type, empty endpoint
		{Name: "x", Type: "s3"},
		{Name: "x", Type: "http"},
		{Name: "x", Type: "ftp"},
		{Name: "x", Type: "http", HTTP: &HTTPSettings{Endpoint: ""}},
	}
	for i, entry := range cases {
		if _, err := build(entry); err == nil {
			t.Errorf("case %d: expected build error for %+v", i, entry)
		}
	}
}

func TestHTTPProviderUpload(t *testing.T) {
	var gotAuth, gotField string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("bad multipart body: %v", err)
		}
		for field := range r.MultipartForm.File {
			gotField = field
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://img.example.com/abc"})
	}))
	defer srv.Close()

	p, err := NewHTTPProvider("imagehost", HTTPSettings{Endpoint: srv.URL, AuthToken: "tok"})
	if err != nil {
		t.Fatal(err)
	}

	url, err := p.Upload(context.Background(), "capture_x.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "https://img.example.com/abc" {
		t.Errorf("url = %q", url)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotField != "file" {
		t.Errorf("form field = %q, want default 'file'", gotField)
	}
}

func TestHTTPProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider("imagehost", HTTPSettings{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Upload(context.Background(), "x.png", nil); err == nil {
		t.Error("rejected upload should error")
	}

	// Success status but no URL in the body.
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv2.Close()
	p2, _ := NewHTTPProvider("imagehost2", HTTPSettings{Endpoint: srv2.URL})
	if _, err := p2.Upload(context.Background(), "x.png", nil); err == nil {
		t.Error("missing URL should error")
	}
}
