package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"screen-capture-upload/src/payload"
)

// HTTPSettings configures a generic multipart-POST image host.
type HTTPSettings struct {
	Endpoint string `yaml:"endpoint"`
	// AuthToken is sent as a bearer token when present.
	AuthToken string `yaml:"auth_token"`
	// Field is the multipart form field name, "file" by default.
	Field string `yaml:"field"`
}

// HTTPProvider posts the payload as multipart form data and expects a JSON
// response carrying the public URL.
type HTTPProvider struct {
	name     string
	settings HTTPSettings
	client   *http.Client
}

type uploadResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

func NewHTTPProvider(name string, settings HTTPSettings) (*HTTPProvider, error) {
	if settings.Endpoint == "" {
		return nil, fmt.Errorf("http provider %q needs an endpoint", name)
	}
	if settings.Field == "" {
		settings.Field = "file"
	}
	return &HTTPProvider{
		name:     name,
		settings: settings,
		client:   &http.Client{},
	}, nil
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(p.settings.Field, filename)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Content-Kind", payload.ContentType(filename))
	if p.settings.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.settings.AuthToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload rejected: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("unexpected response body: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("host reported error: %s", parsed.Error)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("host returned no URL")
	}
	return parsed.URL, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
