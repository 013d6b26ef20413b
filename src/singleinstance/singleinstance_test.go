package singleinstance

import (
	"context"
	"testing"
	"time"
)

func TestServerClientRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback port unavailable in this environment: %v", err)
	}
	defer srv.Close()

	client := NewClient()
	delegatedCh := make(chan string, 1)
	go func() {
		delegated, url, err := client.Delegate(ctx, true)
		if err != nil {
			t.Errorf("client: %v", err)
		}
		if !delegated {
			t.Errorf("expected delegation to the resident")
		}
		delegatedCh <- url
	}()

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !conn.Request().PrintURL {
		t.Errorf("expected a print-URL request")
	}
	if err := conn.RespondSuccess("https://img.example/roundtrip"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	conn.Close()

	select {
	case url := <-delegatedCh:
		if url != "https://img.example/roundtrip" {
			t.Errorf("unexpected delegated URL: %q", url)
		}
	case <-ctx.Done():
		t.Fatal("delegation never completed")
	}
}

func TestDetectResidentFindsServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback port unavailable in this environment: %v", err)
	}
	defer srv.Close()

	port, found := DetectResident(ctx)
	if !found {
		t.Fatal("expected to detect the resident")
	}
	if port != srv.Port() {
		t.Errorf("detected port %d, server bound %d", port, srv.Port())
	}
}
