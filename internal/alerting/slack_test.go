package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackSender_PostsPayload(t *testing.T) {
	var got slackPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSender(SlackConfig{WebhookURL: srv.URL, PostRate: 1000})
	if err := s.Send(context.Background(), "hello from the watcher"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got.Text != "hello from the watcher" {
		t.Fatalf("expected payload text to round-trip, got %q", got.Text)
	}
	if contentType != "application/json" {
		t.Fatalf("expected application/json, got %q", contentType)
	}
}

func TestSlackSender_NoURLSucceedsWithoutPosting(t *testing.T) {
	s := NewSlackSender(SlackConfig{})
	if s.Configured() {
		t.Fatal("expected sender without URL to report unconfigured")
	}
	if err := s.Send(context.Background(), "local only"); err != nil {
		t.Fatalf("expected local-log fallback to succeed, got %v", err)
	}
}

func TestSlackSender_ErrorStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no service", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlackSender(SlackConfig{WebhookURL: srv.URL, PostRate: 1000})
	err := s.Send(context.Background(), "boom")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected the status code in the error, got %v", err)
	}
}

func TestSlackSender_CanceledContextStopsRateWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSender(SlackConfig{WebhookURL: srv.URL, PostRate: 0.001, PostBurst: 1})
	if err := s.Send(context.Background(), "first"); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, "second"); err == nil {
		t.Fatal("expected an error when the context is canceled during the rate wait")
	}
}
