package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dubstitch/internal/config"
	"dubstitch/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobStarted(context.Background(), "Example"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func capture(t *testing.T, send func(svc notifications.Service) error) captured {
	t.Helper()
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := send(notifications.NewService(&cfg)); err != nil {
		t.Fatalf("send: %v", err)
	}
	return got
}

func TestNotifyJobStarted(t *testing.T) {
	got := capture(t, func(svc notifications.Service) error {
		return svc.NotifyJobStarted(context.Background(), "Episode 1")
	})
	if got.title != "Dubstitch - Job Started" {
		t.Fatalf("title = %q", got.title)
	}
	if got.message != "Started dubbing: Episode 1" {
		t.Fatalf("message = %q", got.message)
	}
	if got.tags != "dubstitch,job,started" {
		t.Fatalf("tags = %q", got.tags)
	}
}

func TestNotifyStage(t *testing.T) {
	got := capture(t, func(svc notifications.Service) error {
		return svc.NotifyStage(context.Background(), "Episode 1", "synthesis")
	})
	if got.title != "Dubstitch - Progress" {
		t.Fatalf("title = %q", got.title)
	}
	if got.message != "Episode 1: synthesis" {
		t.Fatalf("message = %q", got.message)
	}
	if got.priority != "low" {
		t.Fatalf("priority = %q", got.priority)
	}
}

func TestNotifyJobCompletedIncludesFile(t *testing.T) {
	got := capture(t, func(svc notifications.Service) error {
		return svc.NotifyJobCompleted(context.Background(), "Episode 1", "/media/episode-dubbed.mp4")
	})
	if got.priority != "high" {
		t.Fatalf("priority = %q", got.priority)
	}
	if got.message != "Ready to watch: Episode 1\nFile: /media/episode-dubbed.mp4" {
		t.Fatalf("message = %q", got.message)
	}
}

func TestNotifyErrorIncludesContext(t *testing.T) {
	got := capture(t, func(svc notifications.Service) error {
		return svc.NotifyError(context.Background(), errors.New("stitch failed"), "Episode 1")
	})
	if got.message != "Error with Episode 1: stitch failed" {
		t.Fatalf("message = %q", got.message)
	}
	if got.priority != "high" {
		t.Fatalf("priority = %q", got.priority)
	}
}

func TestNtfyServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
