package queue_test

import (
	"context"
	"testing"

	"dubstitch/internal/queue"
	"dubstitch/internal/testsupport"
)

func TestNewJobAndGet(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	item := testsupport.NewJob(t, store, "/media/episode.mkv", "/media/episode.srt")
	if item.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("status = %s", item.Status)
	}

	got, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SourceVideo != "/media/episode.mkv" || got.SubtitlePath != "/media/episode.srt" {
		t.Fatalf("got %+v", got)
	}
}

func TestNewJobRequiresPaths(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.NewJob(context.Background(), "", "/s.srt", ""); err == nil {
		t.Fatal("expected error for empty source video")
	}
}

func TestGetByIDMissing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.GetByID(context.Background(), 42); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestNextPendingClaimsOldest(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/media/a.mkv", "/media/a.srt")
	testsupport.NewJob(t, store, "/media/b.mkv", "/media/b.srt")

	claimed, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("claimed = %+v, want item %d", claimed, first.ID)
	}
	if claimed.Status != queue.StatusRunning {
		t.Fatalf("claimed status = %s", claimed.Status)
	}

	persisted, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if persisted.Status != queue.StatusRunning {
		t.Fatalf("persisted status = %s", persisted.Status)
	}
}

func TestNextPendingEmptyQueue(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	claimed, err := store.NextPending(context.Background())
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed = %+v, want nil", claimed)
	}
}

func TestUpdatePersistsProgress(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	item := testsupport.NewJob(t, store, "/media/a.mkv", "/media/a.srt")
	item.Status = queue.StatusCompleted
	item.Stage = "stitch"
	item.ProgressPercent = 100
	item.OutputPath = "/out/a-dubbed.mp4"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusCompleted || got.OutputPath != "/out/a-dubbed.mp4" {
		t.Fatalf("got %+v", got)
	}
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.NewJob(t, store, "/media/a.mkv", "/media/a.srt")
	item.Status = queue.Status("exploded")
	if err := store.Update(context.Background(), item); err == nil {
		t.Fatal("expected invalid-status error")
	}
}

func TestResetStuckRunning(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewJob(t, store, "/media/a.mkv", "/media/a.srt")
	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("NextPending: %v", err)
	}

	reset, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("ResetStuckRunning: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d", reset)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 || stats.Running != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRetryFailedClearsError(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	item := testsupport.NewJob(t, store, "/media/a.mkv", "/media/a.srt")
	item.Status = queue.StatusFailed
	item.ErrorMessage = "all batches failed"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d", retried)
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusPending || got.ErrorMessage != "" {
		t.Fatalf("got %+v", got)
	}
}

func TestClearByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	done := testsupport.NewJob(t, store, "/media/a.mkv", "/media/a.srt")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}
	testsupport.NewJob(t, store, "/media/b.mkv", "/media/b.srt")

	removed, err := store.Clear(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SourceVideo != "/media/b.mkv" {
		t.Fatalf("remaining = %+v", remaining)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewJob(t, store, "/media/a.mkv", "/media/a.srt")
	failed := testsupport.NewJob(t, store, "/media/b.mkv", "/media/b.srt")
	failed.Status = queue.StatusFailed
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	items, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Status != queue.StatusFailed {
		t.Fatalf("items = %+v", items)
	}
}
