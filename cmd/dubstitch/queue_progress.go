package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dubstitch/internal/driver"
	"dubstitch/internal/queue"
)

const progressUpdateTimeout = 5 * time.Second

// stagePercent maps pipeline stages to coarse progress markers for the
// queue's progress column.
var stagePercent = map[string]float64{
	driver.StageTranslation: 10,
	driver.StageSynthesis:   35,
	driver.StageMux:         60,
	driver.StageStitch:      90,
}

// queueProgress forwards pipeline events to the inner notifier and mirrors
// stage transitions into the tracked queue item's progress columns.
type queueProgress struct {
	inner  driver.Notifier
	store  *queue.Store
	logger *slog.Logger

	mu   sync.Mutex
	item *queue.Item
}

func newQueueProgress(inner driver.Notifier, store *queue.Store, logger *slog.Logger) *queueProgress {
	return &queueProgress{inner: inner, store: store, logger: logger}
}

// track switches progress mirroring to the given item; nil detaches.
func (q *queueProgress) track(item *queue.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.item = item
}

func (q *queueProgress) JobStarted(title string) {
	q.inner.JobStarted(title)
}

func (q *queueProgress) StageChanged(title, stage string) {
	q.inner.StageChanged(title, stage)
	q.update(func(item *queue.Item) {
		item.Stage = stage
		item.ProgressMessage = stage
		if pct, ok := stagePercent[stage]; ok && pct > item.ProgressPercent {
			item.ProgressPercent = pct
		}
	})
}

func (q *queueProgress) BatchEncoded(index, published int) {
	q.inner.BatchEncoded(index, published)
	q.update(func(item *queue.Item) {
		item.ProgressMessage = fmt.Sprintf("%d batch(es) published", published)
	})
}

func (q *queueProgress) JobCompleted(title, outputPath string) {
	q.inner.JobCompleted(title, outputPath)
}

func (q *queueProgress) JobFailed(title, reason string) {
	q.inner.JobFailed(title, reason)
}

func (q *queueProgress) update(apply func(*queue.Item)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.item == nil {
		return
	}
	apply(q.item)

	ctx, cancel := context.WithTimeout(context.Background(), progressUpdateTimeout)
	defer cancel()
	if err := q.store.Update(ctx, q.item); err != nil {
		q.logger.Debug("queue progress update failed",
			slog.Int64("item", q.item.ID),
			slog.String("error", err.Error()))
	}
}
