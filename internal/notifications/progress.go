package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const fireTimeout = 10 * time.Second

// Progress adapts Service to the pipeline's fire-and-forget event surface:
// each event is delivered on its own goroutine and delivery failures are
// logged, never surfaced, so notifications cannot stall or fail a job.
type Progress struct {
	svc    Service
	logger *slog.Logger
}

// NewProgress wraps a service for use as the pipeline notifier.
func NewProgress(svc Service, logger *slog.Logger) *Progress {
	return &Progress{svc: svc, logger: logger}
}

func (p *Progress) JobStarted(title string) {
	p.fire("job started", func(ctx context.Context) error {
		return p.svc.NotifyJobStarted(ctx, title)
	})
}

func (p *Progress) StageChanged(title, stage string) {
	p.fire("stage changed", func(ctx context.Context) error {
		return p.svc.NotifyStage(ctx, title, stage)
	})
}

func (p *Progress) BatchEncoded(index, published int) {
	p.fire("batch encoded", func(ctx context.Context) error {
		return p.svc.NotifyBatchEncoded(ctx, index, published)
	})
}

func (p *Progress) JobCompleted(title, outputPath string) {
	p.fire("job completed", func(ctx context.Context) error {
		return p.svc.NotifyJobCompleted(ctx, title, outputPath)
	})
}

func (p *Progress) JobFailed(title, reason string) {
	p.fire("job failed", func(ctx context.Context) error {
		return p.svc.NotifyError(ctx, fmt.Errorf("%s", reason), title)
	})
}

func (p *Progress) fire(event string, notify func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
		defer cancel()
		if err := notify(ctx); err != nil {
			p.logger.Debug("notification delivery failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}()
}
