package audit

import (
	"context"
	"sync"
	"time"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/pkg/logger"
)

// AsyncLogger writes records off the request path
type AsyncLogger struct {
	service *Service
	log     *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncLogger(service *Service, timeout time.Duration, log *logger.Logger) *AsyncLogger {
	return &AsyncLogger{
		service: service,
		log:     log.With("audit"),
		timeout: timeout,
	}
}

// Record schedules the write and returns immediately. The write outlives
// the request context but is bounded by the configured timeout.
func (l *AsyncLogger) Record(ctx context.Context, record *model.AuditRecord) {
	writeCtx := context.WithoutCancel(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.log.Warn("audit write panicked", "panic", r, "action", record.Action)
			}
		}()

		ctx, cancel := context.WithTimeout(writeCtx, l.timeout)
		defer cancel()

		if err := l.service.Write(ctx, record); err != nil {
			l.log.Error(err, "failed to record audit entry",
				"action", record.Action,
				"actor_id", record.ActorID,
				"status", record.StatusCode,
			)
		}
	}()
}

// Drain waits for in-flight writes until ctx is done
func (l *AsyncLogger) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
