package territory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Flusher periodically persists a Service running with a positive flush
// interval, and performs a final save when stopped. It satisfies server.Service.
type Flusher struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
	done     chan struct{}
	once     sync.Once
}

// NewFlusher creates a stopped Flusher.
//
// Precondition: svc and logger are non-nil.
// Postcondition: An interval <= 0 disables ticking; Stop still saves.
func NewFlusher(svc *Service, interval time.Duration, logger *zap.Logger) *Flusher {
	return &Flusher{svc: svc, interval: interval, logger: logger, done: make(chan struct{})}
}

// Start blocks, flushing every interval, until Stop is called.
func (f *Flusher) Start() error {
	if f.interval <= 0 {
		<-f.done
		return nil
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Failures are logged by the service and retried on the next tick.
			_ = f.svc.Flush(context.Background())
		case <-f.done:
			return nil
		}
	}
}

// Stop ends the ticking loop and saves any pending state. Calling Stop is idempotent.
func (f *Flusher) Stop() {
	f.once.Do(func() {
		close(f.done)
		if err := f.svc.Flush(context.Background()); err != nil {
			f.logger.Error("final flush failed", zap.Error(err))
		}
	})
}
