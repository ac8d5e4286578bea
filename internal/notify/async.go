package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Async fires notifications in the background so a slow or failing sink
// never holds up a request.
type Async struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewAsync(n Notifier, timeout time.Duration, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{notifier: n, timeout: timeout, logger: logger}
}

func (a *Async) Send(e Event) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.notifier.Notify(ctx, e); err != nil {
			a.logger.Warn("notification failed",
				"session_id", e.SessionID,
				"event", e.Type,
				"error", err,
			)
		}
	}()
}

// Wait blocks until in-flight notifications finish, for graceful shutdown.
func (a *Async) Wait() {
	a.wg.Wait()
}
