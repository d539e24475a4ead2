package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/richxcame/parking-drivetime/pkg/logger"
	"go.uber.org/zap"
)

// TaskContext holds the request values carried into background work
type TaskContext struct {
	CorrelationID string
	StartTime     time.Time
	TaskName      string
}

// CaptureContext captures the current context values for async propagation
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext creates a detached context with the captured values
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	return ctx
}

// Every runs fn each interval until ctx is done. A failing or panicking run is
// logged without stopping later runs.
// It returns a channel closed once the loop has exited.
func Every(ctx context.Context, taskName string, interval time.Duration, fn func(ctx context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce(ctx, CaptureContext(ctx, taskName), fn)
			}
		}
	}()
	return done
}

func runOnce(ctx context.Context, tc TaskContext, fn func(ctx context.Context) error) {
	defer recoverWithLogging(tc)

	if err := fn(ctx); err != nil {
		logger.WarnContext(ctx, "periodic task failed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
			zap.Error(err),
		)
	}
}

// recoverWithLogging recovers from panics and logs them with context
func recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(tc.NewContext(), "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
