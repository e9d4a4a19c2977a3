package identity

import (
	"context"
	"time"
)

// HandlerOption tunes the ambient collaborators shared by all command
// handlers: logger, activity sink, clock, and OTP validity window.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	logger   Logger
	activity ActivitySink
	now      func() time.Time
	window   time.Duration
}

func buildHandlerOptions(window time.Duration, opts ...HandlerOption) handlerOptions {
	o := handlerOptions{
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
		window:   window,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithHandlerLogger overrides the default stdout logger.
func WithHandlerLogger(logger Logger) HandlerOption {
	return func(o *handlerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHandlerActivitySink publishes handler lifecycle events to the sink.
func WithHandlerActivitySink(sink ActivitySink) HandlerOption {
	return func(o *handlerOptions) {
		o.activity = normalizeActivitySink(sink)
	}
}

// WithHandlerClock injects a custom clock (useful for tests).
func WithHandlerClock(clock func() time.Time) HandlerOption {
	return func(o *handlerOptions) {
		if clock != nil {
			o.now = clock
		}
	}
}

// WithHandlerOTPWindow overrides the code validity window.
func WithHandlerOTPWindow(window time.Duration) HandlerOption {
	return func(o *handlerOptions) {
		if window > 0 {
			o.window = window
		}
	}
}

// recordActivity publishes the event, logging failures instead of
// propagating them. Auditing never fails the operation it describes.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent, now func() time.Time) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		logger.Warn("activity sink error: %v", err)
	}
}
