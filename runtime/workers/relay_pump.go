package workers

import (
	"context"
	"log/slog"

	"clinic-relay/domain/event"
	"clinic-relay/projection"
)

// RelayPumpWorker drains frames pushed by the relay connection into the
// sync engine. The frames channel is closed by the connection reader when
// the socket drops; the worker then finishes cleanly and reconnection is
// the caller's decision.
type RelayPumpWorker struct {
	log    *slog.Logger
	frames <-chan event.Envelope
	engine *projection.Engine
}

func NewRelayPumpWorker(log *slog.Logger, frames <-chan event.Envelope, engine *projection.Engine) *RelayPumpWorker {
	return &RelayPumpWorker{log: log, frames: frames, engine: engine}
}

func (w *RelayPumpWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay frame pump")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-w.frames:
			if !ok {
				w.log.Info("Relay connection closed")
				return nil
			}
			w.engine.ApplyRelayEvent(env)
		}
	}
}
