package workers

import (
	"context"
	"log/slog"

	"clinic-relay/projection"
	"clinic-relay/repositories"
)

// FeedPumpWorker drains a storage change-feed subscription into the sync
// engine. One pump per subscription.
type FeedPumpWorker struct {
	log    *slog.Logger
	sub    *repositories.Subscription
	engine *projection.Engine
}

func NewFeedPumpWorker(log *slog.Logger, sub *repositories.Subscription, engine *projection.Engine) *FeedPumpWorker {
	return &FeedPumpWorker{log: log, sub: sub, engine: engine}
}

func (w *FeedPumpWorker) Run(ctx context.Context) error {
	w.log.Info("Starting change-feed pump")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-w.sub.C:
			if !ok {
				w.log.Info("Change-feed subscription closed")
				return nil
			}
			w.engine.ApplyFeedEvent(evt)
		}
	}
}
