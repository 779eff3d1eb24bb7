package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smukkama/energy-workshop/internal/events"
)

// retryDelay is the pause after a failed consume
var retryDelay = time.Second

// EventHandler acts on one mirrored event
type EventHandler func(e events.Event) error

// Relay consumes mirrored events and passes the types accepted by wants to
// handle, until ctx is cancelled. Skipped and undecodable messages are
// committed. A message whose handler failed is left uncommitted; the reader
// has already moved past it, so it is only redelivered after a restart.
func Relay(ctx context.Context, source MessageSource, wants func(events.Type) bool, handle EventHandler, logger *slog.Logger) {
	for {
		msg, err := source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to consume message", "error", err)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		if !wants(events.Type(EventType(msg))) {
			commit(ctx, source, msg, logger)
			continue
		}

		e, err := events.Decode(msg.Value)
		if err != nil {
			logger.Warn("skipping undecodable event", "offset", msg.Offset, "error", err)
			commit(ctx, source, msg, logger)
			continue
		}

		if err := handle(*e); err != nil {
			logger.Error("failed to handle event", "type", e.Type, "offset", msg.Offset, "error", err)
			continue
		}
		commit(ctx, source, msg, logger)
	}
}

func commit(ctx context.Context, source MessageSource, msg kafka.Message, logger *slog.Logger) {
	if err := source.Commit(ctx, msg); err != nil {
		logger.Warn("failed to commit offset", "offset", msg.Offset, "error", err)
	}
}
