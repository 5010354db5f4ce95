// Package service is the foreground orchestration layer. It pulls from the
// feeds, owns every write to the ledger, and answers the API's queries.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Notifier delivers operator alerts. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// publish marshals v and sends it on channel. Failures are logged only: the
// bus is a side channel and never blocks reconciliation or submission.
func publish(ctx context.Context, bus busPublisher, logger *slog.Logger, channel string, v any) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		logger.WarnContext(ctx, "marshal bus event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// appendStream is publish for the durable ledger stream.
func appendStream(ctx context.Context, bus streamAppender, logger *slog.Logger, stream string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.WarnContext(ctx, "marshal stream entry failed", slog.String("error", err.Error()))
		return
	}
	if err := bus.StreamAppend(ctx, stream, payload); err != nil {
		logger.WarnContext(ctx, "stream append failed",
			slog.String("stream", stream),
			slog.String("error", err.Error()),
		)
	}
}

type streamAppender interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

type busPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

func notify(ctx context.Context, n Notifier, logger *slog.Logger, event, title, msg string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event, title, msg); err != nil {
		logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
