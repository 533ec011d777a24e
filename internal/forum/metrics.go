package forum

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/pkg/telemetry"
)

type metrics struct {
	threadsCreated    metric.Int64Counter
	commentsAdded     metric.Int64Counter
	likesToggled      metric.Int64Counter
	moderationActions metric.Int64Counter
}

func newMetrics(logger *zap.Logger) *metrics {
	meter := telemetry.Meter()
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Warn("Failed to create counter", zap.String("name", name), zap.Error(err))
			return noop.Int64Counter{}
		}
		return c
	}
	return &metrics{
		threadsCreated:    counter("forum.threads.created", "Threads created"),
		commentsAdded:     counter("forum.comments.added", "Comments added"),
		likesToggled:      counter("forum.likes.toggled", "Likes added or removed"),
		moderationActions: counter("forum.moderation.actions", "Admin moderation actions"),
	}
}
