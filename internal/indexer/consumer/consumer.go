// Package consumer applies snapshot announcements received over Kafka to a
// local indexer.Engine, so searchers sharing a snapshot directory switch to
// a new index as soon as any process persists one.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/kafka"
)

// Adopter is the part of indexer.Engine the handler needs.
type Adopter interface {
	Adopt(ctx context.Context, fingerprint string) error
}

// SnapshotConsumer wraps a Kafka consumer subscribed to announcements.
type SnapshotConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a SnapshotConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *SnapshotConsumer {
	return &SnapshotConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "snapshot-consumer"),
	}
}

// Start consumes announcements until ctx is cancelled.
func (sc *SnapshotConsumer) Start(ctx context.Context) error {
	sc.logger.Info("snapshot consumer starting")
	return sc.consumer.Start(ctx)
}

// HandleSnapshotEvent returns a handler that adopts each announced
// snapshot. Announcements from self are ignored. A snapshot file that is
// missing or unreadable is logged and committed rather than retried, since
// a later announcement supersedes it.
func HandleSnapshotEvent(engine Adopter, self string) kafka.MessageHandler {
	logger := slog.Default().With("component", "snapshot-consumer")
	return kafka.JSONHandler(func(ctx context.Context, event indexer.SnapshotEvent) error {
		if event.Fingerprint == "" {
			logger.Warn("announcement without fingerprint ignored", "origin", event.Origin)
			return nil
		}
		if self != "" && event.Origin == self {
			return nil
		}
		err := engine.Adopt(ctx, event.Fingerprint)
		switch {
		case err == nil:
			logger.Info("snapshot announcement applied",
				"fingerprint", event.Fingerprint,
				"origin", event.Origin,
				"documents", event.Documents,
			)
			return nil
		case errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, os.ErrNotExist):
			logger.Warn("announced snapshot not found in local store",
				"fingerprint", event.Fingerprint, "origin", event.Origin)
			return nil
		default:
			logger.Error("failed to adopt announced snapshot",
				"fingerprint", event.Fingerprint, "error", err)
			return nil
		}
	})
}
