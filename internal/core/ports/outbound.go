package ports

import (
	"context"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

// VisionModel sends a prompt with its image to a remote model and returns
// the raw text reply.
type VisionModel interface {
	Name() string
	Generate(ctx context.Context, prompt domain.VisionPrompt) (string, error)
}

// ImageStore keeps uploaded images for a limited time. Expiry is owned by
// the storage backend.
type ImageStore interface {
	Put(ctx context.Context, key, mimeType string, data []byte) (string, error)
}

// EventPublisher emits processing events for downstream consumers.
type EventPublisher interface {
	PublishNoteProcessed(ctx context.Context, event domain.ProcessingEvent) error
}

// EventSubscriber consumes processing events until ctx is done.
type EventSubscriber interface {
	SubscribeNoteProcessed(ctx context.Context, handler func(context.Context, domain.ProcessingEvent) error) error
}

// EventRepository persists processing events.
type EventRepository interface {
	EventStatsReader
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, event domain.ProcessingEvent) error
}

// ProcessingObserver receives one observation per pipeline run.
type ProcessingObserver interface {
	ObserveProcessing(provider, status, category string, duration time.Duration)
}
