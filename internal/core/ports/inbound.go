package ports

import (
	"context"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

// NoteProcessor is the inbound contract shared by the HTTP and MCP adapters.
type NoteProcessor interface {
	Process(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessingResult, error)
}

// EventStatsReader exposes aggregated processing history.
type EventStatsReader interface {
	CountByStatus(ctx context.Context) ([]domain.StatusCount, error)
}
