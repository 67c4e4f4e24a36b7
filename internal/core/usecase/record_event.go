package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/kirillkom/handwritten-notes/internal/core/ports"
)

const defaultRecordTimeout = 10 * time.Second

// RecordEventUseCase stores processing events consumed from the queue.
type RecordEventUseCase struct {
	repo    ports.EventRepository
	timeout time.Duration
}

func NewRecordEventUseCase(repo ports.EventRepository, timeout time.Duration) *RecordEventUseCase {
	if timeout <= 0 {
		timeout = defaultRecordTimeout
	}
	return &RecordEventUseCase{repo: repo, timeout: timeout}
}

func (uc *RecordEventUseCase) Record(ctx context.Context, event domain.ProcessingEvent) error {
	if event.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record event", errors.New("event id is empty"))
	}
	switch event.Status {
	case domain.EventStatusSuccess, domain.EventStatusError:
	default:
		return domain.WrapError(domain.ErrInvalidInput, "record event", fmt.Errorf("unknown status %q", event.Status))
	}
	if event.ProcessingTimeMs < 0 {
		event.ProcessingTimeMs = 0
	}

	saveCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	if err := uc.repo.Save(saveCtx, event); err != nil {
		return fmt.Errorf("save event %s: %w", event.ID, err)
	}
	return nil
}
