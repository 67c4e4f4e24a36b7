package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

type eventRepoFake struct {
	saved []domain.ProcessingEvent
	err   error
}

func (f *eventRepoFake) EnsureSchema(context.Context) error { return nil }

func (f *eventRepoFake) Save(_ context.Context, event domain.ProcessingEvent) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, event)
	return nil
}

func (f *eventRepoFake) CountByStatus(context.Context) ([]domain.StatusCount, error) {
	return nil, nil
}

func TestRecordEventSavesValidEvent(t *testing.T) {
	repo := &eventRepoFake{}
	uc := NewRecordEventUseCase(repo, time.Second)

	err := uc.Record(context.Background(), domain.ProcessingEvent{
		ID:               "evt-1",
		Status:           domain.EventStatusSuccess,
		ProcessingTimeMs: -3,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(repo.saved) != 1 || repo.saved[0].ProcessingTimeMs != 0 {
		t.Fatalf("unexpected saved events: %+v", repo.saved)
	}
}

func TestRecordEventRejectsInvalidEvents(t *testing.T) {
	repo := &eventRepoFake{}
	uc := NewRecordEventUseCase(repo, 0)

	for _, event := range []domain.ProcessingEvent{
		{Status: domain.EventStatusSuccess},
		{ID: "evt-2", Status: "pending"},
	} {
		err := uc.Record(context.Background(), event)
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", event, err)
		}
	}
	if len(repo.saved) != 0 {
		t.Fatalf("invalid events must not be saved")
	}
}

func TestRecordEventWrapsRepositoryError(t *testing.T) {
	repo := &eventRepoFake{err: errors.New("db down")}
	uc := NewRecordEventUseCase(repo, time.Second)

	err := uc.Record(context.Background(), domain.ProcessingEvent{ID: "evt-3", Status: domain.EventStatusError})
	if err == nil || !errors.Is(err, repo.err) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
}
