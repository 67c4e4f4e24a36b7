package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

type visionFake struct {
	reply  string
	err    error
	prompt domain.VisionPrompt
	calls  int
	block  bool
}

func (f *visionFake) Name() string { return "fake" }

func (f *visionFake) Generate(ctx context.Context, prompt domain.VisionPrompt) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type storeFake struct {
	key      string
	mimeType string
	data     []byte
	err      error
}

func (f *storeFake) Put(_ context.Context, key, mimeType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.key = key
	f.mimeType = mimeType
	f.data = data
	return "mem://" + key, nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.ProcessingEvent
	err    error
}

func (f *publisherFake) PublishNoteProcessed(_ context.Context, event domain.ProcessingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type observerFake struct {
	statuses []string
}

func (f *observerFake) ObserveProcessing(_, status, _ string, _ time.Duration) {
	f.statuses = append(f.statuses, status)
}

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func newTestUseCase(vision *visionFake, options ProcessNoteOptions) *ProcessNoteUseCase {
	uc := NewProcessNoteUseCase(vision, options)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	uc.now = func() time.Time { return base.Add(250 * time.Millisecond) }
	return uc
}

func TestProcessEndToEndTodoWithoutDates(t *testing.T) {
	vision := &visionFake{reply: "Sure!\n{\"title\":\"Groceries\",\"content\":\"milk\\neggs\",\"category\":\"todo\"}"}
	publisher := &publisherFake{}
	observer := &observerFake{}
	uc := newTestUseCase(vision, ProcessNoteOptions{Publisher: publisher, Observer: observer})

	result, err := uc.Process(context.Background(), domain.ProcessRequest{
		RequestID: "req-1",
		Source:    domain.ImageSource{DataURL: pngDataURL},
		Options:   domain.ProcessingOptions{ExtractDates: false},
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !strings.Contains(vision.prompt.Instruction, `"dates": []`) {
		t.Fatalf("expected always-empty dates placeholder in prompt")
	}
	if vision.prompt.Image.MimeType != "image/png" || vision.prompt.Image.Base64Data != "iVBORw0KGgo=" {
		t.Fatalf("unexpected image in prompt: %+v", vision.prompt.Image)
	}

	if !result.Success {
		t.Fatalf("expected success")
	}
	if result.ProcessingTimeMs != 250 {
		t.Fatalf("expected 250ms, got %d", result.ProcessingTimeMs)
	}
	note := result.Data
	if note.Content != "☐ milk\n☐ eggs" {
		t.Fatalf("expected checklist content, got %q", note.Content)
	}
	if note.RawText != "milk\neggs" {
		t.Fatalf("expected raw text to keep unformatted content, got %q", note.RawText)
	}
	if len(note.Dates) != 0 || len(note.Contacts) != 0 || note.Dates == nil || note.Contacts == nil {
		t.Fatalf("expected empty dates/contacts, got %#v %#v", note.Dates, note.Contacts)
	}
	if note.Confidence != 0.8 {
		t.Fatalf("expected default confidence, got %v", note.Confidence)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Status != domain.EventStatusSuccess || event.Category != "todo" || event.RequestID != "req-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(observer.statuses) != 1 || observer.statuses[0] != domain.EventStatusSuccess {
		t.Fatalf("unexpected observations: %v", observer.statuses)
	}
}

func TestProcessInvalidInputSkipsVisionCall(t *testing.T) {
	vision := &visionFake{reply: "{}"}
	publisher := &publisherFake{}
	uc := newTestUseCase(vision, ProcessNoteOptions{Publisher: publisher})

	_, err := uc.Process(context.Background(), domain.ProcessRequest{
		Source: domain.ImageSource{DataURL: "data:text/plain;base64,aGVsbG8="},
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if vision.calls != 0 {
		t.Fatalf("vision model must not be called for invalid input")
	}
	if len(publisher.events) != 1 || publisher.events[0].ErrorCode != domain.CodeInvalidInput {
		t.Fatalf("expected error event, got %+v", publisher.events)
	}
}

func TestProcessMalformedReplyIsNotRetried(t *testing.T) {
	vision := &visionFake{reply: "no braces here"}
	uc := newTestUseCase(vision, ProcessNoteOptions{})

	_, err := uc.Process(context.Background(), domain.ProcessRequest{
		Source: domain.ImageSource{DataURL: pngDataURL},
	})
	if !domain.IsKind(err, domain.ErrUpstreamFormat) {
		t.Fatalf("expected ErrUpstreamFormat, got %v", err)
	}
	if vision.calls != 1 {
		t.Fatalf("expected single vision call, got %d", vision.calls)
	}
}

func TestProcessClassifiesVisionErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "quota message", err: errors.New("googleapi: Error 429: Resource has been exhausted (e.g. check quota)."), want: domain.CodeQuotaExceeded},
		{name: "temporary kind", err: domain.WrapError(domain.ErrTemporary, "ollama generate", errors.New("502")), want: domain.CodeUpstreamUnavailable},
		{name: "other", err: errors.New("boom"), want: domain.CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := newTestUseCase(&visionFake{err: tt.err}, ProcessNoteOptions{})
			_, err := uc.Process(context.Background(), domain.ProcessRequest{
				Source: domain.ImageSource{DataURL: pngDataURL},
			})
			if got := domain.ErrorCode(err); got != tt.want {
				t.Fatalf("expected code %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestProcessVisionTimeoutIsTemporary(t *testing.T) {
	uc := newTestUseCase(&visionFake{block: true}, ProcessNoteOptions{VisionTimeout: 10 * time.Millisecond})

	_, err := uc.Process(context.Background(), domain.ProcessRequest{
		Source: domain.ImageSource{DataURL: pngDataURL},
	})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary on timeout, got %v", err)
	}
}

func TestProcessStashesImageAndToleratesStoreFailure(t *testing.T) {
	store := &storeFake{}
	uc := newTestUseCase(&visionFake{reply: `{"title":"a"}`}, ProcessNoteOptions{ImageStore: store})

	_, err := uc.Process(context.Background(), domain.ProcessRequest{
		Source: domain.ImageSource{File: []byte{1, 2, 3}, MimeType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !strings.HasSuffix(store.key, ".jpg") || store.mimeType != "image/jpeg" || len(store.data) != 3 {
		t.Fatalf("unexpected stash: key=%s mime=%s bytes=%d", store.key, store.mimeType, len(store.data))
	}

	failing := newTestUseCase(&visionFake{reply: `{"title":"a"}`}, ProcessNoteOptions{ImageStore: &storeFake{err: errors.New("disk full")}})
	if _, err := failing.Process(context.Background(), domain.ProcessRequest{
		Source: domain.ImageSource{DataURL: pngDataURL},
	}); err != nil {
		t.Fatalf("storage failure must not fail processing, got %v", err)
	}
}

func TestProcessPublishFailureDoesNotFailRequest(t *testing.T) {
	uc := newTestUseCase(&visionFake{reply: `{"title":"a"}`}, ProcessNoteOptions{Publisher: &publisherFake{err: errors.New("nats down")}})

	result, err := uc.Process(context.Background(), domain.ProcessRequest{
		Source: domain.ImageSource{DataURL: pngDataURL},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Data.Title != "a" {
		t.Fatalf("unexpected title %q", result.Data.Title)
	}
}
