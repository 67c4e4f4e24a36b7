package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/kirillkom/handwritten-notes/internal/core/pipeline"
	"github.com/kirillkom/handwritten-notes/internal/core/ports"
)

const defaultVisionTimeout = 60 * time.Second

type ProcessNoteOptions struct {
	VisionTimeout time.Duration
	ImageStore    ports.ImageStore
	Publisher     ports.EventPublisher
	Observer      ports.ProcessingObserver
}

type ProcessNoteUseCase struct {
	vision        ports.VisionModel
	visionTimeout time.Duration
	store         ports.ImageStore
	publisher     ports.EventPublisher
	observer      ports.ProcessingObserver
	now           func() time.Time
}

func NewProcessNoteUseCase(vision ports.VisionModel, options ProcessNoteOptions) *ProcessNoteUseCase {
	timeout := options.VisionTimeout
	if timeout <= 0 {
		timeout = defaultVisionTimeout
	}
	return &ProcessNoteUseCase{
		vision:        vision,
		visionTimeout: timeout,
		store:         options.ImageStore,
		publisher:     options.Publisher,
		observer:      options.Observer,
		now:           time.Now,
	}
}

func (uc *ProcessNoteUseCase) Process(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessingResult, error) {
	startedAt := req.StartedAt
	if startedAt.IsZero() {
		startedAt = uc.now()
	}

	note, err := uc.run(ctx, req)
	elapsed := domain.ElapsedMillis(startedAt, uc.now())
	uc.report(ctx, req.RequestID, note, elapsed, err)
	if err != nil {
		return nil, err
	}

	return &domain.ProcessingResult{
		Success:          true,
		Data:             note,
		ProcessingTimeMs: elapsed,
	}, nil
}

func (uc *ProcessNoteUseCase) run(ctx context.Context, req domain.ProcessRequest) (domain.ExtractedNote, error) {
	image, err := pipeline.Normalize(req.Source)
	if err != nil {
		return domain.ExtractedNote{}, err
	}

	uc.stashImage(ctx, req.RequestID, image)

	prompt := pipeline.BuildPrompt(image, req.Options)

	reply, err := uc.generate(ctx, prompt)
	if err != nil {
		return domain.ExtractedNote{}, err
	}

	note, err := pipeline.Sanitize(reply)
	if err != nil {
		return domain.ExtractedNote{}, err
	}
	return pipeline.Format(note), nil
}

func (uc *ProcessNoteUseCase) generate(ctx context.Context, prompt domain.VisionPrompt) (string, error) {
	if uc.vision == nil {
		return "", domain.WrapError(domain.ErrTemporary, "vision model call", errors.New("vision model is not configured"))
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.visionTimeout)
	defer cancel()

	reply, err := uc.vision.Generate(callCtx, prompt)
	if err != nil {
		return "", classifyVisionError(ctx, err)
	}
	return reply, nil
}

// classifyVisionError maps a model call failure onto the error taxonomy.
// Quota exhaustion is recognised by the word "quota" in the message.
func classifyVisionError(parent context.Context, err error) error {
	switch {
	case domain.IsKind(err, domain.ErrQuotaExceeded), domain.IsKind(err, domain.ErrTemporary):
		return err
	case strings.Contains(strings.ToLower(err.Error()), "quota"):
		return domain.WrapError(domain.ErrQuotaExceeded, "vision model call", err)
	case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		return domain.WrapError(domain.ErrTemporary, "vision model call", err)
	default:
		return fmt.Errorf("vision model call: %w", err)
	}
}

func (uc *ProcessNoteUseCase) stashImage(ctx context.Context, requestID string, image domain.ImagePayload) {
	if uc.store == nil {
		return
	}

	data, err := base64.StdEncoding.DecodeString(image.Base64Data)
	if err != nil {
		slog.Warn("image_stash_skipped", "request_id", requestID, "error", err)
		return
	}

	key := uuid.NewString() + imageExtension(image.MimeType)
	location, err := uc.store.Put(ctx, key, image.MimeType, data)
	if err != nil {
		slog.Warn("image_stash_failed", "request_id", requestID, "key", key, "error", err)
		return
	}
	slog.Debug("image_stashed", "request_id", requestID, "location", location, "bytes", len(data))
}

func (uc *ProcessNoteUseCase) report(ctx context.Context, requestID string, note domain.ExtractedNote, elapsedMs int64, processErr error) {
	provider := "none"
	if uc.vision != nil {
		provider = uc.vision.Name()
	}

	event := domain.ProcessingEvent{
		ID:               uuid.NewString(),
		RequestID:        requestID,
		Provider:         provider,
		Status:           domain.EventStatusSuccess,
		Category:         note.Category,
		Confidence:       note.Confidence,
		ProcessingTimeMs: elapsedMs,
		OccurredAt:       uc.now().UTC(),
	}
	if processErr != nil {
		event.Status = domain.EventStatusError
		event.ErrorCode = domain.ErrorCode(processErr)
		event.Category = ""
		event.Confidence = 0
	}

	if uc.observer != nil {
		uc.observer.ObserveProcessing(provider, event.Status, event.Category, time.Duration(elapsedMs)*time.Millisecond)
	}
	if uc.publisher == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := uc.publisher.PublishNoteProcessed(publishCtx, event); err != nil {
		slog.Warn("processing_event_publish_failed", "request_id", requestID, "event_id", event.ID, "error", err)
	}
}

func imageExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
