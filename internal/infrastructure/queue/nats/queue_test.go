package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/nats-io/nats.go"
)

func TestHandleMessageDecodesEvent(t *testing.T) {
	var got domain.ProcessingEvent
	ok := handleMessage(context.Background(), []byte(`{"id":"evt-1","provider":"ollama:llava","status":"success","processing_time_ms":42}`),
		func(_ context.Context, event domain.ProcessingEvent) error {
			got = event
			return nil
		})
	if !ok {
		t.Fatalf("expected message to be handled")
	}
	if got.ID != "evt-1" || got.ProcessingTimeMs != 42 || got.Status != domain.EventStatusSuccess {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestHandleMessageDropsMalformedPayload(t *testing.T) {
	called := false
	handler := func(context.Context, domain.ProcessingEvent) error {
		called = true
		return nil
	}
	if handleMessage(context.Background(), []byte("not json"), handler) {
		t.Fatalf("malformed payload must not be reported as handled")
	}
	if handleMessage(context.Background(), []byte(`{"status":"success"}`), handler) {
		t.Fatalf("event without id must not be reported as handled")
	}
	if called {
		t.Fatalf("handler must not run for dropped payloads")
	}
}

func TestHandleMessageReportsHandlerFailure(t *testing.T) {
	ok := handleMessage(context.Background(), []byte(`{"id":"evt-2"}`), func(context.Context, domain.ProcessingEvent) error {
		return errors.New("db down")
	})
	if ok {
		t.Fatalf("expected handler failure to be reported")
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(fmt.Errorf("publish: %w", nats.ErrNoServers))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}

	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(plain); got != plain {
		t.Fatalf("non-retryable error must pass through, got %v", got)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestClassifyNATSErrorPayloadErrorsAreFinal(t *testing.T) {
	class := classifyNATSError(fmt.Errorf("nats publish: %w", nats.ErrMaxPayload))
	if class.Retryable || class.RecordFailure {
		t.Fatalf("payload errors must not be retried or recorded: %+v", class)
	}
	if wrapTemporaryIfNeeded(nats.ErrMaxPayload) != nats.ErrMaxPayload {
		t.Fatalf("payload errors must not become temporary")
	}
}

func TestClassifyNATSErrorIgnoresCancellation(t *testing.T) {
	class := classifyNATSError(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not be retried or recorded: %+v", class)
	}
}
