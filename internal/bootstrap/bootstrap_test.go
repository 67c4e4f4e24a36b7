package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/config"
)

func TestNewWiresOllamaWithLocalStorage(t *testing.T) {
	cfg := config.Config{
		VisionProvider:       "ollama",
		OllamaURL:            "http://localhost:11434",
		OllamaVisionModel:    "llava:13b",
		VisionTimeoutSeconds: 5,
		StorageBackend:       "localfs",
		StoragePath:          t.TempDir(),
		StorageTTLDays:       1,
	}

	app, err := New(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Vision.Name() != "ollama:llava:13b" {
		t.Fatalf("unexpected provider %q", app.Vision.Name())
	}
	if app.ProcessUC == nil {
		t.Fatalf("expected process use case")
	}
	if app.Stats != nil {
		t.Fatalf("stats must stay disabled by default")
	}
}

func TestNewRejectsUnknownProviderAndBackend(t *testing.T) {
	if _, err := New(context.Background(), config.Config{VisionProvider: "tesseract"}, Options{}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}

	cfg := config.Config{VisionProvider: "ollama", StorageBackend: "ftp"}
	if _, err := New(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected error for unknown storage backend")
	}
}

func TestNewRequiresGeminiKey(t *testing.T) {
	if _, err := New(context.Background(), config.Config{VisionProvider: "gemini"}, Options{}); err == nil {
		t.Fatalf("expected error for missing gemini api key")
	}
}

func TestResilienceConfigAppliesOverrides(t *testing.T) {
	out := resilienceConfig(config.Config{
		ResilienceBreakerEnabled:     true,
		ResilienceRetryMaxAttempts:   2,
		ResilienceBreakerMinRequests: 10,
		ResilienceBreakerOpenSeconds: 5,
	})
	if out.RetryMaxAttempts != 2 || out.BreakerMinRequests != 10 || out.BreakerOpenTimeout != 5*time.Second || !out.BreakerEnabled {
		t.Fatalf("unexpected resilience config: %+v", out)
	}

	def := resilienceConfig(config.Config{})
	if def.RetryMaxAttempts != 1 || def.BreakerEnabled {
		t.Fatalf("expected single attempt with breaker disabled, got %+v", def)
	}
}
