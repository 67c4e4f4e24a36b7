package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/config"
	"github.com/kirillkom/handwritten-notes/internal/core/ports"
	"github.com/kirillkom/handwritten-notes/internal/core/usecase"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/queue/nats"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/resilience"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/storage/s3"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/vision/gemini"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/vision/ollama"
)

type App struct {
	Config config.Config

	Vision    ports.VisionModel
	ProcessUC *usecase.ProcessNoteUseCase
	Stats     ports.EventStatsReader

	closeFns []func()
}

type Options struct {
	ClientName      string
	Observer        ports.ProcessingObserver
	BreakerObserver resilience.StateObserver
}

// New wires the note processing service used by the API and MCP binaries.
func New(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	app := &App{Config: cfg}
	executor := resilience.NewExecutor(resilienceConfig(cfg))
	if options.BreakerObserver != nil {
		executor.WithStateObserver(options.BreakerObserver)
	}

	vision, err := app.newVisionModel(ctx, executor)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Vision = vision

	store, err := app.newImageStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	var publisher ports.EventPublisher
	if cfg.EventsPublishEnabled {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ClientName:         options.ClientName,
			ResilienceExecutor: executor,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		app.onClose(queue.Close)
		publisher = queue
	}

	if cfg.EventStatsEnabled {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
		repo, err := ensureEventRepository(ctx, db)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Stats = repo
	}

	app.ProcessUC = usecase.NewProcessNoteUseCase(vision, usecase.ProcessNoteOptions{
		VisionTimeout: time.Duration(cfg.VisionTimeoutSeconds) * time.Second,
		ImageStore:    store,
		Publisher:     publisher,
		Observer:      options.Observer,
	})
	return app, nil
}

func (a *App) newVisionModel(ctx context.Context, executor *resilience.Executor) (ports.VisionModel, error) {
	switch a.Config.VisionProvider {
	case "gemini":
		client, err := gemini.New(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel, gemini.Options{
			Temperature:        float32(a.Config.GeminiTemperature),
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini vision model: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		return client, nil
	case "ollama":
		return ollama.NewWithOptions(a.Config.OllamaURL, a.Config.OllamaVisionModel, ollama.Options{
			HTTPTimeout:        time.Duration(a.Config.OllamaHTTPTimeoutSeconds) * time.Second,
			ResilienceExecutor: executor,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", a.Config.VisionProvider)
	}
}

func (a *App) newImageStore(ctx context.Context) (ports.ImageStore, error) {
	ttlDays := a.Config.StorageTTLDays
	if ttlDays <= 0 {
		ttlDays = 1
	}

	switch a.Config.StorageBackend {
	case "", "none":
		return nil, nil
	case "localfs":
		storage, err := localfs.New(a.Config.StoragePath, time.Duration(ttlDays)*24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("init local image storage: %w", err)
		}
		return storage, nil
	case "s3":
		storage, err := s3.New(ctx, s3.Config{
			Endpoint:        a.Config.S3Endpoint,
			Region:          a.Config.S3Region,
			Bucket:          a.Config.S3Bucket,
			Prefix:          a.Config.S3Prefix,
			AccessKeyID:     a.Config.S3AccessKeyID,
			SecretAccessKey: a.Config.S3SecretAccessKey,
			TTLDays:         ttlDays,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 image storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.Config.StorageBackend)
	}
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

type Worker struct {
	Config config.Config

	Subscriber ports.EventSubscriber
	Repo       ports.EventRepository

	closeFn func()
}

// NewWorker wires the event consumer that persists processing events.
func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo, err := ensureEventRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName: "handwritten-notes-worker",
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event subscriber: %w", err)
	}

	return &Worker{
		Config:     cfg,
		Subscriber: queue,
		Repo:       repo,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func ensureEventRepository(ctx context.Context, db *sql.DB) (*postgres.EventRepository, error) {
	repo := postgres.NewEventRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Debug("event_schema_ready")
	return repo, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceRetryMaxAttempts > 0 {
		out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	}
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	if cfg.ResilienceBreakerOpenSeconds > 0 {
		out.BreakerOpenTimeout = time.Duration(cfg.ResilienceBreakerOpenSeconds) * time.Second
	}
	return out
}
