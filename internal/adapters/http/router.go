package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"golang.org/x/time/rate"

	"github.com/kirillkom/handwritten-notes/internal/config"
	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/kirillkom/handwritten-notes/internal/core/pipeline"
	"github.com/kirillkom/handwritten-notes/internal/core/ports"
	"github.com/kirillkom/handwritten-notes/internal/observability/metrics"
)

const (
	// Base64 inflates the image by 4/3; the extra MiB covers options and
	// multipart framing.
	maxRequestBodyBytes = domain.MaxImageBytes*4/3 + 1<<20
	multipartMemory     = 16 << 20
)

type RouterOptions struct {
	Provider   string
	Stats      ports.EventStatsReader
	MCPHandler http.Handler
	Metrics    *metrics.HTTPServerMetrics
	// Observer receives requests rejected before they reach the processor.
	Observer ports.ProcessingObserver
}

type Router struct {
	cfg       config.Config
	processor ports.NoteProcessor
	options   RouterOptions
}

func NewRouter(cfg config.Config, processor ports.NoteProcessor, options RouterOptions) *Router {
	return &Router{
		cfg:       cfg,
		processor: processor,
		options:   options,
	}
}

func (rt *Router) Handler() http.Handler {
	var limiter *rate.Limiter
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := rt.cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst)
	}
	guard := func(next http.Handler) http.Handler {
		wait := time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
		gated := backpressureMiddleware(next, rt.cfg.APIBackpressureMaxInFlight, wait, rt.recordReject)
		return rateLimitMiddleware(gated, limiter, rt.recordReject)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", rt.openAPI)
	mux.Handle("/v1/notes/process", guard(http.HandlerFunc(rt.processNote)))
	mux.HandleFunc("/v1/events/stats", rt.eventStats)
	if rt.options.MCPHandler != nil {
		mux.Handle("/mcp", guard(rt.options.MCPHandler))
	}

	var handler http.Handler = mux
	if rt.options.Metrics != nil {
		mux.Handle("/metrics", rt.options.Metrics.Handler())
		handler = rt.options.Metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) recordReject(reason string) {
	if rt.options.Metrics != nil {
		rt.options.Metrics.RecordTrafficReject(reason)
	}
}

func (rt *Router) observeRejected(startedAt time.Time) {
	if rt.options.Observer != nil {
		rt.options.Observer.ObserveProcessing(rt.options.Provider, domain.EventStatusError, "", time.Since(startedAt))
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": rt.options.Provider,
	})
}

func (rt *Router) openAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	payload, err := openAPIDocumentJSON()
	if err != nil {
		slog.Error("openapi_document_unavailable", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "openapi document unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (rt *Router) processNote(w http.ResponseWriter, r *http.Request) {
	startedAt := time.Now()
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	source, options, err := decodeProcessRequest(r)
	if err != nil {
		rt.observeRejected(startedAt)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Success:          false,
				Error:            fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Code:             domain.CodeInvalidInput,
				ProcessingTimeMs: domain.ElapsedMillis(startedAt, time.Now()),
			})
			return
		}
		writeProcessError(w, err, startedAt)
		return
	}

	result, err := rt.processor.Process(r.Context(), domain.ProcessRequest{
		RequestID: requestIDFromContext(r.Context()),
		Source:    source,
		Options:   options,
		StartedAt: startedAt,
	})
	if err != nil {
		writeProcessError(w, err, startedAt)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type processJSONRequest struct {
	Image   string                   `json:"image"`
	Options *pipeline.OptionsPayload `json:"options"`
}

func decodeProcessRequest(r *http.Request) (domain.ImageSource, domain.ProcessingOptions, error) {
	mediaType := "application/json"
	if contentType := strings.TrimSpace(r.Header.Get("Content-Type")); contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return domain.ImageSource{}, domain.ProcessingOptions{}, domain.WrapError(domain.ErrInvalidInput, "decode request", err)
		}
		mediaType = parsed
	}

	switch mediaType {
	case "multipart/form-data":
		return decodeMultipart(r)
	case "application/json":
		return decodeJSON(r)
	default:
		return domain.ImageSource{}, domain.ProcessingOptions{}, domain.WrapError(
			domain.ErrInvalidInput,
			"decode request",
			fmt.Errorf("unsupported content type %q", mediaType),
		)
	}
}

func decodeMultipart(r *http.Request) (domain.ImageSource, domain.ProcessingOptions, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.ImageSource{}, domain.ProcessingOptions{}, err
		}
		return domain.ImageSource{}, domain.ProcessingOptions{}, domain.WrapError(domain.ErrInvalidInput, "parse multipart", err)
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	options, err := pipeline.ParseOptions(r.PostFormValue("options"))
	if err != nil {
		return domain.ImageSource{}, domain.ProcessingOptions{}, err
	}

	var header *multipart.FileHeader
	if r.MultipartForm != nil {
		if parts := r.MultipartForm.File["image"]; len(parts) > 0 {
			header = parts[0]
		}
	}
	if header == nil {
		return domain.ImageSource{}, domain.ProcessingOptions{}, domain.WrapError(
			domain.ErrInvalidInput,
			"parse multipart",
			errors.New("multipart field 'image' is required"),
		)
	}

	var file openapi_types.File
	file.InitFromMultipart(header)
	data, err := file.Bytes()
	if err != nil {
		return domain.ImageSource{}, domain.ProcessingOptions{}, domain.WrapError(domain.ErrInvalidInput, "read image part", err)
	}
	if data == nil {
		data = []byte{}
	}

	mimeType := header.Header.Get("Content-Type")
	if len(data) > 0 && (strings.TrimSpace(mimeType) == "" || mimeType == "application/octet-stream") {
		mimeType = http.DetectContentType(data)
	}
	return domain.ImageSource{File: data, MimeType: mimeType}, options, nil
}

func decodeJSON(r *http.Request) (domain.ImageSource, domain.ProcessingOptions, error) {
	var req processJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.ImageSource{}, domain.ProcessingOptions{}, err
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && strings.HasPrefix(typeErr.Field, "options") {
			return domain.ImageSource{}, domain.ProcessingOptions{}, domain.WrapError(domain.ErrInvalidOptions, "decode request", err)
		}
		return domain.ImageSource{}, domain.ProcessingOptions{}, domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}

	options := domain.DefaultProcessingOptions()
	if req.Options != nil {
		options = req.Options.Resolve()
	}
	return domain.ImageSource{DataURL: req.Image}, options, nil
}

func (rt *Router) eventStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.options.Stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event stats are disabled"})
		return
	}

	counts, err := rt.options.Stats.CountByStatus(r.Context())
	if err != nil {
		slog.Error("event_stats_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
