package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Name() string {
	return "ollama:" + c.model
}

// Generate sends the instruction together with the base64 image to the
// multimodal /api/generate endpoint.
func (c *Client) Generate(ctx context.Context, prompt domain.VisionPrompt) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt.Instruction,
		"images": []string{prompt.Image.Base64Data},
		"stream": false,
		"options": map[string]any{
			"temperature": 0.1,
		},
	}

	reply, err := resilience.Call(ctx, c.executor, "ollama.generate", func(callCtx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return reply, nil
}
