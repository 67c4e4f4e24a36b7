package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/kirillkom/handwritten-notes/internal/infrastructure/resilience"
)

const systemInstruction = "You extract structured data from photos of handwritten notes. Reply with a single JSON object."

type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	executor    *resilience.Executor
}

type Options struct {
	Temperature        float32
	ResilienceExecutor *resilience.Executor
}

func New(ctx context.Context, apiKey, model string, options Options) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	temperature := options.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}
	return &Client{
		client:      cl,
		model:       strings.TrimSpace(model),
		temperature: temperature,
		executor:    options.ResilienceExecutor,
	}, nil
}

func (c *Client) Name() string {
	return "gemini:" + c.model
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Generate(ctx context.Context, prompt domain.VisionPrompt) (string, error) {
	image, err := base64.StdEncoding.DecodeString(prompt.Image.Base64Data)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "gemini generate", err)
	}

	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(c.temperature)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	parts := []genai.Part{
		genai.Text(prompt.Instruction),
		genai.Blob{MIMEType: prompt.Image.MimeType, Data: image},
	}

	reply, err := resilience.Call(ctx, c.executor, "gemini.generate", func(callCtx context.Context) (string, error) {
		resp, err := m.GenerateContent(callCtx, parts...)
		if err != nil {
			return "", err
		}
		return firstText(resp), nil
	}, classifyGeminiError)
	if err != nil {
		return "", wrapGeminiError(err)
	}
	return reply, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
