// Package mcpadapter exposes note processing as a Model Context Protocol tool.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/kirillkom/handwritten-notes/internal/core/pipeline"
	"github.com/kirillkom/handwritten-notes/internal/core/ports"
)

const (
	ServerName      = "handwritten-notes"
	ProcessToolName = "process_handwritten_note"
)

type Server struct {
	processor ports.NoteProcessor
	mcp       *server.MCPServer
}

func NewServer(processor ports.NoteProcessor, version string) *Server {
	s := &Server{
		processor: processor,
		mcp: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.mcp.AddTool(processTool(), s.handleProcess)
	return s
}

func processTool() mcp.Tool {
	return mcp.NewTool(ProcessToolName,
		mcp.WithDescription("Extract a structured note (title, content, category, tags, dates, contacts, confidence, raw text) from a photo of a handwritten note."),
		mcp.WithString("image",
			mcp.Required(),
			mcp.Description("Image as a data URL (data:image/png;base64,...) or bare base64 together with mime_type."),
		),
		mcp.WithString("mime_type",
			mcp.Description("MIME type of a bare base64 image, e.g. image/jpeg."),
		),
		mcp.WithArray("category_hints",
			mcp.Description("Allowed category labels. When empty the model picks a category freely."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithBoolean("extract_dates",
			mcp.Description("Extract dates mentioned in the note."),
			mcp.DefaultBool(true),
		),
		mcp.WithBoolean("extract_contacts",
			mcp.Description("Extract contact details mentioned in the note."),
			mcp.DefaultBool(false),
		),
	)
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving the protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) handleProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	startedAt := time.Now()
	requestID := uuid.NewString()

	image, err := request.RequireString("image")
	if err != nil {
		return toolError(domain.WrapError(domain.ErrInvalidInput, "read tool arguments", err)), nil
	}
	dataURL, err := toDataURL(image, request.GetString("mime_type", ""))
	if err != nil {
		return toolError(err), nil
	}

	options := pipeline.NewOptions(
		request.GetStringSlice("category_hints", nil),
		request.GetBool("extract_dates", true),
		request.GetBool("extract_contacts", false),
	)

	result, err := s.processor.Process(ctx, domain.ProcessRequest{
		RequestID: requestID,
		Source:    domain.ImageSource{DataURL: dataURL},
		Options:   options,
		StartedAt: startedAt,
	})
	if err != nil {
		slog.Warn("mcp_tool_failed",
			"tool", ProcessToolName,
			"request_id", requestID,
			"code", domain.ErrorCode(err),
			"processing_time_ms", domain.ElapsedMillis(startedAt, time.Now()),
			"error", err,
		)
		return toolError(err), nil
	}

	payload, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal extracted note: %w", err)
	}
	slog.Info("mcp_tool_completed", "tool", ProcessToolName, "request_id", requestID, "processing_time_ms", result.ProcessingTimeMs)
	return mcp.NewToolResultText(string(payload)), nil
}

// toDataURL accepts either a data URL or bare base64 with an explicit MIME
// type.
func toDataURL(image, mimeType string) (string, error) {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		return image, nil
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "read tool arguments",
			errors.New("mime_type is required when image is bare base64"))
	}
	return "data:" + mimeType + ";base64," + image, nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(domain.ErrorCode(err) + ": " + err.Error())
}
