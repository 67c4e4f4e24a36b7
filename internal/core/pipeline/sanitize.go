package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

// Sanitize extracts the JSON object from a model reply and coerces every
// field of the note to a type-correct value.
func Sanitize(reply string) (domain.ExtractedNote, error) {
	if strings.TrimSpace(reply) == "" {
		return domain.ExtractedNote{}, upstreamFormat(errors.New("empty model reply"))
	}

	span, ok := extractJSONObject(reply)
	if !ok {
		return domain.ExtractedNote{}, upstreamFormat(errors.New("no JSON object in model reply"))
	}

	fields, err := decodeObject(span)
	if err != nil {
		return domain.ExtractedNote{}, upstreamFormat(fmt.Errorf("parse model json: %w", err))
	}
	return coerceNote(fields), nil
}

// decodeObject keeps numbers as json.Number so values outside float64 range
// still decode.
func decodeObject(span string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(span))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return fields, nil
}

// extractJSONObject returns the broadest span from the first '{' to the last '}'.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func coerceNote(fields map[string]any) domain.ExtractedNote {
	content := coerceString(fields["content"], "")
	return domain.ExtractedNote{
		Title:      coerceTitle(fields["title"]),
		Content:    content,
		Category:   coerceString(fields["category"], domain.DefaultCategory),
		Tags:       coerceList(fields["tags"]),
		Dates:      coerceList(fields["dates"]),
		Contacts:   coerceList(fields["contacts"]),
		Confidence: coerceConfidence(fields["confidence"]),
		RawText:    coerceRawText(fields, content),
	}
}

func coerceTitle(v any) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return domain.DefaultTitle
}

func coerceString(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// Models sometimes answer with camelCase rawText instead of raw_text.
func coerceRawText(fields map[string]any, content string) string {
	for _, key := range []string{"raw_text", "rawText"} {
		if s, ok := fields[key].(string); ok {
			return s
		}
	}
	return content
}

func coerceList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{}
}

func coerceConfidence(v any) float64 {
	num, ok := v.(json.Number)
	if !ok {
		return domain.DefaultConfidence
	}
	// Out-of-range values parse to +-Inf with ErrRange and clamp below.
	n, err := strconv.ParseFloat(num.String(), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return domain.DefaultConfidence
	}
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	default:
		return n
	}
}

func upstreamFormat(err error) error {
	return domain.WrapError(domain.ErrUpstreamFormat, "sanitize model reply", err)
}
