package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

// OptionsPayload is the wire shape of processing options. Both snake_case and
// camelCase keys are accepted; unset fields keep their defaults.
type OptionsPayload struct {
	CategoryHints   []string `json:"category_hints,omitempty"`
	ExtractDates    *bool    `json:"extract_dates,omitempty"`
	ExtractContacts *bool    `json:"extract_contacts,omitempty"`

	CategoryHintsCamel   []string `json:"categoryHints,omitempty"`
	ExtractDatesCamel    *bool    `json:"extractDates,omitempty"`
	ExtractContactsCamel *bool    `json:"extractContacts,omitempty"`
}

// ParseOptions decodes the JSON options text sent next to a multipart image.
func ParseOptions(raw string) (domain.ProcessingOptions, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DefaultProcessingOptions(), nil
	}

	var payload OptionsPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.ProcessingOptions{}, domain.WrapError(domain.ErrInvalidOptions, "parse options", err)
	}
	return payload.Resolve(), nil
}

// Resolve applies defaults and folds camelCase aliases into the options.
func (p OptionsPayload) Resolve() domain.ProcessingOptions {
	opts := domain.DefaultProcessingOptions()

	hints := p.CategoryHints
	if len(hints) == 0 {
		hints = p.CategoryHintsCamel
	}
	opts.CategoryHints = cleanHints(hints)

	if v := firstBool(p.ExtractDates, p.ExtractDatesCamel); v != nil {
		opts.ExtractDates = *v
	}
	if v := firstBool(p.ExtractContacts, p.ExtractContactsCamel); v != nil {
		opts.ExtractContacts = *v
	}
	return opts
}

// NewOptions builds options from already-typed fields, e.g. tool arguments.
func NewOptions(categoryHints []string, extractDates, extractContacts bool) domain.ProcessingOptions {
	return domain.ProcessingOptions{
		CategoryHints:   cleanHints(categoryHints),
		ExtractDates:    extractDates,
		ExtractContacts: extractContacts,
	}
}

func cleanHints(hints []string) []string {
	out := make([]string, 0, len(hints))
	for _, hint := range hints {
		hint = strings.TrimSpace(hint)
		if hint == "" {
			continue
		}
		out = append(out, hint)
	}
	return out
}

func firstBool(values ...*bool) *bool {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
