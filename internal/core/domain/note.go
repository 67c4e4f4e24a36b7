package domain

import "time"

// MaxImageBytes is the upper bound for a decoded image payload.
const MaxImageBytes = 10 << 20

const (
	DefaultTitle      = "Untitled Note"
	DefaultCategory   = "note"
	DefaultConfidence = 0.8
)

// ImageSource is the raw inbound image as handed over by a transport.
// Exactly one of File or DataURL is expected to be set.
type ImageSource struct {
	File     []byte
	MimeType string
	DataURL  string
}

func (s ImageSource) HasFile() bool {
	return s.File != nil
}

// ImagePayload is the canonical image representation used downstream.
type ImagePayload struct {
	MimeType   string `json:"mime_type"`
	Base64Data string `json:"base64_data"`
}

type ProcessingOptions struct {
	CategoryHints   []string `json:"category_hints"`
	ExtractDates    bool     `json:"extract_dates"`
	ExtractContacts bool     `json:"extract_contacts"`
}

func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		CategoryHints:   []string{},
		ExtractDates:    true,
		ExtractContacts: false,
	}
}

// VisionPrompt bundles the model instruction with the image it refers to.
type VisionPrompt struct {
	Instruction string
	Image       ImagePayload
}

// ExtractedNote is the sanitized output contract. Tags, Dates and Contacts
// carry whatever elements the model produced.
type ExtractedNote struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Tags       []any   `json:"tags"`
	Dates      []any   `json:"dates"`
	Contacts   []any   `json:"contacts"`
	Confidence float64 `json:"confidence"`
	RawText    string  `json:"raw_text"`
}

type ProcessingResult struct {
	Success          bool          `json:"success"`
	Data             ExtractedNote `json:"data"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
}

type ProcessRequest struct {
	RequestID string
	Source    ImageSource
	Options   ProcessingOptions
	StartedAt time.Time
}

// ElapsedMillis returns the non-negative duration between start and now.
func ElapsedMillis(start, now time.Time) int64 {
	if start.IsZero() {
		return 0
	}
	ms := now.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
