package pipeline

import (
	"fmt"
	"strings"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

// BuildPrompt renders the model instruction for one image. The output depends
// only on its arguments.
func BuildPrompt(image domain.ImagePayload, opts domain.ProcessingOptions) domain.VisionPrompt {
	return domain.VisionPrompt{
		Instruction: buildInstruction(opts),
		Image:       image,
	}
}

func buildInstruction(opts domain.ProcessingOptions) string {
	var b strings.Builder

	b.WriteString(`You are reading a photo of a handwritten note.
Transcribe the handwriting accurately, then organize it into a structured record.

`)
	if len(opts.CategoryHints) > 0 {
		fmt.Fprintf(&b, "Classify the note using exactly one of these categories: %s.\n", quoteList(opts.CategoryHints))
	} else {
		b.WriteString("Infer the single category that best fits the note (for example: note, todo, meeting, idea, recipe, shopping).\n")
	}
	if opts.ExtractDates {
		b.WriteString("Extract every date or time mentioned in the note.\n")
	}
	if opts.ExtractContacts {
		b.WriteString("Extract every contact detail mentioned in the note (names, phone numbers, email addresses).\n")
	}

	b.WriteString(`
Rules:
- Keep the transcription faithful to the handwriting, including line breaks.
- Give a confidence score between 0 and 1 for the overall transcription.
- Provide 3 to 5 short lowercase tags.
- Return only valid JSON, no additional text.

Respond with this JSON structure:
`)
	b.WriteString(responseSchema(opts))
	return b.String()
}

func responseSchema(opts domain.ProcessingOptions) string {
	dates := `[]`
	if opts.ExtractDates {
		dates = `["dates found in the note, as written"]`
	}
	contacts := `[]`
	if opts.ExtractContacts {
		contacts = `["contact details found in the note"]`
	}

	return fmt.Sprintf(`{
  "title": "short descriptive title",
  "content": "cleaned-up note content with line breaks preserved",
  "category": "category label",
  "tags": ["tag1", "tag2", "tag3"],
  "dates": %s,
  "contacts": %s,
  "confidence": 0.95,
  "raw_text": "exact transcription of the handwriting"
}`, dates, contacts)
}

func quoteList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("%q", v))
	}
	return strings.Join(quoted, ", ")
}
