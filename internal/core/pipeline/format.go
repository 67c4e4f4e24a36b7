package pipeline

import (
	"strings"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

const (
	checkedMarker   = "☑"
	uncheckedMarker = "☐"
)

// Format turns each content line of a todo/task note into an unchecked item.
// Other categories pass through untouched.
func Format(note domain.ExtractedNote) domain.ExtractedNote {
	if !isChecklistCategory(note.Category) {
		return note
	}

	lines := strings.Split(note.Content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, checkedMarker) || strings.HasPrefix(trimmed, uncheckedMarker) {
			continue
		}
		lines[i] = uncheckedMarker + " " + line
	}
	note.Content = strings.Join(lines, "\n")
	return note
}

func isChecklistCategory(category string) bool {
	return strings.EqualFold(category, "todo") || strings.EqualFold(category, "task")
}
