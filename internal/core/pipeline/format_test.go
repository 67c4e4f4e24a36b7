package pipeline

import (
	"testing"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

func TestFormatTriggersCaseInsensitively(t *testing.T) {
	for _, category := range []string{"Todo", "TASK", "todo"} {
		note := Format(domain.ExtractedNote{Category: category, Content: "milk\neggs"})
		if note.Content != "☐ milk\n☐ eggs" {
			t.Fatalf("category %q: unexpected content %q", category, note.Content)
		}
	}
}

func TestFormatLeavesOtherCategoriesUntouched(t *testing.T) {
	in := domain.ExtractedNote{Category: "note", Content: "milk\neggs"}
	if out := Format(in); out.Content != in.Content {
		t.Fatalf("expected identity for note category, got %q", out.Content)
	}
}

func TestFormatKeepsMarkedAndEmptyLines(t *testing.T) {
	note := Format(domain.ExtractedNote{
		Category: "todo",
		Content:  "☑ call mom\n\n  ☐ pay rent\n  water plants",
	})
	want := "☑ call mom\n\n  ☐ pay rent\n☐   water plants"
	if note.Content != want {
		t.Fatalf("unexpected content:\n got %q\nwant %q", note.Content, want)
	}
}

func TestFormatIsIdempotent(t *testing.T) {
	notes := []domain.ExtractedNote{
		{Category: "task", Content: "one\n two\n\n☑ three\n"},
		{Category: "note", Content: "plain"},
		{Category: "TODO", Content: ""},
	}
	for _, in := range notes {
		once := Format(in)
		twice := Format(once)
		if once.Content != twice.Content {
			t.Fatalf("Format not idempotent: %q vs %q", once.Content, twice.Content)
		}
	}
}
