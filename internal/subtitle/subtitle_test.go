package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/h2adev/reelforge/internal/transcribe"
)

func TestGenerateRejectsEmptyWords(t *testing.T) {
	if err := Generate(nil, filepath.Join(t.TempDir(), "out.ass"), Options{}); err == nil {
		t.Fatal("expected error for empty word list")
	}
}

func TestGenerateWritesPlayResFromCanvasOptions(t *testing.T) {
	words := []transcribe.Word{
		{Word: "hello", Start: 0.0, End: 0.3},
		{Word: "world", Start: 0.3, End: 0.6},
	}
	path := filepath.Join(t.TempDir(), "out.ass")
	if err := Generate(words, path, Options{CanvasWidth: 1920, CanvasHeight: 1080}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading ass file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "PlayResX: 1920") || !strings.Contains(content, "PlayResY: 1080") {
		t.Errorf("expected PlayRes to reflect canvas options, got:\n%s", content)
	}
}

func TestChunkWordsBreaksAtSentenceEnd(t *testing.T) {
	words := []transcribe.Word{
		{Word: "Hi"}, {Word: "there."}, {Word: "friend"}, {Word: "welcome"}, {Word: "back"},
	}
	chunks := chunkWords(words, 4)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2 {
		t.Errorf("first chunk should break after sentence end once >=2 words, got len %d", len(chunks[0]))
	}
}

func TestHighlightedTextMarksActiveWord(t *testing.T) {
	chunk := []transcribe.Word{{Word: "foo"}, {Word: "bar"}}
	text := highlightedText(chunk, 1)
	if !strings.Contains(text, "BAR{\\r}") {
		t.Errorf("expected active word BAR to carry highlight+reset codes, got %q", text)
	}
	if !strings.Contains(text, "FOO") {
		t.Errorf("expected inactive word FOO present, got %q", text)
	}
}

func TestFormatTimeHandlesHoursMinutesSeconds(t *testing.T) {
	got := formatTime(3661.25)
	if got != "1:01:01.25" {
		t.Errorf("formatTime(3661.25) = %q, want 1:01:01.25", got)
	}
}
