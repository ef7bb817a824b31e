package splitters

import (
	"strings"
	"testing"
)

func TestChunksRespectsSizeBound(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 40)
	for chunk := range Chunks(text, 50) {
		if n := len([]rune(chunk)); n > 50 {
			t.Errorf("chunk exceeds bound: %d runes: %q", n, chunk)
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("got blank chunk %q", chunk)
		}
	}
}

func TestChunksRoundTripPreservesWords(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog near the river bank"
	var got []string
	for chunk := range Chunks(text, 20) {
		got = append(got, strings.Fields(chunk)...)
	}
	want := strings.Fields(text)
	if len(got) != len(want) {
		t.Fatalf("word count mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestChunksSplitsOverlongWord(t *testing.T) {
	word := strings.Repeat("x", 45)
	var chunks []string
	for chunk := range Chunks(word, 20) {
		chunks = append(chunks, chunk)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %v", len(chunks), chunks)
	}
	if chunks[0] != strings.Repeat("x", 20) || chunks[2] != strings.Repeat("x", 5) {
		t.Errorf("unexpected split: %v", chunks)
	}
}

func TestChunksIsRestartable(t *testing.T) {
	seq := Chunks("one two three four five six seven eight", 12)
	var first, second []string
	for c := range seq {
		first = append(first, c)
	}
	for c := range seq {
		second = append(second, c)
	}
	if len(first) != len(second) {
		t.Fatalf("re-iteration changed length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs on re-iteration: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestChunksEmptyInput(t *testing.T) {
	for range Chunks("   \n\t ", 50) {
		t.Fatal("expected no chunks for blank input")
	}
}

func TestChunksArabicText(t *testing.T) {
	text := "الذكاء الاصطناعي هو محاكاة عمليات الذكاء البشري بواسطة الآلات"
	var rebuilt []string
	for chunk := range Chunks(text, 25) {
		if n := len([]rune(chunk)); n > 25 {
			t.Errorf("chunk exceeds bound: %d runes", n)
		}
		rebuilt = append(rebuilt, strings.Fields(chunk)...)
	}
	if want := strings.Fields(text); len(rebuilt) != len(want) {
		t.Errorf("word count mismatch: got %d want %d", len(rebuilt), len(want))
	}
}

func TestWordSplitterIndices(t *testing.T) {
	s := NewWordSplitter(15)
	chunks := s.Split("one two three four five six seven", "doc.txt")
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	seen := make(map[string]bool)
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.TotalChunks != len(chunks) {
			t.Errorf("chunk %d reports total %d, want %d", i, c.TotalChunks, len(chunks))
		}
		if c.Source != "doc.txt" {
			t.Errorf("chunk %d source = %q", i, c.Source)
		}
		if c.ID == "" || seen[c.ID] {
			t.Errorf("chunk %d has missing or duplicate ID %q", i, c.ID)
		}
		seen[c.ID] = true
	}
}

func TestWordSplitterBlankText(t *testing.T) {
	if chunks := NewWordSplitter(100).Split("", "x"); chunks != nil {
		t.Errorf("expected nil for empty text, got %d chunks", len(chunks))
	}
}
