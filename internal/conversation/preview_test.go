package conversation

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractPreviewFirstTextBlock(t *testing.T) {
	data := []byte(`{"blocks":[{"type":"text","text":"hello world"},{"type":"text","text":"second"}]}`)
	if got := extractPreview(data); got != "hello world" {
		t.Fatalf("expected first text block, got %q", got)
	}
}

func TestExtractPreviewSkipsEmptyBlocks(t *testing.T) {
	data := []byte(`{"blocks":[{"type":"image"},{"type":"text","text":""},{"type":"text","text":"finally"}]}`)
	if got := extractPreview(data); got != "finally" {
		t.Fatalf("expected first non-empty text, got %q", got)
	}
}

func TestExtractPreviewTruncates(t *testing.T) {
	long := strings.Repeat("a", 80)
	data := []byte(`{"blocks":[{"type":"text","text":"` + long + `"}]}`)

	got := extractPreview(data)
	if utf8.RuneCountInString(got) != PreviewLength+1 {
		t.Fatalf("expected %d runes plus ellipsis, got %d", PreviewLength, utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatal("truncated preview should end with an ellipsis")
	}
	if !strings.HasPrefix(got, strings.Repeat("a", PreviewLength)) {
		t.Fatal("preview should keep the leading runes intact")
	}
}

func TestExtractPreviewCountsRunesNotBytes(t *testing.T) {
	long := strings.Repeat("日", 60)
	data := []byte(`{"blocks":[{"type":"text","text":"` + long + `"}]}`)

	got := extractPreview(data)
	if !strings.HasPrefix(got, strings.Repeat("日", PreviewLength)) || !strings.HasSuffix(got, "…") {
		t.Fatalf("multibyte text should truncate on rune boundaries, got %q", got)
	}
}

func TestExtractPreviewShortTextUntouched(t *testing.T) {
	data := []byte(`{"blocks":[{"type":"text","text":"short"}]}`)
	if got := extractPreview(data); got != "short" {
		t.Fatalf("short text should pass through, got %q", got)
	}
}

func TestExtractPreviewToleratesBadPayloads(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(``),
		[]byte(`not json`),
		[]byte(`{"blocks":"nope"}`),
		[]byte(`{"other":"shape"}`),
		[]byte(`{"blocks":[]}`),
	}
	for _, data := range cases {
		if got := extractPreview(data); got != "" {
			t.Fatalf("payload %q: expected empty preview, got %q", data, got)
		}
	}
}
