package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "unlimited", tp.TruncateText("unlimited", 0))
	assert.Equal(t, "hello"+TruncationMarker, tp.TruncateText("hello world", 5))
}

func TestTruncateTextKeepsRunesWhole(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	// "é" is two bytes, a cut at 2 would split the second one
	out := tp.TruncateText("aéé", 2)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "a"+TruncationMarker, out)
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	assert.Equal(t, "abc", tp.SanitizeUTF8("a\xffb\xfec"))
	// Decomposed e + combining acute composes to a single rune
	assert.Equal(t, "\u00e9", tp.SanitizeUTF8("e\u0301"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	out := tp.ProcessText("ab\xffcdef", 3)
	assert.Equal(t, "abc"+TruncationMarker, out)
}

func TestFormatHeaders(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	headers := map[string][]string{
		"Subject":  {"Win a prize"},
		"Received": {"from a", "from b"},
		"From":     {"spammer@example.com"},
	}
	want := strings.Join([]string{
		"From: spammer@example.com",
		"Received: from a",
		"Received: from b",
		"Subject: Win a prize",
	}, "\n") + "\n"

	assert.Equal(t, want, tp.FormatHeaders(headers, 0))
	assert.Empty(t, tp.FormatHeaders(nil, 0))
	assert.True(t, strings.HasSuffix(tp.FormatHeaders(headers, 10), TruncationMarker))
}
