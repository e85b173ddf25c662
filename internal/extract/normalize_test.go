package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses newline runs",
			in:   "a\n\n\n\n\nb",
			want: "a\n\nb",
		},
		{
			name: "two newlines stay",
			in:   "a\n\nb",
			want: "a\n\nb",
		},
		{
			name: "strips trailing spaces and tabs",
			in:   "a  \t\nb\t\nc",
			want: "a\nb\nc",
		},
		{
			name: "whitespace-only lines do not hide newline runs",
			in:   "a\n   \n\t\nb",
			want: "a\n\nb",
		},
		{
			name: "trims whole text",
			in:   "\n\n  hello  \n\n",
			want: "hello",
		},
		{
			name: "crlf input",
			in:   "a\r\n\r\n\r\nb\r\n",
			want: "a\n\nb",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "normalization must be idempotent")
		})
	}
}

func TestWrapLeavesShortLinesAlone(t *testing.T) {
	in := "short line\n  indented markdown\n- list item"
	assert.Equal(t, in, Wrap(in, 80))
}

func TestWrapBreaksLongLines(t *testing.T) {
	in := strings.Repeat("alpha ", 40) // 240 chars once joined
	out := Wrap(strings.TrimSpace(in), 80)

	lines := strings.Split(out, "\n")
	assert.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), 80)
	}
	assert.Equal(t, strings.TrimSpace(in), strings.Join(lines, " "))
}

func TestWrapKeepsLongTokensUnsplit(t *testing.T) {
	token := strings.Repeat("x", 120)
	out := Wrap("see "+token+" here", 80)

	assert.Contains(t, out, token)
}

func TestWrapCountsRunes(t *testing.T) {
	// 60 two-byte runes on one line; 120 bytes but only 60 columns.
	in := strings.Repeat("é", 60)
	assert.Equal(t, in, Wrap(in, 80))
}
