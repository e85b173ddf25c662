package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	newlineRuns        = regexp.MustCompile(`\n{3,}`)
	trailingWhitespace = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Normalize applies the whitespace rules for notification bodies: CRLF
// becomes LF, trailing spaces and tabs are stripped from every line, runs
// of three or more newlines collapse to exactly two, and the whole text
// is trimmed. Trailing whitespace is stripped before collapsing so that
// lines of only spaces cannot hide a newline run; this also makes the
// function idempotent.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingWhitespace.ReplaceAllString(s, "")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Wrap re-wraps lines longer than width to the given column using greedy
// word wrapping. Shorter lines are left untouched and tokens longer than
// width stay unsplit. Width is counted in runes.
func Wrap(s string, width int) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}

	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{line}
	}

	var wrapped []string
	cur := words[0]
	curLen := utf8.RuneCountInString(cur)
	for _, word := range words[1:] {
		wordLen := utf8.RuneCountInString(word)
		if curLen+1+wordLen <= width {
			cur += " " + word
			curLen += 1 + wordLen
		} else {
			wrapped = append(wrapped, cur)
			cur = word
			curLen = wordLen
		}
	}
	return append(wrapped, cur)
}
