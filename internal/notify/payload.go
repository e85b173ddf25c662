// Package notify builds webhook notification payloads and posts them to
// the configured endpoint.
package notify

import (
	"time"
	"unicode/utf8"
)

const (
	// MaxDescription bounds the embed description, in bytes, before the
	// truncation marker is appended.
	MaxDescription = 1500

	truncationMarker = "..."

	// EmbedColor is the fixed accent color for every embed.
	EmbedColor = 0x5865F2

	footerText = "📰 Newsletter"

	// NoSubject and UnknownSender replace missing header values.
	NoSubject     = "No Subject"
	UnknownSender = "Unknown Sender"

	// FallbackBody is sent when no readable body could be extracted.
	FallbackBody = "Cannot parse body"
)

// Payload is the JSON document posted to the webhook.
type Payload struct {
	Embeds []Embed `json:"embeds"`
}

// Embed is one notification card.
type Embed struct {
	Title       string      `json:"title"`
	Author      EmbedAuthor `json:"author"`
	Description string      `json:"description"`
	Color       int         `json:"color"`
	Timestamp   string      `json:"timestamp"`
	Footer      EmbedFooter `json:"footer"`
}

// EmbedAuthor names the message sender.
type EmbedAuthor struct {
	Name string `json:"name"`
}

// EmbedFooter carries the fixed footer label.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Format builds the payload for one message. Empty subject and sender
// fall back to the fixed placeholders; the body is truncated to
// MaxDescription on a rune boundary; the timestamp is now in UTC,
// RFC 3339.
func Format(subject, from, body string, now time.Time) Payload {
	if subject == "" {
		subject = NoSubject
	}
	if from == "" {
		from = UnknownSender
	}

	return Payload{
		Embeds: []Embed{{
			Title:       subject,
			Author:      EmbedAuthor{Name: from},
			Description: Truncate(body, MaxDescription),
			Color:       EmbedColor,
			Timestamp:   now.UTC().Format(time.RFC3339),
			Footer:      EmbedFooter{Text: footerText},
		}},
	}
}

// Truncate shortens s to the largest prefix of at most limit bytes that
// ends on a rune boundary, then appends the truncation marker. Strings
// within the limit come back unchanged.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + truncationMarker
}
