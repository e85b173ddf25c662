// Package extract turns raw message bytes into the plain-text rendering
// used for notifications. It walks the MIME tree, prefers plain-text
// parts over HTML, and normalizes whitespace exactly once on the way out.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Encodings still common in newsletter mail.
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// Parse decodes raw RFC 822 bytes into a MIME entity tree. An unknown
// charset is tolerated: the affected body is passed through undecoded
// rather than failing the whole message.
func Parse(raw []byte) (*message.Entity, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	if entity == nil {
		return nil, fmt.Errorf("parsing message: no content")
	}
	return entity, nil
}

// Meta returns the decoded From and Subject header values. The From value
// keeps its full display form ("Name <addr>") so ignore patterns can match
// either part. Missing headers come back empty; placeholders are the
// formatter's concern.
func Meta(entity *message.Entity) (from, subject string) {
	return headerText(entity.Header, "From"), headerText(entity.Header, "Subject")
}

func headerText(h message.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return v
	}
	return h.Get(key)
}

// Text produces the notification body for a parsed message:
//
//  1. the first non-empty text/plain leaf, normalized, if any;
//  2. else the first non-empty text/html leaf converted to a fixed-width
//     plain rendering, normalized;
//  3. else nothing (ok=false) and the caller substitutes a placeholder.
//
// Children of multipart nodes are visited depth-first in original order.
// A failed HTML conversion yields ok=false instead of an error.
func Text(entity *message.Entity) (string, bool) {
	var plain, html string
	collect(entity, &plain, &html)

	if strings.TrimSpace(plain) != "" {
		return Normalize(plain), true
	}
	if strings.TrimSpace(html) != "" {
		text, err := htmlToText(html)
		if err != nil {
			return "", false
		}
		return Normalize(text), true
	}
	return "", false
}

func collect(entity *message.Entity, plain, html *string) {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		if mr == nil {
			return
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				// A malformed part ends the walk; whatever was
				// collected so far still counts.
				break
			}
			if part == nil {
				break
			}
			collect(part, plain, html)
		}
		return
	}

	switch mediaType {
	case "text/plain":
		if strings.TrimSpace(*plain) == "" {
			if b, err := io.ReadAll(entity.Body); err == nil {
				*plain = string(b)
			}
		}
	case "text/html":
		if strings.TrimSpace(*html) == "" {
			if b, err := io.ReadAll(entity.Body); err == nil {
				*html = string(b)
			}
		}
	}
}

const renderWidth = 80

func htmlToText(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting html: %w", err)
	}
	return Wrap(md, renderWidth), nil
}
