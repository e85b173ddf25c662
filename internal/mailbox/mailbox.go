// Package mailbox wraps go-imap v2 for connecting to the monitored IMAP
// account and operating on one selected folder.
package mailbox

import (
	"context"
	"errors"
	"fmt"
)

// Session is one authenticated, folder-selected connection. All
// operations are sequential and session-exclusive. Any returned error
// invalidates the session: the caller must drop the handle and connect
// again. Sequence numbers are only meaningful within the current
// selection and become stale after reconnect or expunge.
type Session interface {
	// SelectFolder selects the folder subsequent operations act on.
	SelectFolder(name string) error

	// SearchAll returns the sequence numbers of every message in the
	// selected folder, in server order. The result may be empty.
	SearchAll() ([]uint32, error)

	// FetchMessage returns the full raw content of one message without
	// marking it seen. A nil result with a nil error means the server
	// returned nothing for that sequence number; an empty non-nil
	// result means the message exists but carries no readable content.
	FetchMessage(seq uint32) ([]byte, error)

	// MarkDeleted flags the message for removal at the next expunge.
	MarkDeleted(seq uint32) error

	// Expunge permanently removes all messages flagged deleted in this
	// session.
	Expunge() error

	// Logout ends the session cleanly.
	Logout() error
}

// Dialer produces fresh sessions.
type Dialer interface {
	Connect(ctx context.Context) (Session, error)
}

// AuthError indicates the server rejected the configured credentials.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
