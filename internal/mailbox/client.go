package mailbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/imnyang/newsletter/internal/config"
)

// Client holds the connection settings for one IMAP account.
type Client struct {
	cfg    config.IMAPConfig
	logger *slog.Logger
}

// NewClient creates a client for the given account settings.
func NewClient(cfg config.IMAPConfig, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Connect dials the server according to the configured security mode and
// authenticates. The returned session owns the connection; the caller is
// responsible for Logout.
func (c *Client) Connect(_ context.Context) (Session, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.cfg.Addr(), err)
	}

	if err := conn.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = conn.Logout().Wait()
		return nil, &AuthError{Username: c.cfg.Username, Err: err}
	}

	c.logger.Debug("imap session established",
		"addr", c.cfg.Addr(), "user", c.cfg.Username, "security", c.cfg.Security)

	return &session{client: conn}, nil
}

func (c *Client) dial() (*imapclient.Client, error) {
	switch c.cfg.Security {
	case config.SecurityStartTLS:
		return imapclient.DialStartTLS(c.cfg.Addr(), nil)
	case config.SecurityInsecure:
		return imapclient.DialInsecure(c.cfg.Addr(), nil)
	default:
		return imapclient.DialTLS(c.cfg.Addr(), nil)
	}
}

type session struct {
	client *imapclient.Client
}

func (s *session) SelectFolder(name string) error {
	if _, err := s.client.Select(name, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", name, err)
	}
	return nil
}

func (s *session) SearchAll() ([]uint32, error) {
	searchData, err := s.client.Search(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	return searchData.AllSeqNums(), nil
}

func (s *session) FetchMessage(seq uint32) ([]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.SeqSetNum(seq), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		// No untagged response for this number; distinguish a vanished
		// message from a failed command.
		if err := fetchCmd.Close(); err != nil {
			return nil, fmt.Errorf("fetching message %d: %w", seq, err)
		}
		return nil, nil
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %d: %w", seq, err)
	}

	raw := buf.FindBodySection(bodySection)
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching message %d: %w", seq, err)
	}
	if raw == nil {
		return []byte{}, nil
	}
	return raw, nil
}

func (s *session) MarkDeleted(seq uint32) error {
	storeCmd := s.client.Store(imap.SeqSetNum(seq), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("marking message %d deleted: %w", seq, err)
	}
	return nil
}

func (s *session) Expunge() error {
	if err := s.client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging: %w", err)
	}
	return nil
}

func (s *session) Logout() error {
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}
