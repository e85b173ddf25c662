// Package monitor runs the polling loop that keeps the mailbox and the
// webhook in sync: list, classify, extract, deliver, delete, expunge,
// reconnecting with backoff whenever the session breaks.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/imnyang/newsletter/internal/extract"
	"github.com/imnyang/newsletter/internal/filter"
	"github.com/imnyang/newsletter/internal/journal"
	"github.com/imnyang/newsletter/internal/mailbox"
	"github.com/imnyang/newsletter/internal/notify"
)

// State identifies where the monitor is in its connection lifecycle.
type State int

const (
	// StateDisconnected means no session exists; the monitor waits out
	// the backoff before trying again.
	StateDisconnected State = iota

	// StateConnecting means a connect and login attempt is underway.
	StateConnecting

	// StateActive means a session is live and polling cycles run.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Deliverer posts one payload to the notification sink.
type Deliverer interface {
	Deliver(ctx context.Context, p notify.Payload) error
}

// Recorder persists processing outcomes. A nil Recorder disables
// journaling; the pipeline never reads outcomes back.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

var (
	_ Deliverer = (*notify.Webhook)(nil)
	_ Recorder  = (*journal.Journal)(nil)
)

// Options bundles the monitor's dependencies and tuning.
type Options struct {
	Dialer   mailbox.Dialer
	Webhook  Deliverer
	Recorder Recorder
	Rules    filter.Rules
	Folder   string
	Interval time.Duration
	Backoff  time.Duration
	Logger   *slog.Logger
}

// Monitor owns the never-ending poll loop. It processes messages
// strictly one at a time; a message is deleted if and only if it was
// ignored or its notification was delivered.
type Monitor struct {
	dialer   mailbox.Dialer
	webhook  Deliverer
	recorder Recorder
	rules    filter.Rules
	folder   string
	interval time.Duration
	backoff  time.Duration
	logger   *slog.Logger
}

// New creates a monitor. Zero Interval and Backoff fall back to 5s and
// 10s respectively.
func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 10 * time.Second
	}
	if opts.Folder == "" {
		opts.Folder = "INBOX"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Monitor{
		dialer:   opts.Dialer,
		webhook:  opts.Webhook,
		recorder: opts.Recorder,
		rules:    opts.Rules,
		folder:   opts.Folder,
		interval: opts.Interval,
		backoff:  opts.Backoff,
		logger:   opts.Logger,
	}
}

// Run drives the state machine until ctx is cancelled. Recoverable
// failures never end the loop; every one of them routes back through
// reconnect.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor starting",
		"folder", m.folder, "poll_interval", m.interval, "reconnect_backoff", m.backoff)

	state := StateConnecting
	var sess mailbox.Session

	for ctx.Err() == nil {
		next, nextSess := m.step(ctx, state, sess)
		if next != state {
			m.logger.Debug("state changed", "from", state, "to", next)
		}
		state, sess = next, nextSess
	}

	m.closeSession(sess)
	m.logger.Info("monitor stopped")
}

// step executes one state transition and returns the next state plus
// whatever session that state owns.
func (m *Monitor) step(ctx context.Context, state State, sess mailbox.Session) (State, mailbox.Session) {
	switch state {
	case StateDisconnected:
		m.sleep(ctx, m.backoff)
		return StateConnecting, nil

	case StateConnecting:
		s, err := m.dialer.Connect(ctx)
		if err != nil {
			if mailbox.IsAuthError(err) {
				m.logger.Error("authentication rejected, check credentials",
					"error", err, "retry_in", m.backoff)
			} else {
				m.logger.Error("connection failed", "error", err, "retry_in", m.backoff)
			}
			return StateDisconnected, nil
		}
		m.logger.Info("session established")
		return StateActive, s

	case StateActive:
		if err := m.cycle(ctx, sess); err != nil {
			m.logger.Error("session failed", "error", err, "retry_in", m.backoff)
			m.closeSession(sess)
			return StateDisconnected, nil
		}
		m.sleep(ctx, m.interval)
		return StateActive, sess

	default:
		m.closeSession(sess)
		return StateDisconnected, nil
	}
}

// cycle runs one pass over the folder. Any returned error is
// session-scoped: the caller discards the session and reconnects.
func (m *Monitor) cycle(ctx context.Context, sess mailbox.Session) error {
	if err := sess.SelectFolder(m.folder); err != nil {
		return err
	}

	seqs, err := sess.SearchAll()
	if err != nil {
		return err
	}
	if len(seqs) > 0 {
		m.logger.Info("processing messages", "count", len(seqs))
	}

	for _, seq := range seqs {
		if err := m.process(ctx, sess, seq); err != nil {
			return err
		}
	}

	return sess.Expunge()
}

// process handles a single message through classify, extract, format
// and deliver. Message-scoped problems (vanished message, unparseable
// content, delivery failure) are contained here; only session-scoped
// errors propagate.
func (m *Monitor) process(ctx context.Context, sess mailbox.Session, seq uint32) error {
	raw, err := sess.FetchMessage(seq)
	if err != nil {
		return err
	}
	if raw == nil {
		m.logger.Warn("message vanished before fetch", "seq", seq)
		return nil
	}

	entity, parseErr := extract.Parse(raw)
	var from, subject string
	if parseErr != nil {
		m.logger.Warn("unparseable message", "seq", seq, "error", parseErr)
	} else {
		from, subject = extract.Meta(entity)
	}

	if m.rules.Ignore(from, subject) {
		m.logger.Info("ignoring message", "seq", seq, "from", from, "subject", subject)
		if err := sess.MarkDeleted(seq); err != nil {
			return err
		}
		m.record(ctx, journal.Entry{
			Sender:  from,
			Subject: subject,
			Outcome: journal.OutcomeIgnored,
		})
		return nil
	}

	body := notify.FallbackBody
	if entity != nil {
		if text, ok := extract.Text(entity); ok {
			body = text
		} else {
			m.logger.Warn("no readable body", "seq", seq, "subject", subject)
		}
	}

	payload := notify.Format(subject, from, body, time.Now())
	if err := m.webhook.Deliver(ctx, payload); err != nil {
		m.logger.Error("delivery failed, message kept for retry",
			"seq", seq, "subject", subject, "error", err)
		m.record(ctx, journal.Entry{
			Sender:  from,
			Subject: subject,
			Outcome: journal.OutcomeFailed,
			Detail:  err.Error(),
		})
		return nil
	}

	if err := sess.MarkDeleted(seq); err != nil {
		return err
	}
	m.logger.Info("notification delivered", "seq", seq, "subject", subject)
	m.record(ctx, journal.Entry{
		Sender:  from,
		Subject: subject,
		Outcome: journal.OutcomeDelivered,
	})
	return nil
}

func (m *Monitor) record(ctx context.Context, e journal.Entry) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(ctx, e); err != nil {
		m.logger.Warn("journal write failed", "error", err)
	}
}

func (m *Monitor) closeSession(sess mailbox.Session) {
	if sess == nil {
		return
	}
	if err := sess.Logout(); err != nil {
		m.logger.Debug("logout failed", "error", err)
	}
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
