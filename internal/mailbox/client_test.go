package mailbox_test

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imnyang/newsletter/internal/config"
	"github.com/imnyang/newsletter/internal/mailbox"
	"github.com/imnyang/newsletter/tests/testutil"
)

const (
	testUser = "bot@example.org"
	testPass = "hunter2"
)

func startServer(t *testing.T) string {
	t.Helper()

	user := imapmemserver.NewUser(testUser, testPass)
	require.NoError(t, user.Create("INBOX", nil))

	memServer := imapmemserver.New()
	memServer.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(conn *imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memServer.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() { _ = server.Serve(ln) }()

	return ln.Addr().String()
}

func appendMessage(t *testing.T, addr, raw string) {
	t.Helper()

	c, err := imapclient.DialInsecure(addr, nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Login(testUser, testPass).Wait())

	appendCmd := c.Append("INBOX", int64(len(raw)), nil)
	_, err = appendCmd.Write([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, appendCmd.Close())
	_, err = appendCmd.Wait()
	require.NoError(t, err)

	require.NoError(t, c.Logout().Wait())
}

func testClient(t *testing.T, addr, password string) *mailbox.Client {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := config.IMAPConfig{
		Server:   host,
		Port:     port,
		Username: testUser,
		Password: password,
		Folder:   "INBOX",
		Security: config.SecurityInsecure,
	}
	return mailbox.NewClient(cfg, testutil.DiscardLogger())
}

func TestSessionLifecycle(t *testing.T) {
	addr := startServer(t)
	appendMessage(t, addr, "From: a@b.com\r\nSubject: first\r\n\r\nbody one\r\n")
	appendMessage(t, addr, "From: c@d.com\r\nSubject: second\r\n\r\nbody two\r\n")

	sess, err := testClient(t, addr, testPass).Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, sess.SelectFolder("INBOX"))

	seqs, err := sess.SearchAll()
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2}, seqs)

	raw, err := sess.FetchMessage(1)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: first")
	assert.Contains(t, string(raw), "body one")

	require.NoError(t, sess.MarkDeleted(1))
	require.NoError(t, sess.Expunge())

	// The second message takes over sequence number 1 after the expunge.
	seqs, err = sess.SearchAll()
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, seqs)

	raw, err = sess.FetchMessage(1)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: second")

	require.NoError(t, sess.Logout())
}

func TestSearchAllEmptyFolder(t *testing.T) {
	addr := startServer(t)

	sess, err := testClient(t, addr, testPass).Connect(context.Background())
	require.NoError(t, err)
	defer sess.Logout()

	require.NoError(t, sess.SelectFolder("INBOX"))

	seqs, err := sess.SearchAll()
	require.NoError(t, err)
	assert.Empty(t, seqs)
}

func TestFetchVanishedMessage(t *testing.T) {
	addr := startServer(t)

	sess, err := testClient(t, addr, testPass).Connect(context.Background())
	require.NoError(t, err)
	defer sess.Logout()

	require.NoError(t, sess.SelectFolder("INBOX"))

	raw, err := sess.FetchMessage(99)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestConnectBadCredentials(t *testing.T) {
	addr := startServer(t)

	_, err := testClient(t, addr, "wrong").Connect(context.Background())
	require.Error(t, err)
	assert.True(t, mailbox.IsAuthError(err))

	var authErr *mailbox.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, testUser, authErr.Username)
}

func TestConnectRefused(t *testing.T) {
	// Grab a port that is guaranteed to be closed.
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = testClient(t, addr, testPass).Connect(context.Background())
	require.Error(t, err)
	assert.False(t, mailbox.IsAuthError(err))
}

func TestSelectMissingFolder(t *testing.T) {
	addr := startServer(t)

	sess, err := testClient(t, addr, testPass).Connect(context.Background())
	require.NoError(t, err)
	defer sess.Logout()

	assert.Error(t, sess.SelectFolder("NoSuchFolder"))
}
