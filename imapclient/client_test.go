package imapclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmail/go-imap"
)

// script drives the server side of a net.Pipe connection. It runs in its
// own goroutine, so it uses assert rather than require.
type script struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
}

func newTestClient(t *testing.T, run func(s *script)) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	s := &script{t: t, conn: serverConn, br: bufio.NewReader(serverConn)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(s)
	}()
	t.Cleanup(func() {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server script did not finish")
		}
	})

	return New(clientConn, nil)
}

// send writes response lines with CRLF endings.
func (s *script) send(lines ...string) {
	for _, line := range lines {
		if _, err := io.WriteString(s.conn, line+"\r\n"); err != nil {
			s.t.Errorf("server write failed: %v", err)
			return
		}
	}
}

// sendBytewise writes a response one byte at a time, exercising arbitrary
// chunking on the client side.
func (s *script) sendBytewise(lines ...string) {
	for _, line := range lines {
		for _, b := range []byte(line + "\r\n") {
			if _, err := s.conn.Write([]byte{b}); err != nil {
				s.t.Errorf("server write failed: %v", err)
				return
			}
		}
	}
}

// readLine returns the next CRLF-terminated line without its ending.
func (s *script) readLine() string {
	line, err := s.br.ReadString('\n')
	if err != nil {
		s.t.Errorf("server read failed: %v", err)
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

// expect reads one command line, asserts everything after the tag matches
// want, and returns the tag.
func (s *script) expect(want string) string {
	line := s.readLine()
	tag, rest, ok := strings.Cut(line, " ")
	if !ok {
		s.t.Errorf("malformed command line %q", line)
		return ""
	}
	assert.Equal(s.t, want, rest)
	return tag
}

func (s *script) readBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		s.t.Errorf("server read failed: %v", err)
	}
	return buf
}

// login performs the greeting + LOGIN prologue shared by most scripts.
// The tagged OK carries the capability set: without it the client must
// refetch, since post-auth capabilities routinely differ from pre-auth.
func (s *script) login(caps string) {
	s.send("* OK [CAPABILITY " + caps + "] server ready")
	tag := s.expect(`LOGIN "alice" "hunter2"`)
	s.send(tag + " OK [CAPABILITY " + caps + "] LOGIN completed")
}

func loginClient(t *testing.T, c *Client) *AuthenticatedClient {
	t.Helper()
	ac, err := c.Login("alice", "hunter2")
	require.NoError(t, err)
	return ac
}

func TestClient_Greeting(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.send("* OK [CAPABILITY IMAP4rev1 IDLE LITERAL+] server ready")
	})
	require.NoError(t, c.WaitGreeting())

	caps := c.Caps()
	assert.True(t, caps.Has(imap.CapIdle))
	assert.True(t, caps.Has(imap.CapLiteralPlus))
}

func TestClient_GreetingQuirks(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.send("* OK [CAPABILITY IMAP4rev1 IDLE LITERAL+ X-GM-EXT-1] Gimap ready for requests")
	})
	require.NoError(t, c.WaitGreeting())

	quirks := c.Quirks()
	assert.Equal(t, imap.ServerGmail, quirks.Type)
	assert.Equal(t, imap.DialectIMAP4rev1, quirks.Dialect)
	assert.Equal(t, 10*time.Minute, quirks.IdleInterval)
	assert.True(t, quirks.GmailLabels)
	assert.True(t, quirks.LiteralPlus)
}

func TestClient_GreetingBye(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.send("* BYE server shutting down")
	})
	err := c.WaitGreeting()
	var statusErr *imap.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, imap.StatusBye, statusErr.Type)
}

// A malformed greeting must fail greeting waiters, not wedge them.
func TestClient_GreetingMalformed(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.send("garbage")
	})

	done := make(chan error, 1)
	go func() { done <- c.WaitGreeting() }()

	select {
	case err := <-done:
		var protoErr *imap.ProtocolError
		require.ErrorAs(t, err, &protoErr)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitGreeting hung on a malformed greeting")
	}
}

func selectScript(s *script, send func(lines ...string)) {
	tag := s.expect("SELECT INBOX")
	send(
		`* 172 EXISTS`,
		`* 1 RECENT`,
		`* OK [UNSEEN 12] Message 12 is first unseen`,
		`* OK [UIDVALIDITY 3857529045] UIDs valid`,
		`* OK [UIDNEXT 4392] Predicted next UID`,
		`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`,
		`* OK [PERMANENTFLAGS (\Deleted \Seen \*)] Limited`,
		tag+` OK [READ-WRITE] SELECT completed`,
	)
}

func checkSelectData(t *testing.T, data *imap.SelectData) {
	t.Helper()
	assert.Equal(t, uint32(172), data.NumMessages)
	assert.Equal(t, uint32(1), data.NumRecent)
	assert.Equal(t, uint32(3857529045), data.UIDValidity)
	assert.Equal(t, imap.UID(4392), data.UIDNext)
	assert.Equal(t, []imap.Flag{
		imap.FlagAnswered, imap.FlagFlagged, imap.FlagDeleted,
		imap.FlagSeen, imap.FlagDraft,
	}, data.Flags)
	assert.Equal(t, []imap.Flag{
		imap.FlagDeleted, imap.FlagSeen, imap.FlagWildcard,
	}, data.PermanentFlags)
	assert.False(t, data.ReadOnly)
}

func TestClient_LoginSelect(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1 IDLE")
		selectScript(s, s.send)
	})

	ac := loginClient(t, c)
	sc, data, err := ac.Select("INBOX", nil)
	require.NoError(t, err)
	checkSelectData(t, data)
	assert.Equal(t, uint32(172), sc.Mailbox().NumMessages)
}

// When the LOGIN completion carries no capability set, the pre-auth set
// is stale and the client must refetch it.
func TestClient_LoginRefreshesCaps(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.send("* OK [CAPABILITY IMAP4rev1] server ready")
		tag := s.expect(`LOGIN "alice" "hunter2"`)
		s.send(tag + " OK LOGIN completed")

		tag = s.expect("CAPABILITY")
		s.send(
			"* CAPABILITY IMAP4rev1 IDLE UIDPLUS",
			tag+" OK CAPABILITY completed",
		)
	})

	ac := loginClient(t, c)
	caps := ac.Caps()
	assert.True(t, caps.Has(imap.CapIdle))
	assert.True(t, caps.Has(imap.CapUIDPlus))
}

// The select exchange parses identically when the server dribbles the
// responses in one-byte reads.
func TestClient_SelectByteAtATime(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.sendBytewise("* OK [CAPABILITY IMAP4rev1] ready")
		tag := s.expect(`LOGIN "alice" "hunter2"`)
		s.sendBytewise(tag + " OK [CAPABILITY IMAP4rev1] LOGIN completed")
		selectScript(s, s.sendBytewise)
	})

	ac := loginClient(t, c)
	_, data, err := ac.Select("INBOX", nil)
	require.NoError(t, err)
	checkSelectData(t, data)
}

func TestClient_SelectNo(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		tag := s.expect(`SELECT "Archive"`)
		s.send(tag + ` NO [NONEXISTENT] No such mailbox`)

		tag = s.expect("NOOP")
		s.send(tag + " OK NOOP completed")
	})

	ac := loginClient(t, c)
	sc, _, err := ac.Select("Archive", nil)
	assert.Nil(t, sc)

	var statusErr *imap.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, imap.StatusNo, statusErr.Type)
	assert.Equal(t, imap.ResponseCodeNonExistent, statusErr.Code)

	// The connection survives a NO: the next command goes through.
	require.NoError(t, ac.Noop().Wait())
}

func TestClient_Idle(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1 IDLE")
		selectScript(s, s.send)

		tag := s.expect("IDLE")
		s.send("+ idling")
		s.send("* 173 EXISTS")
		line := s.readLine()
		assert.Equal(s.t, "DONE", line)
		s.send(tag + " OK IDLE terminated")
	})

	ac := loginClient(t, c)
	sc, _, err := ac.Select("INBOX", nil)
	require.NoError(t, err)

	idle, err := sc.Idle(context.Background())
	require.NoError(t, err)

	select {
	case update := <-idle.Updates():
		exists, ok := update.(*imap.UnilateralDataExists)
		require.True(t, ok, "want exists update, got %T", update)
		assert.Equal(t, uint32(173), exists.NumMessages)
	case <-time.After(5 * time.Second):
		t.Fatal("no idle update received")
	}

	require.NoError(t, idle.Close())
	assert.Equal(t, uint32(173), sc.Mailbox().NumMessages)
}

func TestClient_IdleWithoutCap(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		selectScript(s, s.send)
	})

	ac := loginClient(t, c)
	sc, _, err := ac.Select("INBOX", nil)
	require.NoError(t, err)

	_, err = sc.Idle(context.Background())
	require.Error(t, err)
}

// A literal over the ceiling must kill the connection based on its
// declared size alone; the payload never arrives.
func TestClient_LiteralCeiling(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		s.expect("NOOP")
		s.send(`* 1 FETCH (BODY[] {209715201}`)
	})

	ac := loginClient(t, c)
	err := ac.Noop().Wait()

	var tooLarge *imap.LiteralTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(209715201), tooLarge.Size)
}

func TestClient_UIDZeroRejected(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		s.expect("FETCH 1 (UID)")
		s.send(`* 1 FETCH (UID 0)`)
	})

	ac := loginClient(t, c)
	sc := &SelectedClient{AuthenticatedClient{c: ac.c}}

	_, err := sc.Fetch(imap.SeqSetNum(1), &imap.FetchOptions{UID: true}).Collect()
	var protoErr *imap.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestClient_ExpungeSeqNumZeroRejected(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		s.expect("NOOP")
		s.send(`* 0 EXPUNGE`)
	})

	ac := loginClient(t, c)
	err := ac.Noop().Wait()
	var protoErr *imap.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

// CRLF in credentials must travel as a literal, not as raw line content.
func TestClient_LoginInjection(t *testing.T) {
	password := "inject\r\nX1 NOOP"

	c := newTestClient(t, func(s *script) {
		s.send("* OK [CAPABILITY IMAP4rev1] ready")
		line := s.readLine()
		tag, rest, _ := strings.Cut(line, " ")
		assert.Equal(s.t, fmt.Sprintf(`LOGIN "alice" {%d}`, len(password)), rest)
		s.send("+ go ahead")
		payload := s.readBytes(len(password))
		assert.Equal(s.t, password, string(payload))
		assert.Equal(s.t, "", s.readLine()) // the command's closing CRLF
		s.send(tag + " OK [CAPABILITY IMAP4rev1] LOGIN completed")
	})

	_, err := c.Login("alice", password)
	require.NoError(t, err)
}

func TestClient_FetchEnvelope(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		tag := s.expect("FETCH 1 (ENVELOPE FLAGS INTERNALDATE RFC822.SIZE UID)")
		s.send(
			`* 1 FETCH (FLAGS (\Seen) INTERNALDATE "17-Jul-1996 02:44:25 -0700" `+
				`RFC822.SIZE 4286 UID 20 ENVELOPE ("Wed, 17 Jul 1996 02:23:25 -0700 (PDT)" `+
				`"IMAP4rev1 WG mtg summary and minutes" `+
				`(("Terry Gray" NIL "gray" "cac.washington.edu")) `+
				`(("Terry Gray" NIL "gray" "cac.washington.edu")) `+
				`(("Terry Gray" NIL "gray" "cac.washington.edu")) `+
				`((NIL NIL "imap" "cac.washington.edu")) `+
				`((NIL NIL "minutes" "CNRI.Reston.VA.US") ("John Klensin" NIL "KLENSIN" "MIT.EDU")) `+
				`NIL NIL "<B27397-0100000@cac.washington.edu>"))`,
			tag+" OK FETCH completed",
		)
	})

	ac := loginClient(t, c)
	sc := &SelectedClient{AuthenticatedClient{c: ac.c}}

	msgs, err := sc.Fetch(imap.SeqSetNum(1), &imap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		InternalDate: true,
		RFC822Size:   true,
		UID:          true,
	}).Collect()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, imap.SeqNum(1), msg.SeqNum)
	assert.Equal(t, imap.UID(20), msg.UID)
	assert.Equal(t, int64(4286), msg.RFC822Size)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, msg.Flags)
	assert.Equal(t, 1996, msg.InternalDate.Year())

	require.NotNil(t, msg.Envelope)
	assert.Equal(t, "IMAP4rev1 WG mtg summary and minutes", msg.Envelope.Subject)
	require.Len(t, msg.Envelope.From, 1)
	assert.Equal(t, "gray@cac.washington.edu", msg.Envelope.From[0].Addr())
	assert.Equal(t, "Terry Gray", msg.Envelope.From[0].Name)
	require.Len(t, msg.Envelope.Cc, 2)
	assert.Equal(t, "<B27397-0100000@cac.washington.edu>", msg.Envelope.MessageID)
}

func TestClient_FetchBodySection(t *testing.T) {
	body := "From: gray@cac.washington.edu\r\n\r\nHello."

	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		tag := s.expect("UID FETCH 20 (BODY.PEEK[])")
		fmt.Fprintf(s.conn, "* 1 FETCH (UID 20 BODY[] {%d}\r\n%s)\r\n", len(body), body)
		s.send(tag + " OK FETCH completed")
	})

	ac := loginClient(t, c)
	sc := &SelectedClient{AuthenticatedClient{c: ac.c}}

	msgs, err := sc.Fetch(imap.UIDSetNum(20), &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{{Peek: true}},
	}).Collect()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, body, string(msgs[0].BodySections["BODY[]"]))
}

func TestClient_ListStatus(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		tag := s.expect(`LIST "" "%"`)
		s.send(
			`* LIST (\HasNoChildren) "/" "INBOX"`,
			`* LIST (\HasChildren \Noselect) "/" "Archive"`,
			tag+" OK LIST completed",
		)

		tag = s.expect(`STATUS "Archive" (MESSAGES UIDNEXT)`)
		s.send(
			`* STATUS Archive (MESSAGES 231 UIDNEXT 44292)`,
			tag+" OK STATUS completed",
		)
	})

	ac := loginClient(t, c)
	mailboxes, err := ac.List("", "%", nil).Collect()
	require.NoError(t, err)
	require.Len(t, mailboxes, 2)
	assert.Equal(t, "INBOX", mailboxes[0].Mailbox)
	assert.Equal(t, '/', mailboxes[0].Delim)
	assert.Contains(t, mailboxes[1].Attrs, imap.MailboxAttrNoSelect)

	status, err := ac.Status("Archive", &imap.StatusOptions{NumMessages: true, UIDNext: true}).Wait()
	require.NoError(t, err)
	require.NotNil(t, status.NumMessages)
	assert.Equal(t, uint32(231), *status.NumMessages)
	assert.Equal(t, imap.UID(44292), status.UIDNext)
}

func TestClient_ListUTF7Mailbox(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		tag := s.expect(`LIST "" "*"`)
		s.send(
			`* LIST (\HasNoChildren) "/" "Entw&APw-rfe"`,
			tag+" OK LIST completed",
		)
	})

	ac := loginClient(t, c)
	mailboxes, err := ac.List("", "*", nil).Collect()
	require.NoError(t, err)
	require.Len(t, mailboxes, 1)
	assert.Equal(t, "Entwürfe", mailboxes[0].Mailbox)
}

func TestClient_SearchStoreExpunge(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")

		tag := s.expect(`UID SEARCH SINCE 1-Feb-1994 FROM "Smith" UNSEEN`)
		s.send(
			`* SEARCH 2 84 882`,
			tag+" OK SEARCH completed",
		)

		tag = s.expect(`UID STORE 2,84,882 +FLAGS.SILENT (\Deleted)`)
		s.send(tag + " OK STORE completed")

		tag = s.expect("EXPUNGE")
		s.send(
			`* 3 EXPUNGE`,
			`* 3 EXPUNGE`,
			`* 5 EXPUNGE`,
			tag+" OK EXPUNGE completed",
		)
	})

	ac := loginClient(t, c)
	sc := &SelectedClient{AuthenticatedClient{c: ac.c}}

	data, err := sc.UIDSearch(&imap.SearchCriteria{
		Since:   time.Date(1994, time.February, 1, 0, 0, 0, 0, time.UTC),
		From:    []string{"Smith"},
		NotFlag: []imap.Flag{imap.FlagSeen},
	}).Wait()
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{2, 84, 882}, data.AllUIDs())
	assert.Equal(t, uint32(3), data.Count)

	_, err = sc.Store(imap.UIDSetNum(2, 84, 882), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}).Collect()
	require.NoError(t, err)

	seqNums, err := sc.Expunge().Collect()
	require.NoError(t, err)
	assert.Equal(t, []imap.SeqNum{3, 3, 5}, seqNums)
}

// Some servers split a large result over several SEARCH lines; the lines
// accumulate into one set.
func TestClient_SearchSplitResults(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		tag := s.expect("UID SEARCH ALL")
		s.send(
			`* SEARCH 2 84`,
			`* SEARCH 882`,
			tag+" OK SEARCH completed",
		)
	})

	ac := loginClient(t, c)
	sc := &SelectedClient{AuthenticatedClient{c: ac.c}}

	data, err := sc.UIDSearch(nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{2, 84, 882}, data.AllUIDs())
	assert.Equal(t, uint32(3), data.Count)
}

func TestClient_Append(t *testing.T) {
	msg := "From: alice@example.org\r\n\r\nhi"

	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1 UIDPLUS")
		line := s.readLine()
		tag, rest, _ := strings.Cut(line, " ")
		assert.Equal(s.t, fmt.Sprintf(`APPEND "Drafts" (\Draft) {%d}`, len(msg)), rest)
		s.send("+ ready")
		payload := s.readBytes(len(msg))
		assert.Equal(s.t, msg, string(payload))
		assert.Equal(s.t, "", s.readLine())
		s.send(tag + " OK [APPENDUID 38505 3955] APPEND completed")
	})

	ac := loginClient(t, c)
	cmd := ac.Append("Drafts", int64(len(msg)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagDraft},
	})
	_, err := io.WriteString(cmd, msg)
	require.NoError(t, err)
	require.NoError(t, cmd.Close())

	data, err := cmd.Wait()
	require.NoError(t, err)
	assert.Equal(t, uint32(38505), data.UIDValidity)
	assert.Equal(t, imap.UID(3955), data.UID)
}

func TestClient_MoveFallback(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1 UIDPLUS")

		tag := s.expect(`UID COPY 7 "Archive"`)
		s.send(tag + " OK [COPYUID 38505 7 3956] COPY completed")

		tag = s.expect(`UID STORE 7 +FLAGS.SILENT (\Deleted)`)
		s.send(tag + " OK STORE completed")

		tag = s.expect("UID EXPUNGE 7")
		s.send(
			"* 2 EXPUNGE",
			tag+" OK EXPUNGE completed",
		)
	})

	ac := loginClient(t, c)
	sc := &SelectedClient{AuthenticatedClient{c: ac.c}}

	data, err := sc.Move(imap.UIDSetNum(7), "Archive").Wait()
	require.NoError(t, err)
	assert.Equal(t, uint32(38505), data.UIDValidity)
	assert.Equal(t, []imap.UID{7}, data.SourceUIDs.Nums())
	assert.Equal(t, []imap.UID{3956}, data.DestUIDs.Nums())
}

func TestClient_Logout(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.login("IMAP4rev1")
		tag := s.expect("LOGOUT")
		s.send(
			"* BYE logging out",
			tag+" OK LOGOUT completed",
		)
		s.conn.Close()
	})

	ac := loginClient(t, c)
	require.NoError(t, ac.Logout())
}

func TestClient_PendingFailOnDrop(t *testing.T) {
	c := newTestClient(t, func(s *script) {
		s.send("* OK ready")
		s.expect(`LOGIN "alice" "hunter2"`)
		s.conn.Close()
	})

	require.NoError(t, c.WaitGreeting())
	_, err := c.Login("alice", "hunter2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, imap.ErrConnClosing))
}
