// Package imapclient implements an IMAP4rev2 client (RFC 9051) with an
// IMAP4rev1 fallback (RFC 3501).
//
// The protocol state machine is expressed in the type system: a Client can
// only authenticate, an AuthenticatedClient can only manage and open
// mailboxes, and message operations exist solely on SelectedClient.
// Transition methods return the next state's type, so issuing FETCH before
// SELECT is a compile error rather than a runtime surprise.
//
// The transport is caller-provided. Dial, TLS setup and reconnection
// policy live outside this package.
package imapclient

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/driftmail/go-imap"
	"github.com/driftmail/go-imap/internal/imapwire"
)

type connState int

const (
	connStateGreeting connState = iota
	connStateNotAuthenticated
	connStateAuthenticated
	connStateSelected
	connStateClosed
)

// conn is the connection core shared by all client state types. It owns
// the transport, the read goroutine and all bookkeeping; the exported
// state types are thin views over it.
type conn struct {
	netConn net.Conn
	options Options
	logger  log.Logger
	metrics *connMetrics

	br io.Reader
	bw *bufio.Writer

	// encMutex serializes command writers. It is held from beginCommand
	// until commandEncoder.end, and for the whole lifetime of an IDLE.
	encMutex sync.Mutex

	greetingDone chan struct{}

	mutex        sync.Mutex
	state        connState
	tags         *tagGenerator
	caps         imap.CapSet
	capsVersion  uint64
	quirks       imap.QuirkProfile
	quirksSet    bool
	greetingText string
	greetingRecv bool
	preauth      bool
	greetingErr  error
	mailbox      *imap.SelectData
	pendingCmds  []command
	contReqs     []continuationRequest
	idleCmd      *IdleCommand
	closing      bool
	fatalErr     error
}

// Client is a connection in the not-authenticated state. Obtain one with
// New, then move to an AuthenticatedClient via Login, Authenticate or
// Preauthenticated.
type Client struct {
	c *conn
}

// New creates a new IMAP client over an established transport.
//
// This function doesn't perform I/O beyond starting the read goroutine;
// the server greeting is consumed in the background and awaited by the
// authentication methods or by WaitGreeting.
//
// A nil options pointer is equivalent to a zero options value.
func New(netConn net.Conn, options *Options) *Client {
	if options == nil {
		options = &Options{}
	}

	rw := options.wrapReadWriter(netConn)
	m := newConnMetrics(options.MetricsRegistry)

	c := &conn{
		netConn:      netConn,
		options:      *options,
		logger:       options.logger(),
		metrics:      m,
		br:           rw,
		bw:           bufio.NewWriter(countingWriter{w: rw, counter: m.BytesWritten}),
		tags:         newTagGenerator(),
		caps:         make(imap.CapSet),
		greetingDone: make(chan struct{}),
	}
	go c.readLoop()
	return &Client{c: c}
}

// WaitGreeting blocks until the server greeting has been received.
//
// The authentication methods wait for the greeting on their own; calling
// this is only useful to fail fast on a dead server.
func (c *Client) WaitGreeting() error {
	return c.c.waitGreeting()
}

// Caps returns the capabilities advertised by the server so far.
func (c *Client) Caps() imap.CapSet {
	return c.c.capSnapshot()
}

// Quirks returns the detected server profile. It is only meaningful after
// the greeting has been received.
func (c *Client) Quirks() imap.QuirkProfile {
	c.c.mutex.Lock()
	defer c.c.mutex.Unlock()
	return c.c.quirks
}

// Noop sends a NOOP command.
func (c *Client) Noop() *Command {
	return c.c.noop()
}

// Logout sends a LOGOUT command and closes the connection.
func (c *Client) Logout() error {
	return c.c.logout()
}

// Close immediately closes the connection, without a LOGOUT. Pending
// commands fail with imap.ErrConnClosing.
func (c *Client) Close() error {
	return c.c.close()
}

func (c *conn) waitGreeting() error {
	<-c.greetingDone
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.greetingErr
}

func (c *conn) capSnapshot() imap.CapSet {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	caps := make(imap.CapSet, len(c.caps))
	for name := range c.caps {
		caps[name] = struct{}{}
	}
	return caps
}

func (c *conn) hasCap(name imap.Cap) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.caps.Has(name)
}

func (c *conn) capVersion() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.capsVersion
}

func (c *conn) quirkProfile() imap.QuirkProfile {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.quirks
}

func (c *conn) setState(state connState) {
	c.mutex.Lock()
	c.state = state
	if state != connStateSelected {
		c.mailbox = nil
	}
	c.mutex.Unlock()
}

func (c *conn) close() error {
	c.mutex.Lock()
	alreadyClosing := c.closing
	c.closing = true
	c.state = connStateClosed
	c.mutex.Unlock()
	if alreadyClosing {
		return nil
	}
	return c.netConn.Close()
}

func (c *conn) noop() *Command {
	cmd := &Command{}
	c.beginCommand("NOOP", cmd).end()
	return cmd
}

// logout sends LOGOUT, waits for completion and closes the transport. The
// server sends an untagged BYE before the tagged OK; the read loop then
// observes EOF.
func (c *conn) logout() error {
	cmd := &Command{}
	c.beginCommand("LOGOUT", cmd).end()
	c.mutex.Lock()
	c.closing = true
	c.mutex.Unlock()
	err := cmd.Wait()
	if closeErr := c.close(); err == nil {
		err = closeErr
	}
	return err
}

// refreshCaps issues a CAPABILITY command when the server has not
// volunteered its capability set: after a bare greeting, or after the
// auth transition dropped a stale pre-auth set.
func (c *conn) refreshCaps() error {
	c.mutex.Lock()
	known := len(c.caps) > 0
	c.mutex.Unlock()
	if known {
		return nil
	}

	cmd := &CapabilityCommand{}
	c.beginCommand("CAPABILITY", cmd).end()
	caps, err := cmd.Wait()
	if err != nil {
		return err
	}
	c.setCaps(caps)
	return nil
}

// fatal records the first unrecoverable error and tears the connection
// down. The stream position cannot be trusted after a protocol violation,
// so there is no resynchronization.
func (c *conn) fatal(err error) {
	c.mutex.Lock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
	c.mutex.Unlock()

	var protoErr *imap.ProtocolError
	var tooLarge *imap.LiteralTooLargeError
	if errors.As(err, &protoErr) || errors.As(err, &tooLarge) {
		c.metrics.ProtocolErrors.Add(1)
		level.Warn(c.logger).Log("msg", "protocol violation, closing connection", "err", err)
	}
	c.close()
}

// readLoop is the sole reader of the transport. Bytes accumulate in a
// buffer until the frame scanner reports a complete response; the response
// is then parsed from the buffer without further I/O. Chunking of the
// incoming bytes therefore cannot change what is parsed.
func (c *conn) readLoop() {
	defer c.flushPending()

	var buf []byte
	rd := make([]byte, 4096)
	for {
		for {
			n, err := imapwire.ScanResponse(buf)
			if errors.Is(err, imapwire.ErrShortInput) {
				break
			}
			if err != nil {
				c.fatal(err)
				return
			}
			frame := buf[:n]
			c.metrics.Responses.With("type", responseKind(frame)).Add(1)
			if err := c.handleFrame(frame); err != nil {
				c.fatal(err)
				return
			}
			buf = append(buf[:0], buf[n:]...)
		}

		n, err := c.br.Read(rd)
		if n > 0 {
			buf = append(buf, rd[:n]...)
			c.metrics.BytesRead.Add(float64(n))
		}
		if err != nil {
			c.mutex.Lock()
			closing := c.closing
			c.mutex.Unlock()
			if !closing && err != io.EOF {
				level.Warn(c.logger).Log("msg", "read failed", "err", err)
			}
			return
		}
	}
}

// responseKind is a coarse label for metrics.
func responseKind(frame []byte) string {
	if len(frame) == 0 {
		return "unknown"
	}
	switch frame[0] {
	case '+':
		return "continuation"
	case '*':
		return "untagged"
	default:
		return "tagged"
	}
}

// flushPending fails every pending command once the read loop has exited.
func (c *conn) flushPending() {
	c.mutex.Lock()
	pendingCmds := c.pendingCmds
	contReqs := c.contReqs
	c.pendingCmds = nil
	c.contReqs = nil
	closing := c.closing
	err := c.fatalErr
	if err == nil {
		err = io.ErrUnexpectedEOF
		if closing {
			err = imap.ErrConnClosing
		}
	}
	// Greeting waiters must not block forever. The state may already be
	// closed here (fatal closes the connection before the read loop
	// exits), so receipt is tracked separately from the state.
	if !c.greetingRecv {
		c.greetingRecv = true
		c.greetingErr = err
		close(c.greetingDone)
	}
	c.state = connStateClosed
	idleCmd := c.idleCmd
	c.idleCmd = nil
	c.mutex.Unlock()

	for _, contReq := range contReqs {
		contReq.cont.Cancel(err)
	}
	for _, cmd := range pendingCmds {
		done := cmd.base().done
		done <- err
		close(done)
	}
	if idleCmd != nil {
		idleCmd.closeUpdates()
	}
}

// beginCommand starts sending a command to the server.
//
// The tag, the command name and nothing else are written. The caller must
// call commandEncoder.end.
func (c *conn) beginCommand(name string, cmd command) *commandEncoder {
	c.encMutex.Lock() // unlocked by commandEncoder.end

	c.mutex.Lock()
	tag, tagErr := c.tags.next()
	quirks := c.quirks
	literalMinus := c.caps.Has(imap.CapLiteralMinus) || c.caps.Has(imap.CapIMAP4rev2)
	quotedUTF8 := c.caps.Has(imap.CapIMAP4rev2)
	c.mutex.Unlock()

	baseCmd := cmd.base()
	*baseCmd = Command{
		tag:  tag,
		done: make(chan error, 1),
	}

	if tagErr == nil {
		c.mutex.Lock()
		c.pendingCmds = append(c.pendingCmds, cmd)
		c.mutex.Unlock()
	}

	wireEnc := imapwire.NewEncoder(c.bw)
	wireEnc.QuotedUTF8 = quotedUTF8
	wireEnc.UTF8Mailboxes = quirks.UTF8Mailboxes
	wireEnc.InboxCaseSensitive = quirks.InboxCaseSensitive
	wireEnc.LiteralMinus = literalMinus
	wireEnc.LiteralPlus = quirks.LiteralPlus
	wireEnc.NewContinuationRequest = func() *imapwire.ContinuationRequest {
		return c.registerContReq(baseCmd)
	}

	enc := &commandEncoder{
		Encoder: wireEnc,
		client:  c,
		cmd:     baseCmd,
		name:    name,
	}

	if tagErr != nil {
		// The tag space is spent: the command must fail and the
		// connection is no longer usable.
		enc.SetErr(tagErr)
		baseCmd.err = tagErr
		baseCmd.done <- tagErr
		close(baseCmd.done)
		c.fatal(tagErr)
		return enc
	}

	enc.Atom(tag).SP().Atom(name)
	return enc
}

func (c *conn) deletePendingCmdByTag(tag string) command {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, cmd := range c.pendingCmds {
		if cmd.base().tag == tag {
			c.pendingCmds = append(c.pendingCmds[:i], c.pendingCmds[i+1:]...)
			return cmd
		}
	}
	return nil
}

func findPendingCmdByType[T command](c *conn) T {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cmd := range c.pendingCmds {
		if cmd, ok := cmd.(T); ok {
			return cmd
		}
	}

	var cmd T
	return cmd
}

func (c *conn) registerContReq(cmd *Command) *imapwire.ContinuationRequest {
	cont := imapwire.NewContinuationRequest()

	c.mutex.Lock()
	c.contReqs = append(c.contReqs, continuationRequest{
		cont: cont,
		cmd:  cmd,
	})
	c.mutex.Unlock()

	return cont
}

func (c *conn) unregisterContReq(cont *imapwire.ContinuationRequest) {
	c.mutex.Lock()
	for i := range c.contReqs {
		if c.contReqs[i].cont == cont {
			c.contReqs = append(c.contReqs[:i], c.contReqs[i+1:]...)
			break
		}
	}
	c.mutex.Unlock()
}

// setCaps replaces the capability set and, once the greeting text is
// known, freezes the quirk profile.
func (c *conn) setCaps(caps imap.CapSet) {
	c.mutex.Lock()
	c.caps = caps
	c.capsVersion++
	if !c.quirksSet && c.state != connStateGreeting {
		c.quirks = imap.DetectQuirks(c.greetingText, caps)
		c.quirksSet = true
		level.Debug(c.logger).Log(
			"msg", "server profile detected",
			"server", c.quirks.Type,
			"dialect", c.quirks.Dialect,
		)
	}
	c.mutex.Unlock()
}

// handleUnilateral updates the selected-mailbox view and forwards the data
// to the configured handler and, during IDLE, to the update stream.
func (c *conn) handleUnilateral(data imap.UnilateralData) {
	c.mutex.Lock()
	switch data := data.(type) {
	case *imap.UnilateralDataExists:
		if c.mailbox != nil {
			c.mailbox.NumMessages = data.NumMessages
		}
	case *imap.UnilateralDataRecent:
		if c.mailbox != nil {
			c.mailbox.NumRecent = data.NumRecent
		}
	case *imap.UnilateralDataExpunge:
		if c.mailbox != nil && c.mailbox.NumMessages > 0 {
			c.mailbox.NumMessages--
		}
	}
	idleCmd := c.idleCmd
	c.mutex.Unlock()

	c.options.UnilateralDataHandler.dispatch(data)

	if idleCmd != nil {
		select {
		case idleCmd.updates <- data:
		default:
			// The consumer stopped draining; dropping beats deadlocking
			// the read loop.
			level.Warn(c.logger).Log("msg", "idle update dropped, consumer too slow")
		}
	}
}

type commandEncoder struct {
	*imapwire.Encoder
	client *conn
	cmd    *Command
	name   string
}

// end ends an outgoing command.
//
// A CRLF is written and the encoder is flushed.
func (ce *commandEncoder) end() {
	if err := ce.Encoder.CRLF(); err != nil {
		ce.cmd.err = err
	} else {
		ce.client.metrics.Commands.With("name", ce.name).Add(1)
	}
	ce.client.encMutex.Unlock()
	ce.Encoder = nil
}

// flush terminates and sends the command line like end, but keeps the
// encoder mutex held. IDLE owns the connection until DONE is written.
func (ce *commandEncoder) flush() {
	if err := ce.Encoder.CRLF(); err != nil {
		ce.cmd.err = err
	} else {
		ce.client.metrics.Commands.With("name", ce.name).Add(1)
	}
	ce.Encoder = nil
}

// Literal encodes a literal, registering a continuation request when the
// literal is synchronizing.
func (ce *commandEncoder) Literal(size int64) io.WriteCloser {
	c := ce.client
	nonSync := c.hasCap(imap.CapLiteralPlus) ||
		(size <= 4096 && (c.hasCap(imap.CapLiteralMinus) || c.hasCap(imap.CapIMAP4rev2)))
	var cont *imapwire.ContinuationRequest
	if !nonSync {
		cont = c.registerContReq(ce.cmd)
	}
	return ce.Encoder.Literal(size, cont)
}

// continuationRequest is a pending continuation request.
type continuationRequest struct {
	cont *imapwire.ContinuationRequest
	cmd  *Command
}

// command is an interface for IMAP commands.
//
// Commands are represented by the Command type, but can be extended by
// other types (e.g. SelectCommand).
type command interface {
	base() *Command
}

// Command is a basic IMAP command.
type Command struct {
	tag  string
	done chan error
	err  error
}

func (cmd *Command) base() *Command {
	return cmd
}

// Wait blocks until the command has completed.
func (cmd *Command) Wait() error {
	if cmd.err == nil {
		cmd.err = <-cmd.done
	}
	return cmd.err
}

type cmd = Command // type alias to avoid exporting anonymous struct fields

// CapabilityCommand is a CAPABILITY command.
type CapabilityCommand struct {
	cmd
	caps imap.CapSet
}

func (cmd *CapabilityCommand) Wait() (imap.CapSet, error) {
	err := cmd.cmd.Wait()
	return cmd.caps, err
}
