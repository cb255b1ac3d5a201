package imapclient

import (
	"errors"
	"fmt"

	"github.com/driftmail/go-imap"
)

// AuthenticatedClient is a connection in the authenticated state: mailboxes
// can be listed, managed and opened, but no mailbox is selected yet.
type AuthenticatedClient struct {
	c *conn
}

// SelectedClient is a connection with a mailbox selected. It offers the
// message operations on top of everything an AuthenticatedClient can do.
type SelectedClient struct {
	AuthenticatedClient
}

// Caps returns the capabilities advertised by the server.
func (c *AuthenticatedClient) Caps() imap.CapSet {
	return c.c.capSnapshot()
}

// Quirks returns the detected server profile.
func (c *AuthenticatedClient) Quirks() imap.QuirkProfile {
	return c.c.quirkProfile()
}

// Noop sends a NOOP command.
func (c *AuthenticatedClient) Noop() *Command {
	return c.c.noop()
}

// Logout sends a LOGOUT command and closes the connection.
func (c *AuthenticatedClient) Logout() error {
	return c.c.logout()
}

// Close immediately closes the connection.
func (c *AuthenticatedClient) Close() error {
	return c.c.close()
}

// Mailbox returns the state of the selected mailbox, as accumulated from
// the SELECT response and subsequent unilateral updates.
func (c *SelectedClient) Mailbox() imap.SelectData {
	c.c.mutex.Lock()
	defer c.c.mutex.Unlock()
	if c.c.mailbox == nil {
		return imap.SelectData{}
	}
	return *c.c.mailbox
}

// Login sends a LOGIN command.
//
// On success the connection moves to the authenticated state and the
// returned AuthenticatedClient supersedes this Client.
func (c *Client) Login(username, password string) (*AuthenticatedClient, error) {
	if err := c.c.waitGreeting(); err != nil {
		return nil, err
	}
	if c.c.isPreauth() {
		return nil, errors.New("imapclient: connection is pre-authenticated, use Preauthenticated")
	}
	if c.c.hasCap(imap.CapLoginDisabled) {
		return nil, errors.New("imapclient: server has disabled LOGIN")
	}

	capsBefore := c.c.capVersion()
	cmd := &Command{}
	enc := c.c.beginCommand("LOGIN", cmd)
	enc.SP().String(username).SP().String(password)
	enc.end()
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return c.c.authenticated(capsBefore)
}

// Authenticate sends an AUTHENTICATE command with the given SASL
// mechanism. The initial response is sent inline when the server supports
// SASL-IR.
func (c *Client) Authenticate(saslClient SASLClient) (*AuthenticatedClient, error) {
	if err := c.c.waitGreeting(); err != nil {
		return nil, err
	}
	if c.c.isPreauth() {
		return nil, errors.New("imapclient: connection is pre-authenticated, use Preauthenticated")
	}
	capsBefore := c.c.capVersion()
	if err := c.c.authenticate(saslClient); err != nil {
		return nil, err
	}
	return c.c.authenticated(capsBefore)
}

// Preauthenticated returns the authenticated view of a connection whose
// greeting was PREAUTH. It fails on a normally greeted connection.
func (c *Client) Preauthenticated() (*AuthenticatedClient, error) {
	if err := c.c.waitGreeting(); err != nil {
		return nil, err
	}
	if !c.c.isPreauth() {
		return nil, errors.New("imapclient: connection is not pre-authenticated")
	}
	if err := c.c.refreshCaps(); err != nil {
		return nil, err
	}
	return &AuthenticatedClient{c: c.c}, nil
}

func (c *conn) isPreauth() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.preauth
}

// authenticated finalizes the transition into the authenticated state.
// Servers commonly change their capability set once authenticated, so
// unless the exchange delivered a fresh set (CAPABILITY response code or
// untagged response, detected via capsBefore) the pre-auth set is dropped
// and refetched.
func (c *conn) authenticated(capsBefore uint64) (*AuthenticatedClient, error) {
	c.setState(connStateAuthenticated)
	c.mutex.Lock()
	if c.capsVersion == capsBefore {
		c.caps = make(imap.CapSet)
	}
	c.mutex.Unlock()
	if err := c.refreshCaps(); err != nil {
		return nil, err
	}
	return &AuthenticatedClient{c: c}, nil
}

// Select sends a SELECT command, or EXAMINE when options request read-only
// access. On success the connection moves to the selected state.
func (c *AuthenticatedClient) Select(mailbox string, options *imap.SelectOptions) (*SelectedClient, *imap.SelectData, error) {
	if options == nil {
		options = &imap.SelectOptions{}
	}
	name := "SELECT"
	if options.ReadOnly {
		name = "EXAMINE"
	}

	mailbox = c.c.quirkProfile().NormalizeMailbox(mailbox)

	cmd := &SelectCommand{}
	enc := c.c.beginCommand(name, cmd)
	enc.SP().Mailbox(mailbox)
	if options.CondStore {
		enc.SP().Special('(').Atom("CONDSTORE").Special(')')
	}
	enc.end()

	if err := cmd.Wait(); err != nil {
		return nil, nil, err
	}
	if options.ReadOnly {
		cmd.data.ReadOnly = true
	}

	data := cmd.data
	c.c.mutex.Lock()
	c.c.state = connStateSelected
	c.c.mailbox = &data
	c.c.mutex.Unlock()

	result := data
	return &SelectedClient{AuthenticatedClient{c: c.c}}, &result, nil
}

// SelectCommand is a SELECT or EXAMINE command.
type SelectCommand struct {
	cmd
	data imap.SelectData
}

// Unselect closes the selected mailbox without expunging it. It requires
// the UNSELECT capability; on servers lacking it, UnselectAndExpunge is
// the only way back to the authenticated state.
func (c *SelectedClient) Unselect() (*AuthenticatedClient, error) {
	if !c.c.hasCap(imap.CapUnselect) {
		return nil, fmt.Errorf("imapclient: server does not support UNSELECT")
	}
	cmd := &Command{}
	c.c.beginCommand("UNSELECT", cmd).end()
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	c.c.setState(connStateAuthenticated)
	return &AuthenticatedClient{c: c.c}, nil
}

// UnselectAndExpunge sends a CLOSE command: the mailbox is closed and all
// messages marked \Deleted are expunged without reporting.
func (c *SelectedClient) UnselectAndExpunge() (*AuthenticatedClient, error) {
	cmd := &Command{}
	c.c.beginCommand("CLOSE", cmd).end()
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	c.c.setState(connStateAuthenticated)
	return &AuthenticatedClient{c: c.c}, nil
}
