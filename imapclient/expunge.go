package imapclient

import (
	"fmt"

	"github.com/driftmail/go-imap"
)

// Expunge sends an EXPUNGE command, permanently removing all messages
// flagged \Deleted.
func (c *SelectedClient) Expunge() *ExpungeCommand {
	cmd := &ExpungeCommand{}
	c.c.beginCommand("EXPUNGE", cmd).end()
	return cmd
}

// UIDExpunge sends a UID EXPUNGE command (RFC 4315), restricting the
// expunge to the given UIDs.
func (c *SelectedClient) UIDExpunge(uids imap.UIDSet) *ExpungeCommand {
	cmd := &ExpungeCommand{}
	if !c.c.hasCap(imap.CapUIDPlus) {
		cmd.err = fmt.Errorf("imapclient: server does not support UIDPLUS")
		return cmd
	}
	enc := c.c.beginCommand("UID EXPUNGE", cmd)
	enc.SP().NumSet(uids)
	enc.end()
	return cmd
}

// ExpungeCommand is an EXPUNGE command.
type ExpungeCommand struct {
	cmd
	seqNums []imap.SeqNum
}

// Collect waits for completion and returns the expunged sequence numbers
// in the order reported. Each number is relative to the mailbox state at
// the time it was reported, per the protocol's decrement-as-you-go rule.
func (cmd *ExpungeCommand) Collect() ([]imap.SeqNum, error) {
	if err := cmd.cmd.Wait(); err != nil {
		return nil, err
	}
	return cmd.seqNums, nil
}
