package imapclient

import (
	"github.com/driftmail/go-imap"
)

// Status sends a STATUS command. A nil options requests the message count
// only.
func (c *AuthenticatedClient) Status(mailbox string, options *imap.StatusOptions) *StatusCommand {
	if options == nil {
		options = &imap.StatusOptions{NumMessages: true}
	}
	cmd := &StatusCommand{}
	enc := c.c.beginCommand("STATUS", cmd)
	enc.SP().Mailbox(c.c.quirkProfile().NormalizeMailbox(mailbox)).SP()
	writeStatusItems(enc.Encoder, options)
	enc.end()
	return cmd
}

// StatusCommand is a STATUS command.
type StatusCommand struct {
	cmd
	data imap.StatusData
}

func (cmd *StatusCommand) Wait() (*imap.StatusData, error) {
	if err := cmd.cmd.Wait(); err != nil {
		return nil, err
	}
	return &cmd.data, nil
}
