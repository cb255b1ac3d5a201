package imapclient

import (
	"io"

	"github.com/driftmail/go-imap"
)

// Append sends an APPEND command.
//
// The message body must be written to the returned command, which is an
// io.WriteCloser: exactly size bytes, then Close, then Wait.
func (c *AuthenticatedClient) Append(mailbox string, size int64, options *imap.AppendOptions) *AppendCommand {
	if options == nil {
		options = &imap.AppendOptions{}
	}
	cmd := &AppendCommand{}
	enc := c.c.beginCommand("APPEND", cmd)
	enc.SP().Mailbox(c.c.quirkProfile().NormalizeMailbox(mailbox))
	if len(options.Flags) > 0 {
		enc.SP().List(len(options.Flags), func(i int) {
			enc.Flag(options.Flags[i])
		})
	}
	if !options.Time.IsZero() {
		enc.SP().Quoted(options.Time.Format(internalDateLayout))
	}
	enc.SP()
	cmd.enc = enc
	cmd.wc = enc.Literal(size)
	return cmd
}

// AppendCommand is an APPEND command.
//
// Callers must write the message to the command and close it.
type AppendCommand struct {
	cmd
	enc  *commandEncoder
	wc   io.WriteCloser
	data imap.AppendData
}

func (cmd *AppendCommand) Write(p []byte) (int, error) {
	return cmd.wc.Write(p)
}

func (cmd *AppendCommand) Close() error {
	err := cmd.wc.Close()
	if cmd.enc != nil {
		cmd.enc.end()
		cmd.enc = nil
	}
	return err
}

// Wait blocks until the command has completed. The returned data is only
// populated on servers with UIDPLUS.
func (cmd *AppendCommand) Wait() (*imap.AppendData, error) {
	if err := cmd.cmd.Wait(); err != nil {
		return nil, err
	}
	return &cmd.data, nil
}
