package imapclient

import (
	"github.com/driftmail/go-imap"
	"github.com/driftmail/go-imap/internal/imapwire"
)

// List sends a LIST command.
//
// With Options.SelectSubscribed the listing is restricted to subscribed
// mailboxes: via LIST (SUBSCRIBED) on IMAP4rev2 servers, via LSUB
// otherwise. ReturnStatus is honored when the server supports it
// (IMAP4rev2 or LIST-STATUS) and silently dropped otherwise.
func (c *AuthenticatedClient) List(ref, pattern string, options *imap.ListOptions) *ListCommand {
	if options == nil {
		options = &imap.ListOptions{}
	}

	extended := c.c.hasCap(imap.CapIMAP4rev2) || c.c.hasCap("LIST-EXTENDED")
	returnStatus := options.ReturnStatus != nil &&
		(c.c.hasCap(imap.CapIMAP4rev2) || c.c.hasCap("LIST-STATUS"))

	cmd := &ListCommand{}
	name := "LIST"
	if options.SelectSubscribed && !extended {
		name = "LSUB"
	}
	enc := c.c.beginCommand(name, cmd)
	if options.SelectSubscribed && extended {
		enc.SP().Special('(').Atom("SUBSCRIBED").Special(')')
	}
	enc.SP().Mailbox(ref).SP().Mailbox(pattern)
	if returnStatus {
		enc.SP().Atom("RETURN").SP().Special('(').Atom("STATUS").SP()
		writeStatusItems(enc.Encoder, options.ReturnStatus)
		enc.Special(')')
	}
	enc.end()
	return cmd
}

// writeStatusItems writes the parenthesized status attribute list.
func writeStatusItems(enc *imapwire.Encoder, options *imap.StatusOptions) {
	var items []string
	if options.NumMessages {
		items = append(items, "MESSAGES")
	}
	if options.NumRecent {
		items = append(items, "RECENT")
	}
	if options.UIDNext {
		items = append(items, "UIDNEXT")
	}
	if options.UIDValidity {
		items = append(items, "UIDVALIDITY")
	}
	if options.NumUnseen {
		items = append(items, "UNSEEN")
	}
	if len(items) == 0 {
		items = append(items, "MESSAGES")
	}

	le := enc.BeginList()
	for _, item := range items {
		le.Item().Atom(item)
	}
	le.End()
}

// ListCommand is a LIST or LSUB command.
type ListCommand struct {
	cmd
	mailboxes []imap.ListData
}

// Collect waits for completion and returns the listed mailboxes.
func (cmd *ListCommand) Collect() ([]imap.ListData, error) {
	if err := cmd.cmd.Wait(); err != nil {
		return nil, err
	}
	return cmd.mailboxes, nil
}
