package imapclient

import (
	"fmt"

	"github.com/driftmail/go-imap"
	"github.com/driftmail/go-imap/internal/imapwire"
)

// internalDateLayout is the fixed-width date-time form commands send.
const internalDateLayout = "02-Jan-2006 15:04:05 -0700"

// uidCmdName prefixes the command name with "UID " when the number set
// addresses messages by UID.
func uidCmdName(name string, numSet imap.NumSet) string {
	if _, ok := numSet.(imap.UIDSet); ok {
		return "UID " + name
	}
	return name
}

// Fetch sends a FETCH command, or UID FETCH when numSet is a UIDSet.
//
// Zero options request the FAST macro (flags, internal date and size).
func (c *SelectedClient) Fetch(numSet imap.NumSet, options *imap.FetchOptions) *FetchCommand {
	if options == nil {
		options = &imap.FetchOptions{}
	}
	cmd := &FetchCommand{}
	enc := c.c.beginCommand(uidCmdName("FETCH", numSet), cmd)
	enc.SP().NumSet(numSet).SP()
	writeFetchItems(enc.Encoder, numSet, options)
	enc.end()
	return cmd
}

func writeFetchItems(enc *imapwire.Encoder, numSet imap.NumSet, options *imap.FetchOptions) {
	var items []string
	if options.Envelope {
		items = append(items, "ENVELOPE")
	}
	if options.Flags {
		items = append(items, "FLAGS")
	}
	if options.InternalDate {
		items = append(items, "INTERNALDATE")
	}
	if options.RFC822Size {
		items = append(items, "RFC822.SIZE")
	}
	// UID FETCH implies the UID item in the response, but requesting it
	// explicitly keeps the two forms symmetric.
	if options.UID || options.ModSeq {
		items = append(items, "UID")
	}
	if options.ModSeq {
		items = append(items, "MODSEQ")
	}
	for _, section := range options.BodySection {
		items = append(items, fetchItemBodySection(section))
	}

	if len(items) == 0 {
		enc.Atom("FAST")
		return
	}

	le := enc.BeginList()
	for _, item := range items {
		le.Item().Atom(item)
	}
	le.End()
}

func fetchItemBodySection(section *imap.FetchItemBodySection) string {
	item := "BODY"
	if section.Peek {
		item += ".PEEK"
	}
	item += "[" + section.Specifier + "]"
	if section.Partial != nil {
		item += fmt.Sprintf("<%d.%d>", section.Partial.Offset, section.Partial.Size)
	}
	return item
}

// Store sends a STORE command, or UID STORE when numSet is a UIDSet.
//
// Unless the store is silent, the server echoes the new flags as FETCH
// responses, collected on the returned command.
func (c *SelectedClient) Store(numSet imap.NumSet, store *imap.StoreFlags) *FetchCommand {
	cmd := &FetchCommand{}
	enc := c.c.beginCommand(uidCmdName("STORE", numSet), cmd)
	enc.SP().NumSet(numSet).SP()

	var item string
	switch store.Op {
	case imap.StoreFlagsAdd:
		item = "+"
	case imap.StoreFlagsDel:
		item = "-"
	}
	item += "FLAGS"
	if store.Silent {
		item += ".SILENT"
	}
	enc.Atom(item).SP().List(len(store.Flags), func(i int) {
		enc.Flag(store.Flags[i])
	})
	enc.end()
	return cmd
}

// FetchCommand is a FETCH or STORE command.
type FetchCommand struct {
	cmd
	msgs []imap.FetchMessageData
}

// Collect waits for completion and returns the fetched messages, in the
// order the server sent them.
func (cmd *FetchCommand) Collect() ([]imap.FetchMessageData, error) {
	if err := cmd.cmd.Wait(); err != nil {
		return nil, err
	}
	return cmd.msgs, nil
}
