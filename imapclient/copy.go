package imapclient

import (
	"github.com/driftmail/go-imap"
)

// Copy sends a COPY command, or UID COPY when numSet is a UIDSet.
func (c *SelectedClient) Copy(numSet imap.NumSet, mailbox string) *CopyCommand {
	cmd := &CopyCommand{}
	enc := c.c.beginCommand(uidCmdName("COPY", numSet), cmd)
	enc.SP().NumSet(numSet).SP().Mailbox(c.c.quirkProfile().NormalizeMailbox(mailbox))
	enc.end()
	return cmd
}

// CopyCommand is a COPY command.
type CopyCommand struct {
	cmd
	data imap.CopyData
}

// Wait blocks until the command has completed. The returned data is only
// populated on servers with UIDPLUS.
func (cmd *CopyCommand) Wait() (*imap.CopyData, error) {
	if err := cmd.cmd.Wait(); err != nil {
		return nil, err
	}
	return &cmd.data, nil
}

// Move sends a MOVE command, or UID MOVE when numSet is a UIDSet.
//
// On servers without the MOVE extension the same visible outcome is
// produced with a COPY, STORE +FLAGS.SILENT \Deleted, EXPUNGE sequence.
// The fallback is not atomic: a connection loss in the middle can leave
// the messages flagged but not yet expunged.
func (c *SelectedClient) Move(numSet imap.NumSet, mailbox string) *MoveCommand {
	mailbox = c.c.quirkProfile().NormalizeMailbox(mailbox)

	if !c.c.quirkProfile().NativeMove || !c.c.hasCap(imap.CapMove) {
		return c.moveFallback(numSet, mailbox)
	}

	cmd := &MoveCommand{copy: &CopyCommand{}}
	enc := c.c.beginCommand(uidCmdName("MOVE", numSet), cmd.copy)
	enc.SP().NumSet(numSet).SP().Mailbox(mailbox)
	enc.end()
	return cmd
}

func (c *SelectedClient) moveFallback(numSet imap.NumSet, mailbox string) *MoveCommand {
	cmd := &MoveCommand{}

	copyCmd := &CopyCommand{}
	enc := c.c.beginCommand(uidCmdName("COPY", numSet), copyCmd)
	enc.SP().NumSet(numSet).SP().Mailbox(mailbox)
	enc.end()
	cmd.copy = copyCmd

	cmd.store = c.Store(numSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	})

	// UID EXPUNGE keeps the fallback from destroying unrelated \Deleted
	// messages when the server can scope it.
	if uids, ok := numSet.(imap.UIDSet); ok && c.c.hasCap(imap.CapUIDPlus) {
		cmd.expunge = c.UIDExpunge(uids)
	} else {
		cmd.expunge = c.Expunge()
	}
	return cmd
}

// MoveCommand is a MOVE command, or its COPY/STORE/EXPUNGE emulation.
type MoveCommand struct {
	copy    *CopyCommand
	store   *FetchCommand
	expunge *ExpungeCommand
}

// Wait blocks until all commands making up the move have completed. The
// returned data is only populated on servers with UIDPLUS.
func (cmd *MoveCommand) Wait() (*imap.CopyData, error) {
	data, err := cmd.copy.Wait()
	if cmd.store != nil {
		if _, storeErr := cmd.store.Collect(); err == nil {
			err = storeErr
		}
	}
	if cmd.expunge != nil {
		if _, expungeErr := cmd.expunge.Collect(); err == nil {
			err = expungeErr
		}
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
