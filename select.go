package imap

// SelectOptions contains options for the SELECT or EXAMINE command.
type SelectOptions struct {
	// ReadOnly opens the mailbox with EXAMINE instead of SELECT.
	ReadOnly bool
	// CondStore requests mod-sequence tracking. Requires CONDSTORE.
	CondStore bool
}

// SelectData is the snapshot of mailbox state returned by a SELECT or
// EXAMINE command. The connection replaces its view of the selected
// mailbox wholesale with this data; untagged EXISTS and EXPUNGE responses
// then update the message count incrementally.
type SelectData struct {
	// Flags defined in the mailbox.
	Flags []Flag
	// Flags the client can change permanently.
	PermanentFlags []Flag
	// Number of messages in the mailbox.
	NumMessages uint32
	// Number of messages with the \Recent flag. IMAP4rev1 only.
	NumRecent uint32

	UIDNext     UID
	UIDValidity uint32

	// ReadOnly reports whether the mailbox was opened read-only, either
	// because EXAMINE was used or because the server said READ-ONLY.
	ReadOnly bool

	// HighestModSeq is only set when the CONDSTORE extension is in use.
	HighestModSeq uint64
}
