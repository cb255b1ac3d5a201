package imap

// ListOptions contains options for the LIST command.
type ListOptions struct {
	SelectSubscribed bool
	ReturnStatus     *StatusOptions // requires IMAP4rev2 or LIST-STATUS
}

// ListData is a mailbox entry returned by a LIST or LSUB command.
type ListData struct {
	Attrs   []MailboxAttr
	Delim   rune
	Mailbox string

	// Status is only set when the LIST command requested it.
	Status *StatusData
}
