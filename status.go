package imap

// StatusOptions selects the mailbox attributes a STATUS command requests.
type StatusOptions struct {
	NumMessages bool
	NumRecent   bool // IMAP4rev1 only
	UIDNext     bool
	UIDValidity bool
	NumUnseen   bool
}

// StatusData is the data returned by a STATUS command. Fields the command
// did not request are nil.
type StatusData struct {
	Mailbox string

	NumMessages *uint32
	NumRecent   *uint32
	UIDNext     UID
	UIDValidity uint32
	NumUnseen   *uint32
}
