package imap

// CopyData is the data returned by a COPY or MOVE command against a server
// with the UIDPLUS extension. Without UIDPLUS all fields are zero.
type CopyData struct {
	// UIDValidity of the destination mailbox.
	UIDValidity uint32
	// SourceUIDs are the UIDs of the copied messages in the source
	// mailbox.
	SourceUIDs UIDSet
	// DestUIDs are the UIDs assigned in the destination mailbox, in the
	// same order.
	DestUIDs UIDSet
}
