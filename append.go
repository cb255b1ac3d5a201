package imap

import "time"

// AppendOptions contains options for the APPEND command.
type AppendOptions struct {
	Flags []Flag
	// Time sets the internal date of the appended message. The zero value
	// lets the server pick the current time.
	Time time.Time
}

// AppendData is the data returned by an APPEND command against a server
// with the UIDPLUS extension. Without UIDPLUS both fields are zero.
type AppendData struct {
	UID         UID
	UIDValidity uint32
}
