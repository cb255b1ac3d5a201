package imap

import "time"

// FetchOptions selects the message attributes a FETCH command requests.
type FetchOptions struct {
	Envelope     bool
	Flags        bool
	InternalDate bool
	RFC822Size   bool
	UID          bool
	ModSeq       bool // requires CONDSTORE

	BodySection []*FetchItemBodySection
}

// FetchItemBodySection requests a BODY[<section>]<<partial>> fetch item.
//
// The zero value requests the whole message.
type FetchItemBodySection struct {
	// Specifier is the section part, e.g. "HEADER", "TEXT" or a dotted
	// part number such as "1.2". Empty means the entire message.
	Specifier string
	// Peek suppresses the implicit \Seen flag set.
	Peek bool
	// Partial limits the fetch to a byte range of the section.
	Partial *SectionPartial
}

// SectionPartial is a byte range within a body section.
type SectionPartial struct {
	Offset, Size int64
}

// Envelope is the message envelope as reported by the server. Header
// fields the message lacks are empty; this package does not parse message
// bodies.
type Envelope struct {
	Date      time.Time
	Subject   string
	From      []Address
	Sender    []Address
	ReplyTo   []Address
	To        []Address
	Cc        []Address
	Bcc       []Address
	InReplyTo []string
	MessageID string
}

// Address is an e-mail sender or recipient from an envelope.
type Address struct {
	// Name is the display name, if any.
	Name string
	// Mailbox is the local part of the address.
	Mailbox string
	// Host is the domain part of the address.
	Host string
}

// Addr returns the RFC 5322 addr-spec, or the empty string for a group or
// nil address.
func (addr *Address) Addr() string {
	if addr.Mailbox == "" || addr.Host == "" {
		return ""
	}
	return addr.Mailbox + "@" + addr.Host
}

// IsGroupStart reports whether this address marks the start of an address
// group. In that case Mailbox holds the group name.
func (addr *Address) IsGroupStart() bool {
	return addr.Host == "" && addr.Mailbox != ""
}

// IsGroupEnd reports whether this address marks the end of an address
// group.
func (addr *Address) IsGroupEnd() bool {
	return addr.Host == "" && addr.Mailbox == ""
}

// FetchMessageData is the parsed data of a single untagged FETCH response.
// Attribute fields the server did not send are zero.
type FetchMessageData struct {
	SeqNum SeqNum

	Flags        []Flag
	Envelope     *Envelope
	InternalDate time.Time
	RFC822Size   int64
	UID          UID
	ModSeq       uint64

	// BodySections holds the raw bytes of each requested body section,
	// keyed by the section written on the wire (e.g. "BODY[HEADER]").
	BodySections map[string][]byte
}
