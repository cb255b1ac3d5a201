package imap

// UID is a message unique identifier.
//
// UIDs are stable across a mailbox's lifetime: they survive expunges and
// only become invalid when the mailbox's UIDVALIDITY changes. Zero is not a
// valid UID; a server response carrying UID 0 is a protocol violation and is
// surfaced as a decode error, never as a silently dropped message.
type UID uint32

// SeqNum is a message sequence number: the transient 1-based position of a
// message within its mailbox. Sequence numbers shift whenever messages are
// expunged. Zero is not a valid sequence number.
type SeqNum uint32
