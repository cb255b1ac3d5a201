package imap

import (
	"strings"
	"time"
)

// ServerType identifies an IMAP server implementation with known
// behavioral quirks.
type ServerType int

const (
	ServerUnknown ServerType = iota
	ServerGmail
	ServerOutlook
	ServerYahoo
	ServerICloud
	ServerFastmail
	ServerDovecot
	ServerCourier
	ServerCyrus
)

var serverTypeNames = map[ServerType]string{
	ServerUnknown:  "unknown",
	ServerGmail:    "gmail",
	ServerOutlook:  "outlook",
	ServerYahoo:    "yahoo",
	ServerICloud:   "icloud",
	ServerFastmail: "fastmail",
	ServerDovecot:  "dovecot",
	ServerCourier:  "courier",
	ServerCyrus:    "cyrus",
}

func (t ServerType) String() string {
	if name, ok := serverTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Dialect is the protocol revision the session speaks.
type Dialect int

const (
	// DialectIMAP4rev1 is the RFC 3501 fallback dialect.
	DialectIMAP4rev1 Dialect = iota
	// DialectIMAP4rev2 is the RFC 9051 dialect, used when the server
	// advertises IMAP4rev2.
	DialectIMAP4rev2
)

func (d Dialect) String() string {
	if d == DialectIMAP4rev2 {
		return "imap4rev2"
	}
	return "imap4rev1"
}

// detectServerType matches capability atoms and greeting text against known
// server signatures. Capability checks run first: they are stronger
// evidence than greeting wording, which admins routinely customize.
func detectServerType(greeting string, caps CapSet) ServerType {
	var hasXList, hasYMHighestModSeq bool
	for c := range caps {
		upper := strings.ToUpper(string(c))
		if strings.HasPrefix(upper, "X-GM-") {
			return ServerGmail
		}
		if upper == "XLIST" {
			hasXList = true
		}
		if strings.Contains(upper, "XYMHIGHESTMODSEQ") {
			hasYMHighestModSeq = true
		}
	}
	if hasXList && hasYMHighestModSeq {
		return ServerYahoo
	}

	lower := strings.ToLower(greeting)
	switch {
	case strings.Contains(lower, "gimap") || strings.Contains(lower, "gmail"):
		return ServerGmail
	case strings.Contains(lower, "outlook") || strings.Contains(lower, "microsoft"):
		return ServerOutlook
	case strings.Contains(lower, "dovecot"):
		return ServerDovecot
	case strings.Contains(lower, "courier"):
		return ServerCourier
	case strings.Contains(lower, "cyrus"):
		return ServerCyrus
	case strings.Contains(lower, "fastmail"):
		return ServerFastmail
	case strings.Contains(lower, "icloud") || strings.Contains(lower, "apple"):
		return ServerICloud
	}
	return ServerUnknown
}

// QuirkProfile captures server-specific behavior selected once per
// connection, from the greeting plus the first CAPABILITY set. It is
// never mutated afterwards.
type QuirkProfile struct {
	Type    ServerType
	Dialect Dialect

	// GmailLabels indicates the server models folders as labels, so a
	// message may appear in several mailboxes with the same UID semantics.
	GmailLabels bool

	// InboxCaseSensitive indicates the server wants INBOX spelled in
	// uppercase rather than treating the name case-insensitively.
	InboxCaseSensitive bool

	// IdleInterval is the longest an IDLE should run before being
	// re-issued. Gmail drops idle connections after 10 minutes; most
	// servers honor the RFC's 29 minutes.
	IdleInterval time.Duration

	// LiteralPlus indicates non-synchronizing literals of any size may be
	// sent without waiting for a continuation. LITERAL- servers get the
	// same treatment for payloads up to 4096 bytes only.
	LiteralPlus bool

	// UnorderedResponses indicates untagged responses may arrive out of
	// the order the triggering commands were issued in.
	UnorderedResponses bool

	// ExplicitExpunge indicates CLOSE does not expunge deleted messages.
	ExplicitExpunge bool

	// NativeMove indicates the MOVE command is available, avoiding the
	// COPY/STORE/EXPUNGE fallback.
	NativeMove bool

	// UTF8Mailboxes indicates mailbox names travel as UTF-8 rather than
	// modified UTF-7. Implied by IMAP4rev2 and by UTF8=ACCEPT.
	UTF8Mailboxes bool
}

// DetectQuirks builds the quirk profile for a connection from its greeting
// line and advertised capabilities. Unknown servers get a conservative
// profile.
func DetectQuirks(greeting string, caps CapSet) QuirkProfile {
	dialect := DialectIMAP4rev1
	if caps.Has(CapIMAP4rev2) {
		dialect = DialectIMAP4rev2
	}

	p := QuirkProfile{
		Type:          detectServerType(greeting, caps),
		Dialect:       dialect,
		NativeMove:    caps.Has(CapMove),
		LiteralPlus:   caps.Has(CapLiteralPlus),
		UTF8Mailboxes: dialect == DialectIMAP4rev2 || caps.Has(CapUTF8Accept),
	}

	switch p.Type {
	case ServerGmail:
		p.GmailLabels = true
		p.IdleInterval = 10 * time.Minute
		p.UnorderedResponses = true
	case ServerOutlook, ServerFastmail, ServerDovecot:
		p.IdleInterval = 29 * time.Minute
	case ServerYahoo, ServerICloud:
		p.IdleInterval = 20 * time.Minute
	case ServerCourier, ServerCyrus:
		p.InboxCaseSensitive = true
		p.IdleInterval = 29 * time.Minute
		p.ExplicitExpunge = true
	default:
		p.IdleInterval = 10 * time.Minute
	}
	return p
}

// NormalizeMailbox adjusts a mailbox name for the profiled server. For
// case-insensitive servers any spelling of "inbox" is canonicalized to
// INBOX.
func (p QuirkProfile) NormalizeMailbox(name string) string {
	if !p.InboxCaseSensitive && strings.EqualFold(name, "inbox") {
		return "INBOX"
	}
	return name
}
