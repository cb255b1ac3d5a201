package imap

import (
	"testing"
	"time"
)

func capSetOf(caps ...Cap) CapSet {
	set := make(CapSet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

func TestDetectQuirksGmail(t *testing.T) {
	p := DetectQuirks("Gimap ready for requests from 10.0.0.1", capSetOf(CapIMAP4rev1, CapIdle))
	if p.Type != ServerGmail {
		t.Fatalf("Type = %v, want gmail", p.Type)
	}
	if !p.GmailLabels {
		t.Errorf("GmailLabels = false")
	}
	if p.IdleInterval != 10*time.Minute {
		t.Errorf("IdleInterval = %v", p.IdleInterval)
	}
	if !p.UnorderedResponses {
		t.Errorf("UnorderedResponses = false")
	}
}

// Capability atoms outvote greeting wording: an admin-customized banner
// must not hide a Gmail backend.
func TestDetectQuirksGmailByCap(t *testing.T) {
	p := DetectQuirks("Welcome to Example Corp mail", capSetOf(CapIMAP4rev1, "X-GM-EXT-1"))
	if p.Type != ServerGmail {
		t.Fatalf("Type = %v, want gmail", p.Type)
	}
}

func TestDetectQuirksDovecot(t *testing.T) {
	p := DetectQuirks("Dovecot ready.", capSetOf(CapIMAP4rev1, CapLiteralPlus, CapMove))
	if p.Type != ServerDovecot {
		t.Fatalf("Type = %v, want dovecot", p.Type)
	}
	if p.IdleInterval != 29*time.Minute {
		t.Errorf("IdleInterval = %v", p.IdleInterval)
	}
	if !p.LiteralPlus {
		t.Errorf("LiteralPlus = false")
	}
	if !p.NativeMove {
		t.Errorf("NativeMove = false")
	}
}

func TestDetectQuirksUnknown(t *testing.T) {
	p := DetectQuirks("IMAP server ready", capSetOf(CapIMAP4rev1))
	if p.Type != ServerUnknown {
		t.Fatalf("Type = %v, want unknown", p.Type)
	}
	// Conservative defaults: short idle, sync literals only.
	if p.IdleInterval != 10*time.Minute {
		t.Errorf("IdleInterval = %v", p.IdleInterval)
	}
	if p.LiteralPlus {
		t.Errorf("LiteralPlus = true")
	}
	if p.Dialect != DialectIMAP4rev1 {
		t.Errorf("Dialect = %v", p.Dialect)
	}
}

func TestDetectQuirksRev2(t *testing.T) {
	p := DetectQuirks("Dovecot ready.", capSetOf(CapIMAP4rev2))
	if p.Dialect != DialectIMAP4rev2 {
		t.Fatalf("Dialect = %v, want imap4rev2", p.Dialect)
	}
	if !p.UTF8Mailboxes {
		t.Errorf("UTF8Mailboxes = false")
	}
}

// LITERAL- alone must not enable unbounded non-synchronizing literals.
func TestDetectQuirksLiteralMinus(t *testing.T) {
	p := DetectQuirks("ready", capSetOf(CapIMAP4rev1, CapLiteralMinus))
	if p.LiteralPlus {
		t.Fatalf("LiteralPlus = true, want false")
	}
}

func TestNormalizeMailbox(t *testing.T) {
	insensitive := QuirkProfile{}
	if got := insensitive.NormalizeMailbox("inbox"); got != "INBOX" {
		t.Errorf("NormalizeMailbox(inbox) = %q", got)
	}
	if got := insensitive.NormalizeMailbox("Archive"); got != "Archive" {
		t.Errorf("NormalizeMailbox(Archive) = %q", got)
	}

	sensitive := QuirkProfile{InboxCaseSensitive: true}
	if got := sensitive.NormalizeMailbox("inbox"); got != "inbox" {
		t.Errorf("NormalizeMailbox(inbox) = %q on case-sensitive profile", got)
	}
}
