package imap

import (
	"sort"
	"strings"
)

// Cap is a capability name advertised by the server.
type Cap string

// Capabilities relevant to this client. Extension capabilities which are
// advertised but not listed here are kept verbatim in the CapSet.
const (
	CapIMAP4rev1 Cap = "IMAP4rev1" // RFC 3501
	CapIMAP4rev2 Cap = "IMAP4rev2" // RFC 9051

	CapIdle          Cap = "IDLE"          // RFC 2177
	CapLiteralPlus   Cap = "LITERAL+"      // RFC 7888
	CapLiteralMinus  Cap = "LITERAL-"      // RFC 7888
	CapSASLIR        Cap = "SASL-IR"       // RFC 4959
	CapMove          Cap = "MOVE"          // RFC 6851
	CapUIDPlus       Cap = "UIDPLUS"       // RFC 4315
	CapUnselect      Cap = "UNSELECT"      // RFC 3691
	CapNamespace     Cap = "NAMESPACE"     // RFC 2342
	CapCondStore     Cap = "CONDSTORE"     // RFC 7162
	CapEnable        Cap = "ENABLE"        // RFC 5161
	CapID            Cap = "ID"            // RFC 2971
	CapStartTLS      Cap = "STARTTLS"      // RFC 3501
	CapLoginDisabled Cap = "LOGINDISABLED" // RFC 3501
	CapUTF8Accept    Cap = "UTF8=ACCEPT"   // RFC 6855
)

// AuthCap returns the capability atom advertising the SASL mechanism name,
// e.g. "AUTH=XOAUTH2".
func AuthCap(mechanism string) Cap {
	return Cap("AUTH=" + strings.ToUpper(mechanism))
}

// CapSet is a set of capabilities.
type CapSet map[Cap]struct{}

// Has indicates whether the set contains the capability.
func (set CapSet) Has(c Cap) bool {
	_, ok := set[c]
	return ok
}

// AuthMechanisms returns the SASL mechanism names advertised via AUTH=
// capabilities, sorted.
func (set CapSet) AuthMechanisms() []string {
	var l []string
	for c := range set {
		if mech, ok := strings.CutPrefix(string(c), "AUTH="); ok {
			l = append(l, mech)
		}
	}
	sort.Strings(l)
	return l
}

// String returns the space-separated capability list, sorted. Useful for
// logging.
func (set CapSet) String() string {
	l := make([]string, 0, len(set))
	for c := range set {
		l = append(l, string(c))
	}
	sort.Strings(l)
	return strings.Join(l, " ")
}
