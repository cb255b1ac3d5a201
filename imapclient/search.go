package imapclient

import (
	"github.com/driftmail/go-imap"
	"github.com/driftmail/go-imap/internal/imapwire"
)

// searchDateLayout is the date form used in SEARCH keys.
const searchDateLayout = "2-Jan-2006"

// Search sends a SEARCH command.
func (c *SelectedClient) Search(criteria *imap.SearchCriteria) *SearchCommand {
	return c.c.search(false, criteria)
}

// UIDSearch sends a UID SEARCH command. The result set contains UIDs
// instead of sequence numbers.
func (c *SelectedClient) UIDSearch(criteria *imap.SearchCriteria) *SearchCommand {
	return c.c.search(true, criteria)
}

func (c *conn) search(uid bool, criteria *imap.SearchCriteria) *SearchCommand {
	if criteria == nil {
		criteria = &imap.SearchCriteria{}
	}
	name := "SEARCH"
	if uid {
		name = "UID SEARCH"
	}

	cmd := &SearchCommand{uid: uid}
	enc := c.beginCommand(name, cmd)
	// IMAP4rev1 servers default to US-ASCII; non-ASCII strings need an
	// explicit charset. IMAP4rev2 made UTF-8 the baseline.
	if c.quirkProfile().Dialect == imap.DialectIMAP4rev1 && searchNeedsUTF8(criteria) {
		enc.SP().Atom("CHARSET").SP().Atom("UTF-8")
	}
	enc.SP()
	writeSearchKeys(enc.Encoder, criteria)
	enc.end()
	return cmd
}

// SearchCommand is a SEARCH command.
type SearchCommand struct {
	cmd
	uid  bool
	data imap.SearchData
}

func (cmd *SearchCommand) Wait() (*imap.SearchData, error) {
	if err := cmd.cmd.Wait(); err != nil {
		return nil, err
	}
	return &cmd.data, nil
}

// searchKeyList writes SP-separated search keys.
type searchKeyList struct {
	enc *imapwire.Encoder
	n   int
}

func (skl *searchKeyList) item() *imapwire.Encoder {
	if skl.n > 0 {
		skl.enc.SP()
	}
	skl.n++
	return skl.enc
}

func writeSearchKeys(enc *imapwire.Encoder, criteria *imap.SearchCriteria) {
	skl := searchKeyList{enc: enc}

	for _, seqSet := range criteria.SeqNum {
		skl.item().NumSet(seqSet)
	}
	for _, uidSet := range criteria.UID {
		skl.item().Atom("UID").SP().NumSet(uidSet)
	}

	if !criteria.Since.IsZero() {
		skl.item().Atom("SINCE").SP().Atom(criteria.Since.Format(searchDateLayout))
	}
	if !criteria.Before.IsZero() {
		skl.item().Atom("BEFORE").SP().Atom(criteria.Before.Format(searchDateLayout))
	}
	if !criteria.On.IsZero() {
		skl.item().Atom("ON").SP().Atom(criteria.On.Format(searchDateLayout))
	}

	for _, s := range criteria.Subject {
		skl.item().Atom("SUBJECT").SP().String(s)
	}
	for _, s := range criteria.From {
		skl.item().Atom("FROM").SP().String(s)
	}
	for _, s := range criteria.To {
		skl.item().Atom("TO").SP().String(s)
	}
	for _, s := range criteria.Body {
		skl.item().Atom("BODY").SP().String(s)
	}
	for _, s := range criteria.Text {
		skl.item().Atom("TEXT").SP().String(s)
	}
	for _, field := range criteria.Header {
		skl.item().Atom("HEADER").SP().String(field.Key).SP().String(field.Value)
	}

	for _, flag := range criteria.Flag {
		if key, ok := searchFlagKey(flag); ok {
			skl.item().Atom(key)
		} else {
			skl.item().Atom("KEYWORD").SP().Flag(flag)
		}
	}
	for _, flag := range criteria.NotFlag {
		if key, ok := searchFlagKey(flag); ok {
			skl.item().Atom("UN" + key)
		} else {
			skl.item().Atom("UNKEYWORD").SP().Flag(flag)
		}
	}

	if criteria.Larger > 0 {
		skl.item().Atom("LARGER").SP().Number64(criteria.Larger)
	}
	if criteria.Smaller > 0 {
		skl.item().Atom("SMALLER").SP().Number64(criteria.Smaller)
	}
	if criteria.ModSeq > 0 {
		skl.item().Atom("MODSEQ").SP().ModSeq(criteria.ModSeq)
	}

	for i := range criteria.Not {
		skl.item().Atom("NOT").SP().Special('(')
		writeSearchKeys(enc, &criteria.Not[i])
		enc.Special(')')
	}
	for i := range criteria.Or {
		skl.item().Atom("OR").SP().Special('(')
		writeSearchKeys(enc, &criteria.Or[i][0])
		enc.Special(')').SP().Special('(')
		writeSearchKeys(enc, &criteria.Or[i][1])
		enc.Special(')')
	}

	if skl.n == 0 {
		enc.Atom("ALL")
	}
}

// searchFlagKey maps the system flags onto their dedicated search keys.
func searchFlagKey(flag imap.Flag) (string, bool) {
	switch flag {
	case imap.FlagSeen:
		return "SEEN", true
	case imap.FlagAnswered:
		return "ANSWERED", true
	case imap.FlagFlagged:
		return "FLAGGED", true
	case imap.FlagDeleted:
		return "DELETED", true
	case imap.FlagDraft:
		return "DRAFT", true
	default:
		return "", false
	}
}

func searchNeedsUTF8(criteria *imap.SearchCriteria) bool {
	isASCII := func(strs []string) bool {
		for _, s := range strs {
			for i := 0; i < len(s); i++ {
				if s[i] > 0x7E {
					return false
				}
			}
		}
		return true
	}
	if !isASCII(criteria.Subject) || !isASCII(criteria.From) || !isASCII(criteria.To) ||
		!isASCII(criteria.Body) || !isASCII(criteria.Text) {
		return true
	}
	for _, field := range criteria.Header {
		if !isASCII([]string{field.Key, field.Value}) {
			return true
		}
	}
	for i := range criteria.Not {
		if searchNeedsUTF8(&criteria.Not[i]) {
			return true
		}
	}
	for i := range criteria.Or {
		if searchNeedsUTF8(&criteria.Or[i][0]) || searchNeedsUTF8(&criteria.Or[i][1]) {
			return true
		}
	}
	return false
}
