package imap

import "time"

// SearchCriteria is a set of SEARCH criteria. All fields are combined with
// an implicit AND; use Not and Or for the other connectives.
//
// Date fields are compared against the message internal date with day
// granularity, per the protocol.
type SearchCriteria struct {
	SeqNum []SeqSet
	UID    []UIDSet

	// Internal date comparisons.
	Since  time.Time
	Before time.Time
	On     time.Time

	// Each string must appear in the corresponding field or region.
	Subject []string
	From    []string
	To      []string
	Body    []string
	Text    []string
	Header  []SearchCriteriaHeaderField

	Flag    []Flag
	NotFlag []Flag

	Larger  int64
	Smaller int64

	// ModSeq matches messages with a higher mod-sequence. Requires
	// CONDSTORE.
	ModSeq uint64

	Not []SearchCriteria
	Or  [][2]SearchCriteria
}

// SearchCriteriaHeaderField matches a message header field against a
// substring.
type SearchCriteriaHeaderField struct {
	Key, Value string
}

// And merges other into the criteria in place.
func (criteria *SearchCriteria) And(other *SearchCriteria) {
	criteria.SeqNum = append(criteria.SeqNum, other.SeqNum...)
	criteria.UID = append(criteria.UID, other.UID...)

	criteria.Since = maxTime(criteria.Since, other.Since)
	criteria.Before = minTime(criteria.Before, other.Before)
	if criteria.On.IsZero() {
		criteria.On = other.On
	}

	criteria.Subject = append(criteria.Subject, other.Subject...)
	criteria.From = append(criteria.From, other.From...)
	criteria.To = append(criteria.To, other.To...)
	criteria.Body = append(criteria.Body, other.Body...)
	criteria.Text = append(criteria.Text, other.Text...)
	criteria.Header = append(criteria.Header, other.Header...)

	criteria.Flag = append(criteria.Flag, other.Flag...)
	criteria.NotFlag = append(criteria.NotFlag, other.NotFlag...)

	if other.Larger > criteria.Larger {
		criteria.Larger = other.Larger
	}
	if criteria.Smaller == 0 || (other.Smaller != 0 && other.Smaller < criteria.Smaller) {
		criteria.Smaller = other.Smaller
	}
	if other.ModSeq > criteria.ModSeq {
		criteria.ModSeq = other.ModSeq
	}

	criteria.Not = append(criteria.Not, other.Not...)
	criteria.Or = append(criteria.Or, other.Or...)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if !b.IsZero() && b.Before(a) {
		return b
	}
	return a
}

// SearchData is the result of a SEARCH command.
type SearchData struct {
	// All contains the matching numbers: a UIDSet for UID SEARCH, a SeqSet
	// otherwise.
	All NumSet

	// Count is the number of matches.
	Count uint32

	// Min and Max are the lowest and highest matching numbers. They are
	// only populated from an extended (ESEARCH) response.
	Min, Max uint32
}

// AllSeqNums returns All as a list of sequence numbers. It returns nil for
// a UID SEARCH result.
func (data *SearchData) AllSeqNums() []SeqNum {
	set, ok := data.All.(SeqSet)
	if !ok {
		return nil
	}
	return set.Nums()
}

// AllUIDs returns All as a list of UIDs. It returns nil for a non-UID
// SEARCH result.
func (data *SearchData) AllUIDs() []UID {
	set, ok := data.All.(UIDSet)
	if !ok {
		return nil
	}
	return set.Nums()
}
