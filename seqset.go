package imap

// SeqSet is a set of message sequence numbers.
type SeqSet struct {
	set numSet
}

// SeqSetNum returns a SeqSet containing the listed sequence numbers.
func SeqSetNum(nums ...SeqNum) SeqSet {
	var s SeqSet
	for _, n := range nums {
		s.AddNum(n)
	}
	return s
}

// SeqSetRange returns a SeqSet containing the inclusive range start:stop.
// Stop may be zero to express "start:*".
func SeqSetRange(start, stop SeqNum) SeqSet {
	var s SeqSet
	s.AddRange(start, stop)
	return s
}

// ParseSeqSet parses a sequence-set string such as "1:5,9,12:*".
func ParseSeqSet(s string) (SeqSet, error) {
	set, err := parseNumSet(s)
	return SeqSet{set: set}, err
}

// AddNum adds the sequence number to the set.
func (s *SeqSet) AddNum(n SeqNum) {
	s.set.add(numRange{uint32(n), uint32(n)})
}

// AddRange adds the inclusive range start:stop to the set.
func (s *SeqSet) AddRange(start, stop SeqNum) {
	s.set.add(numRange{uint32(start), uint32(stop)})
}

// Contains indicates whether the set contains the sequence number.
func (s SeqSet) Contains(n SeqNum) bool { return s.set.contains(uint32(n)) }

// Count returns the number of sequence numbers covered by the set,
// saturating at the maximum uint64 value.
func (s SeqSet) Count() uint64 { return s.set.count() }

func (s SeqSet) String() string { return s.set.String() }

// Dynamic indicates whether the set contains "*" or "n:*" values.
func (s SeqSet) Dynamic() bool { return s.set.dynamic() }

func (s SeqSet) numSet() numSet { return s.set }

// Nums enumerates the sequence numbers in the set. It returns nil when the
// set contains a "*" range.
func (s SeqSet) Nums() []SeqNum {
	raw := s.set.nums()
	if raw == nil {
		return nil
	}
	nums := make([]SeqNum, len(raw))
	for i, n := range raw {
		nums[i] = SeqNum(n)
	}
	return nums
}

// UIDSet is a set of message UIDs.
type UIDSet struct {
	set numSet
}

// UIDSetNum returns a UIDSet containing the listed UIDs.
func UIDSetNum(uids ...UID) UIDSet {
	var s UIDSet
	for _, uid := range uids {
		s.AddNum(uid)
	}
	return s
}

// UIDSetRange returns a UIDSet containing the inclusive range start:stop.
// Stop may be zero to express "start:*".
func UIDSetRange(start, stop UID) UIDSet {
	var s UIDSet
	s.AddRange(start, stop)
	return s
}

// ParseUIDSet parses a UID-set string such as "1:5,9,12:*".
func ParseUIDSet(s string) (UIDSet, error) {
	set, err := parseNumSet(s)
	return UIDSet{set: set}, err
}

// AddNum adds the UID to the set.
func (s *UIDSet) AddNum(uid UID) {
	s.set.add(numRange{uint32(uid), uint32(uid)})
}

// AddRange adds the inclusive range start:stop to the set.
func (s *UIDSet) AddRange(start, stop UID) {
	s.set.add(numRange{uint32(start), uint32(stop)})
}

// Contains indicates whether the set contains the UID.
func (s UIDSet) Contains(uid UID) bool { return s.set.contains(uint32(uid)) }

// Count returns the number of UIDs covered by the set, saturating at the
// maximum uint64 value.
func (s UIDSet) Count() uint64 { return s.set.count() }

func (s UIDSet) String() string { return s.set.String() }

// Dynamic indicates whether the set contains "*" or "n:*" values.
func (s UIDSet) Dynamic() bool { return s.set.dynamic() }

func (s UIDSet) numSet() numSet { return s.set }

// Nums enumerates the UIDs in the set. It returns nil when the set
// contains a "*" range.
func (s UIDSet) Nums() []UID {
	raw := s.set.nums()
	if raw == nil {
		return nil
	}
	uids := make([]UID, len(raw))
	for i, n := range raw {
		uids[i] = UID(n)
	}
	return uids
}
