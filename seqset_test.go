package imap

import (
	"testing"
)

func TestSeqSetString(t *testing.T) {
	tests := []struct {
		build func() SeqSet
		want  string
	}{
		{func() SeqSet { return SeqSetNum(1) }, "1"},
		{func() SeqSet { return SeqSetNum(1, 2, 3) }, "1:3"},
		{func() SeqSet { return SeqSetNum(1, 3, 5) }, "1,3,5"},
		{func() SeqSet { return SeqSetRange(1, 5) }, "1:5"},
		{func() SeqSet { return SeqSetRange(5, 1) }, "1:5"},
		{func() SeqSet { return SeqSetRange(7, 0) }, "7:*"},
		{func() SeqSet {
			var s SeqSet
			s.AddRange(1, 5)
			s.AddNum(6)
			return s
		}, "1:6"},
		{func() SeqSet {
			var s SeqSet
			s.AddRange(1, 5)
			s.AddRange(3, 9)
			return s
		}, "1:9"},
	}
	for _, test := range tests {
		if got := test.build().String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestParseSeqSet(t *testing.T) {
	s, err := ParseSeqSet("1:5,9,12:*")
	if err != nil {
		t.Fatalf("ParseSeqSet() = %v", err)
	}
	if got := s.String(); got != "1:5,9,12:*" {
		t.Errorf("String() = %q", got)
	}
	if !s.Dynamic() {
		t.Errorf("Dynamic() = false, want true")
	}
	for _, n := range []SeqNum{1, 5, 9, 12, 100000} {
		if !s.Contains(n) {
			t.Errorf("Contains(%v) = false, want true", n)
		}
	}
	for _, n := range []SeqNum{6, 8, 10, 11} {
		if s.Contains(n) {
			t.Errorf("Contains(%v) = true, want false", n)
		}
	}
}

func TestParseSeqSetInvalid(t *testing.T) {
	for _, in := range []string{"", "0", "1:0x5", "01", "4294967296", "1:2:3", "a"} {
		if _, err := ParseSeqSet(in); err == nil {
			t.Errorf("ParseSeqSet(%q) succeeded, want error", in)
		}
	}
}

func TestSeqSetCountSaturates(t *testing.T) {
	var s SeqSet
	s.AddRange(1, ^SeqNum(0))
	if got, want := s.Count(), uint64(^uint32(0)); got != want {
		t.Fatalf("Count() = %v, want %v", got, want)
	}
}

// Touching the uint32 ceiling must not wrap the range-merge arithmetic.
func TestSeqSetMergeAtCeiling(t *testing.T) {
	var s SeqSet
	s.AddRange(^SeqNum(0), ^SeqNum(0))
	s.AddNum(1)
	if !s.Contains(^SeqNum(0)) || !s.Contains(1) || s.Contains(2) {
		t.Fatalf("unexpected membership in %q", s.String())
	}
}

func TestUIDSetNums(t *testing.T) {
	s := UIDSetNum(2, 84, 882)
	want := []UID{2, 84, 882}
	got := s.Nums()
	if len(got) != len(want) {
		t.Fatalf("Nums() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Nums() = %v, want %v", got, want)
		}
	}

	var dyn UIDSet
	dyn.AddRange(5, 0)
	if dyn.Nums() != nil {
		t.Errorf("Nums() on dynamic set = %v, want nil", dyn.Nums())
	}
}
