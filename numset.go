package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// NumSet is a set of message identifiers: either a SeqSet or a UIDSet.
type NumSet interface {
	// String returns the sequence-set string, e.g. "1:5,9,12:*".
	String() string
	// Dynamic indicates whether the set contains "*" or "n:*" values.
	Dynamic() bool

	numSet() numSet
}

// numRange is a single seq-number or seq-range value. Zero represents "*",
// which is safe because the grammar only allows non-zero numbers. Start <=
// Stop always holds, except for "n:*" where Start = n and Stop = 0.
type numRange struct {
	Start, Stop uint32
}

func (r numRange) contains(q uint32) bool {
	if q == 0 {
		return r.Stop == 0
	}
	return r.Start != 0 && r.Start <= q && (q <= r.Stop || r.Stop == 0)
}

// merge combines r and t into a single union if they intersect or touch.
// The guard on ^uint32(0) prevents the touching check from overflowing.
func (r numRange) merge(t numRange) (union numRange, ok bool) {
	if r == t {
		return r, true
	}
	if r.Start != 0 && t.Start != 0 {
		if r.Start > t.Start {
			r, t = t, r
		}
		if (r.Stop >= t.Stop && t.Stop != 0) || r.Stop == 0 {
			return r, true
		}
		if r.Stop == ^uint32(0) || r.Stop+1 >= t.Start {
			return numRange{r.Start, t.Stop}, true
		}
		return r, false
	}
	// exactly one of r and t is "*"
	if r.Start == 0 {
		if t.Stop == 0 {
			return t, true
		}
	} else if r.Stop == 0 {
		return r, true
	}
	return r, false
}

func (r numRange) count() uint64 {
	stop := uint64(r.Stop)
	if r.Stop == 0 {
		stop = uint64(^uint32(0))
	}
	return stop - uint64(r.Start) + 1
}

func (r numRange) String() string {
	if r.Start == r.Stop {
		if r.Start == 0 {
			return "*"
		}
		return strconv.FormatUint(uint64(r.Start), 10)
	}
	b := strconv.AppendUint(make([]byte, 0, 24), uint64(r.Start), 10)
	if r.Stop == 0 {
		return string(append(b, ':', '*'))
	}
	return string(strconv.AppendUint(append(b, ':'), uint64(r.Stop), 10))
}

type numSet []numRange

func (s numSet) numSet() numSet { return s }

func (s *numSet) add(r numRange) {
	if r.Start > r.Stop && r.Stop != 0 {
		r.Start, r.Stop = r.Stop, r.Start
	}
	for i, v := range *s {
		if union, ok := v.merge(r); ok {
			(*s)[i] = union
			return
		}
	}
	*s = append(*s, r)
}

func (s numSet) contains(q uint32) bool {
	for _, r := range s {
		if r.contains(q) {
			return true
		}
	}
	return false
}

// count returns the number of identifiers covered by the set. The sum
// saturates instead of wrapping so a malicious set like "1:*" repeated
// cannot overflow the caller's arithmetic.
func (s numSet) count() uint64 {
	var total uint64
	for _, r := range s {
		n := r.count()
		if total+n < total {
			return ^uint64(0)
		}
		total += n
	}
	return total
}

// nums enumerates the identifiers in the set. It returns nil when the set
// contains a "*" range, which cannot be enumerated without knowing the
// mailbox size.
func (s numSet) nums() []uint32 {
	if s.dynamic() {
		return nil
	}
	var nums []uint32
	for _, r := range s {
		for n := r.Start; ; n++ {
			nums = append(nums, n)
			if n >= r.Stop {
				break
			}
		}
	}
	return nums
}

func (s numSet) dynamic() bool {
	for _, r := range s {
		if r.Start == 0 || r.Stop == 0 {
			return true
		}
	}
	return false
}

func (s numSet) String() string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(r.String())
	}
	return sb.String()
}

// parseNum parses a single seq-number value (non-zero uint32 or "*").
func parseNum(v string) (uint32, error) {
	if v == "*" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(v, 10, 32); err == nil && n != 0 && v[0] != '0' {
		return uint32(n), nil
	}
	return 0, fmt.Errorf("imap: invalid number set value %q", v)
}

func parseNumSet(set string) (numSet, error) {
	var s numSet
	for _, v := range strings.Split(set, ",") {
		var r numRange
		var err error
		if sep := strings.IndexByte(v, ':'); sep < 0 {
			r.Start, err = parseNum(v)
			r.Stop = r.Start
		} else {
			if r.Start, err = parseNum(v[:sep]); err == nil {
				r.Stop, err = parseNum(v[sep+1:])
			}
			if err == nil && ((r.Stop < r.Start && r.Stop != 0) || r.Start == 0) {
				r.Start, r.Stop = r.Stop, r.Start
			}
		}
		if err != nil {
			return nil, err
		}
		s = append(s, r)
	}
	return s, nil
}
