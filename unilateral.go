package imap

// UnilateralData is server data sent without a command soliciting it, e.g.
// a new-mail EXISTS during IDLE.
type UnilateralData interface {
	unilateralData()
}

// UnilateralDataExists reports a new message count for the selected
// mailbox.
type UnilateralDataExists struct {
	NumMessages uint32
}

func (*UnilateralDataExists) unilateralData() {}

// UnilateralDataRecent reports a new \Recent count. IMAP4rev1 only.
type UnilateralDataRecent struct {
	NumRecent uint32
}

func (*UnilateralDataRecent) unilateralData() {}

// UnilateralDataExpunge reports the removal of the message at SeqNum.
// Sequence numbers of later messages shift down by one.
type UnilateralDataExpunge struct {
	SeqNum SeqNum
}

func (*UnilateralDataExpunge) unilateralData() {}

// UnilateralDataFetch carries unsolicited FETCH data, typically a flag
// change made by another session.
type UnilateralDataFetch struct {
	Msg *FetchMessageData
}

func (*UnilateralDataFetch) unilateralData() {}
