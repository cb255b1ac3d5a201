// Package utf7 implements the modified UTF-7 encoding defined in RFC 9051
// section 5.1.3, used for mailbox names on pre-UTF-8 servers.
package utf7

import (
	"encoding/base64"

	"golang.org/x/text/encoding"
)

const (
	min = 0x20 // minimum self-representing UTF-7 value
	max = 0x7E // maximum self-representing UTF-7 value
)

// b64 is the modified base64 alphabet: "," replaces "/" and padding is
// forbidden.
var b64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,").WithPadding(base64.NoPadding)

type enc struct{}

func (enc) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decoder{ascii: true}}
}

func (enc) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &encoder{}}
}

// Encoding is the modified UTF-7 encoding.
var Encoding encoding.Encoding = enc{}
