package netkit

import "encoding/binary"

// ICMP message types (RFC 792) that callers commonly branch on.
const (
	IcmpEchoReply   = 0
	IcmpEchoRequest = 8
	IcmpDestUnreach = 3
	IcmpTimeExceeded = 11
)

const icmpMinHdrLen = 4

// IcmpPkt is a zero-copy, read-only view over an ICMP message.
type IcmpPkt struct {
	raw []byte
	ok  bool
}

// badIcmpPktBuf backs badIcmpPkt with a zeroed minimum-length header so
// every accessor stays defined (garbage but readable) on a failed
// parse, instead of indexing into a nil slice.
var badIcmpPktBuf [icmpMinHdrLen]byte

var badIcmpPkt = IcmpPkt{raw: badIcmpPktBuf[:]}

func NewIcmpPkt(raw []byte) IcmpPkt {
	if len(raw) < icmpMinHdrLen {
		return badIcmpPkt
	}
	return IcmpPkt{raw: raw, ok: true}
}

func (p IcmpPkt) IsOk() bool { return p.ok }

func (p IcmpPkt) Type() uint8  { return p.raw[0] }
func (p IcmpPkt) Code() uint8  { return p.raw[1] }
func (p IcmpPkt) Checksum() uint16 { return binary.BigEndian.Uint16(p.raw[2:4]) }

// RestOfHeader returns the type-specific 4 bytes following the checksum
// (identifier/sequence for echo, unused for others).
func (p IcmpPkt) RestOfHeader() []byte {
	if len(p.raw) < 8 {
		return nil
	}
	return p.raw[4:8]
}

func (p IcmpPkt) Payload() []byte {
	if len(p.raw) <= 8 {
		return nil
	}
	return p.raw[8:]
}

func (p IcmpPkt) RawLength() int { return len(p.raw) }
