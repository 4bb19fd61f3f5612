package netkit

import "encoding/binary"

// UdpHdrLength is the fixed UDP header size (RFC 768).
const UdpHdrLength = 8

// UdpPkt is a zero-copy, read-only view over a UDP datagram.
type UdpPkt struct {
	raw []byte
	ok  bool
}

// badUdpPktBuf backs badUdpPkt with a zeroed minimum-length header so
// every accessor stays defined (garbage but readable) on a failed
// parse, instead of indexing into a nil slice.
var badUdpPktBuf [UdpHdrLength]byte

var badUdpPkt = UdpPkt{raw: badUdpPktBuf[:]}

func NewUdpPkt(raw []byte) UdpPkt {
	if len(raw) < UdpHdrLength {
		return badUdpPkt
	}
	return UdpPkt{raw: raw, ok: true}
}

func (p UdpPkt) IsOk() bool { return p.ok }

func (p UdpPkt) SrcPort() uint16  { return binary.BigEndian.Uint16(p.raw[0:2]) }
func (p UdpPkt) DstPort() uint16  { return binary.BigEndian.Uint16(p.raw[2:4]) }
func (p UdpPkt) Length() uint16   { return binary.BigEndian.Uint16(p.raw[4:6]) }
func (p UdpPkt) Checksum() uint16 { return binary.BigEndian.Uint16(p.raw[6:8]) }

// Payload returns the bytes following the UDP header, truncated to
// Length when the capture includes link-layer padding.
func (p UdpPkt) Payload() []byte {
	l := int(p.Length())
	if l >= UdpHdrLength && l <= len(p.raw) {
		return p.raw[UdpHdrLength:l]
	}
	return p.raw[UdpHdrLength:]
}

func (p UdpPkt) RawLength() int { return len(p.raw) }
