package netkit

import "encoding/binary"

// IpProto identifies the protocol carried in an IPv4 payload.
type IpProto uint8

const (
	IpProtoIcmp IpProto = 0x01
	IpProtoTcp  IpProto = 0x06
	IpProtoUdp  IpProto = 0x11
)

// IPv4 header field masks (RFC 791).
const (
	ipIhlMask      = 0x0f
	ipVersionMask  = 0xf0
	ipFlagsMask    = 0xe000
	ipFragMask     = 0x1fff
	ipDfMask       = 0x4000
	ipMfMask       = 0x2000
	ipReservedMask = 0x8000
)

const ipMinHdrLen = 20

// IpPkt is a zero-copy, read-only view over an IPv4 datagram.
type IpPkt struct {
	raw []byte
	ok  bool
}

// badIpPktBuf backs badIpPkt with a zeroed minimum-length header so
// every accessor stays defined (garbage but readable) on a failed
// parse, instead of indexing into a nil slice.
var badIpPktBuf [ipMinHdrLen]byte

var badIpPkt = IpPkt{raw: badIpPktBuf[:]}

// NewIpPkt wraps raw as an IPv4 datagram.
func NewIpPkt(raw []byte) IpPkt {
	if len(raw) < ipMinHdrLen {
		return badIpPkt
	}
	p := IpPkt{raw: raw, ok: true}
	if p.Version() != 4 || p.HdrLength() < ipMinHdrLen || p.HdrLength() > len(raw) {
		return badIpPkt
	}
	return p
}

func (p IpPkt) IsOk() bool { return p.ok }

func (p IpPkt) Version() int { return int(p.raw[0]&ipVersionMask) >> 4 }

// HdrLength returns the IP header length in bytes (IHL * 4).
func (p IpPkt) HdrLength() int { return int(p.raw[0]&ipIhlMask) * 4 }

func (p IpPkt) Tos() byte { return p.raw[1] }

// TotalLength is the datagram length including the header, in bytes.
func (p IpPkt) TotalLength() int { return int(binary.BigEndian.Uint16(p.raw[2:4])) }

func (p IpPkt) Id() uint16 { return binary.BigEndian.Uint16(p.raw[4:6]) }

func (p IpPkt) flagsFrag() uint16 { return binary.BigEndian.Uint16(p.raw[6:8]) }

// Flags returns the 3-bit flags field (reserved, DF, MF).
func (p IpPkt) Flags() uint8 { return uint8(p.flagsFrag() >> 13) }

func (p IpPkt) DontFragment() bool { return p.flagsFrag()&ipDfMask != 0 }
func (p IpPkt) MoreFragments() bool { return p.flagsFrag()&ipMfMask != 0 }

// FragmentOffset returns the fragment offset in 8-byte units.
func (p IpPkt) FragmentOffset() uint16 { return p.flagsFrag() & ipFragMask }

func (p IpPkt) Ttl() byte { return p.raw[8] }

func (p IpPkt) Proto() IpProto { return IpProto(p.raw[9]) }

func (p IpPkt) HeaderChecksum() uint16 { return binary.BigEndian.Uint16(p.raw[10:12]) }

func (p IpPkt) Src() []byte { return p.raw[12:16] }
func (p IpPkt) Dst() []byte { return p.raw[16:20] }

// Payload returns the bytes following the IP header, truncated to
// TotalLength when the capture includes link-layer padding.
func (p IpPkt) Payload() []byte {
	hl := p.HdrLength()
	tl := p.TotalLength()
	if tl > 0 && tl <= len(p.raw) {
		return p.raw[hl:tl]
	}
	return p.raw[hl:]
}

// RawLength returns the number of bytes captured for this datagram.
func (p IpPkt) RawLength() int { return len(p.raw) }
