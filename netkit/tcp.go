package netkit

import "encoding/binary"

// TCP flag bits (RFC 793, RFC 3168).
const (
	TcpFin = 0x0001
	TcpSyn = 0x0002
	TcpRst = 0x0004
	TcpPsh = 0x0008
	TcpAck = 0x0010
	TcpUrg = 0x0020
	TcpFlagsMask = 0x003f
	tcpOffMask   = 0xf000
	tcpReserved  = 0x0fc0
)

const tcpMinHdrLen = 20

// TcpPkt is a zero-copy, read-only view over a TCP segment.
type TcpPkt struct {
	raw []byte
	ok  bool
}

// badTcpPktBuf backs badTcpPkt with a zeroed minimum-length header so
// every accessor stays defined (garbage but readable) on a failed
// parse, instead of indexing into a nil slice.
var badTcpPktBuf [tcpMinHdrLen]byte

var badTcpPkt = TcpPkt{raw: badTcpPktBuf[:]}

func NewTcpPkt(raw []byte) TcpPkt {
	if len(raw) < tcpMinHdrLen {
		return badTcpPkt
	}
	p := TcpPkt{raw: raw, ok: true}
	if p.HdrLength() < tcpMinHdrLen || p.HdrLength() > len(raw) {
		return badTcpPkt
	}
	return p
}

func (p TcpPkt) IsOk() bool { return p.ok }

func (p TcpPkt) SrcPort() uint16 { return binary.BigEndian.Uint16(p.raw[0:2]) }
func (p TcpPkt) DstPort() uint16 { return binary.BigEndian.Uint16(p.raw[2:4]) }
func (p TcpPkt) Seq() uint32     { return binary.BigEndian.Uint32(p.raw[4:8]) }
func (p TcpPkt) Ack() uint32     { return binary.BigEndian.Uint32(p.raw[8:12]) }

func (p TcpPkt) flagsEtc() uint16 { return binary.BigEndian.Uint16(p.raw[12:14]) }

// Off returns the data offset field (header length in 32-bit words).
func (p TcpPkt) Off() int { return int(p.flagsEtc()&tcpOffMask) >> 12 }

// HdrLength returns the TCP header length in bytes.
func (p TcpPkt) HdrLength() int { return p.Off() * 4 }

// Flags returns the 6-bit control bits (FIN,SYN,RST,PSH,ACK,URG).
func (p TcpPkt) Flags() uint16 { return p.flagsEtc() & TcpFlagsMask }

func (p TcpPkt) HasFlag(flag uint16) bool { return p.Flags()&flag != 0 }

func (p TcpPkt) Window() uint16   { return binary.BigEndian.Uint16(p.raw[14:16]) }
func (p TcpPkt) Checksum() uint16 { return binary.BigEndian.Uint16(p.raw[16:18]) }
func (p TcpPkt) Urp() uint16      { return binary.BigEndian.Uint16(p.raw[18:20]) }

// Payload returns the bytes following the TCP header (including
// options).
func (p TcpPkt) Payload() []byte { return p.raw[p.HdrLength():] }

func (p TcpPkt) RawLength() int { return len(p.raw) }
