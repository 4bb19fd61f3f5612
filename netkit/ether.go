// Package netkit provides zero-copy read-only packet parsers (Ethernet,
// IPv4, ICMP, TCP, UDP), IPv4 fragment reassembly, and a live/offline
// packet capture engine modeled on libpcap semantics.
package netkit

import "encoding/binary"

// AddrLength is the byte length of a MAC address.
const AddrLength = 6

// EtherType identifies the payload carried by an Ethernet frame.
type EtherType uint16

const (
	EtherTypeIp   EtherType = 0x0800
	EtherTypeArp  EtherType = 0x0806
	EtherTypeVlan EtherType = 0x8100
)

const (
	etherHdrLen = 14
	vlanHdrLen  = 18
)

// EtherPkt is a zero-copy, read-only view over an Ethernet frame. The
// zero value is not meaningful; use NewEtherPkt.
type EtherPkt struct {
	raw []byte
	ok  bool
}

// badEtherPktBuf backs badEtherPkt with a zeroed, minimum-length header
// so every accessor stays defined (garbage but readable) on a failed
// parse, instead of indexing into a nil slice.
var badEtherPktBuf [etherHdrLen]byte

// badEtherPkt is returned (by value, via a fresh copy) whenever
// NewEtherPkt can't make sense of the bytes handed to it, so callers
// always get a well-formed EtherPkt whose IsOk reports false rather
// than a nil pointer to special-case.
var badEtherPkt = EtherPkt{raw: badEtherPktBuf[:]}

// NewEtherPkt wraps raw as an Ethernet frame. raw is not copied; the
// caller must keep it alive and must not mutate it while the EtherPkt
// is in use.
func NewEtherPkt(raw []byte) EtherPkt {
	if len(raw) < etherHdrLen {
		return badEtherPkt
	}
	return EtherPkt{raw: raw, ok: true}
}

// IsOk reports whether the packet was well-formed enough to parse.
func (p EtherPkt) IsOk() bool { return p.ok }

// Dst returns the destination MAC address.
func (p EtherPkt) Dst() []byte { return p.raw[0:6] }

// Src returns the source MAC address.
func (p EtherPkt) Src() []byte { return p.raw[6:12] }

// IsVlan reports whether this frame carries an 802.1Q tag.
func (p EtherPkt) IsVlan() bool {
	return EtherType(binary.BigEndian.Uint16(p.raw[12:14])) == EtherTypeVlan
}

// VlanId returns the 802.1Q VLAN identifier, or 0 if untagged.
func (p EtherPkt) VlanId() uint16 {
	if !p.IsVlan() || len(p.raw) < vlanHdrLen {
		return 0
	}
	return binary.BigEndian.Uint16(p.raw[14:16]) & 0x0fff
}

// Type returns the EtherType field, skipping over a VLAN tag if present.
func (p EtherPkt) Type() EtherType {
	if p.IsVlan() && len(p.raw) >= vlanHdrLen {
		return EtherType(binary.BigEndian.Uint16(p.raw[16:18]))
	}
	return EtherType(binary.BigEndian.Uint16(p.raw[12:14]))
}

// HdrLength returns the Ethernet header length, including an 802.1Q tag
// when present.
func (p EtherPkt) HdrLength() int {
	if p.IsVlan() {
		return vlanHdrLen
	}
	return etherHdrLen
}

// Payload returns the bytes following the Ethernet (and VLAN, if any)
// header.
func (p EtherPkt) Payload() []byte {
	n := p.HdrLength()
	if n > len(p.raw) {
		return nil
	}
	return p.raw[n:]
}

// RawLength returns the total length of the frame as captured.
func (p EtherPkt) RawLength() int { return len(p.raw) }
