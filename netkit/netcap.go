package netkit

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket/pcap"
)

// IpCap is what the capture worker hands to the user callback: an
// Ethernet view and the IPv4 view nested inside it, plus the interface
// and timing context the raw bytes alone don't carry. Both views alias
// the underlying capture buffer and are only valid for the duration of
// the callback.
type IpCap struct {
	Ether     EtherPkt
	Ip        IpPkt
	IfIndex   int
	PseudoIf  uint16
	CapTimeUs int64
	Dir       Direction
}

// PktCallback receives one captured, parsed IPv4-over-Ethernet packet.
// Frames that fail to parse as Ethernet, or whose payload isn't IPv4,
// never reach the callback.
type PktCallback func(cap IpCap)

// capState is NetCap's lifecycle state machine.
type capState int32

const (
	capIdle capState = iota
	capLive
	capOffline
	capClosed
)

var (
	ErrAlreadyOpen   = errors.New("netkit: capture is already open")
	ErrNotOpen       = errors.New("netkit: capture is not open")
	ErrAlreadyRunning = errors.New("netkit: capture is already running")
)

// Stat holds cumulative capture counters. All fields are guarded by a
// mutex rather than the source's spin-then-semaphore scheme, since Go's
// runtime-integrated mutex already parks cheaply under contention.
type Stat struct {
	mu            sync.Mutex
	pktsCaptured  uint64
	pktsDropped   uint64
	pktsIfDropped uint64
	bytesCaptured uint64
}

func (s *Stat) record(n int) {
	s.mu.Lock()
	s.pktsCaptured++
	s.bytesCaptured += uint64(n)
	s.mu.Unlock()
}

func (s *Stat) setDrops(dropped, ifDropped uint32) {
	s.mu.Lock()
	s.pktsDropped = uint64(dropped)
	s.pktsIfDropped = uint64(ifDropped)
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of the current counters.
func (s *Stat) Snapshot() (pktsCaptured, pktsDropped, pktsIfDropped, bytesCaptured uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pktsCaptured, s.pktsDropped, s.pktsIfDropped, s.bytesCaptured
}

// NetCap captures packets from a live interface or an offline capture
// file, dispatching each to a caller-supplied callback from a single
// dedicated worker goroutine.
type NetCap struct {
	cfg     CapConfig
	name    string
	handle  *pcap.Handle
	state   int32 // capState, accessed atomically
	stat    Stat
	ifIndex int
	pseudoIf uint16

	mu      sync.Mutex
	cb      PktCallback
	stopCh  chan struct{}
	doneCh  chan struct{}
	lastErr error

	log *log.Logger
}

func newNetCap(cfg CapConfig) *NetCap {
	return &NetCap{
		cfg:  cfg,
		name: cfg.Device,
		log:  log.New(os.Stderr, "netcap: ", log.LstdFlags),
	}
}

// OpenLive opens a live capture on cfg.Device (or a sensible default
// device when empty).
func OpenLive(cfg CapConfig) (*NetCap, error) {
	if cfg.Device == "" {
		d, ok := AnyDevice()
		if !ok {
			return nil, fmt.Errorf("netkit: OpenLive: no capturable device found")
		}
		cfg.Device = d.Name
	}
	if cfg.SnapLen == 0 {
		cfg.SnapLen = DefaultCapConfig().SnapLen
	}
	nc := newNetCap(cfg)
	if err := nc.openLiveLocked(); err != nil {
		return nil, err
	}
	return nc, nil
}

func (nc *NetCap) openLiveLocked() error {
	inactive, err := pcap.NewInactiveHandle(nc.cfg.Device)
	if err != nil {
		return fmt.Errorf("netkit: NewInactiveHandle(%s): %w", nc.cfg.Device, err)
	}
	defer inactive.CleanUp()
	if err := inactive.SetSnapLen(nc.cfg.SnapLen); err != nil {
		return fmt.Errorf("netkit: SetSnapLen: %w", err)
	}
	if err := inactive.SetPromisc(nc.cfg.Promisc); err != nil {
		return fmt.Errorf("netkit: SetPromisc: %w", err)
	}
	if err := inactive.SetTimeout(nc.cfg.Timeout); err != nil {
		return fmt.Errorf("netkit: SetTimeout: %w", err)
	}
	if nc.cfg.BufferSize > 0 {
		if err := inactive.SetBufferSize(nc.cfg.BufferSize); err != nil {
			return fmt.Errorf("netkit: SetBufferSize: %w", err)
		}
	}
	handle, err := inactive.Activate()
	if err != nil {
		return fmt.Errorf("netkit: Activate(%s): %w", nc.cfg.Device, err)
	}
	if err := nc.installFilterAndDirection(handle); err != nil {
		handle.Close()
		return err
	}
	nc.handle = handle
	nc.name = nc.cfg.Device
	if ifc, err := net.InterfaceByName(nc.cfg.Device); err == nil {
		nc.ifIndex = ifc.Index
	}
	nc.pseudoIf = derivePseudoIf(nc.cfg.Device)
	atomic.StoreInt32(&nc.state, int32(capLive))
	return nil
}

// OpenOffline replays packets from a previously saved capture file.
func OpenOffline(path string) (*NetCap, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("netkit: OpenOffline(%s): %w", path, err)
	}
	nc := newNetCap(CapConfig{Device: path})
	nc.handle = handle
	nc.name = path
	atomic.StoreInt32(&nc.state, int32(capOffline))
	return nc, nil
}

func (nc *NetCap) installFilterAndDirection(handle *pcap.Handle) error {
	if nc.cfg.BpfFilter != "" {
		if err := handle.SetBPFFilter(nc.cfg.BpfFilter); err != nil {
			return fmt.Errorf("netkit: SetBPFFilter(%q): %w", nc.cfg.BpfFilter, err)
		}
	}
	switch nc.cfg.Direction {
	case DirectionIn:
		handle.SetDirection(pcap.DirectionIn)
	case DirectionOut:
		handle.SetDirection(pcap.DirectionOut)
	default:
		handle.SetDirection(pcap.DirectionInOut)
	}
	return nil
}

// IsLive reports whether this capture is reading from a live interface.
func (nc *NetCap) IsLive() bool { return capState(atomic.LoadInt32(&nc.state)) == capLive }

// IsOk reports whether the capture is open (live or offline) and has
// not recorded a fatal error.
func (nc *NetCap) IsOk() bool {
	s := capState(atomic.LoadInt32(&nc.state))
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return (s == capLive || s == capOffline) && nc.lastErr == nil
}

// Name returns the interface name or capture file path this NetCap
// addresses.
func (nc *NetCap) Name() string { return nc.name }

// SetName overrides the display name (the device/file identity used for
// logging), without affecting what is actually captured.
func (nc *NetCap) SetName(name string) { nc.name = name }

// IfIndex returns the OS interface index, 0 for offline captures.
func (nc *NetCap) IfIndex() int { return nc.ifIndex }

// PseudoIf returns a pseudo interface id derived from the low two bytes
// of the device's hardware address (or from a hash of the device name
// when it has none), stable across Repair calls that reopen the same
// physical interface. It is 0 for offline captures.
func (nc *NetCap) PseudoIf() uint16 { return nc.pseudoIf }

func derivePseudoIf(name string) uint16 {
	devs, _ := Devices()
	for _, d := range devs {
		if d.Name == name && len(d.Mac) == AddrLength {
			return uint16(d.Mac[AddrLength-2])<<8 | uint16(d.Mac[AddrLength-1])
		}
	}
	var h uint16
	for i := 0; i < len(name); i++ {
		h = h*31 + uint16(name[i])
	}
	return h
}

// LastErr returns the most recent fatal error recorded by the capture
// worker, or nil.
func (nc *NetCap) LastErr() error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.lastErr
}

// Stats returns the cumulative packet counters.
func (nc *NetCap) Stats() *Stat { return &nc.stat }

// Start launches the capture worker goroutine, invoking cb for each
// packet read until Stop or Close is called, or until the capture
// source is exhausted (offline) or fails.
func (nc *NetCap) Start(cb PktCallback) error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.handle == nil {
		return ErrNotOpen
	}
	if nc.stopCh != nil {
		return ErrAlreadyRunning
	}
	nc.cb = cb
	nc.stopCh = make(chan struct{})
	nc.doneCh = make(chan struct{})
	go nc.run(nc.handle, nc.stopCh, nc.doneCh)
	return nil
}

func (nc *NetCap) run(handle *pcap.Handle, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		data, ci, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err != nil {
			nc.mu.Lock()
			nc.lastErr = fmt.Errorf("netkit: ReadPacketData: %w", err)
			nc.mu.Unlock()
			return
		}
		nc.stat.record(len(data))
		if pcapStat, err := handle.Stats(); err == nil {
			nc.stat.setDrops(uint32(pcapStat.PacketsDropped), uint32(pcapStat.PacketsIfDropped))
		}
		if nc.cb == nil {
			continue
		}
		ether := NewEtherPkt(data)
		if !ether.IsOk() {
			continue
		}
		ip := NewIpPkt(ether.Payload())
		if !ip.IsOk() || ip.Version() != 4 {
			continue
		}
		nc.cb(IpCap{
			Ether:     ether,
			Ip:        ip,
			IfIndex:   nc.ifIndex,
			PseudoIf:  nc.pseudoIf,
			CapTimeUs: ci.Timestamp.UnixMicro(),
			Dir:       nc.cfg.Direction,
		})
	}
}

// Stop halts the capture worker and waits for it to exit, but leaves
// the underlying handle open so Start can be called again.
func (nc *NetCap) Stop() error {
	nc.mu.Lock()
	stopCh, doneCh := nc.stopCh, nc.doneCh
	nc.mu.Unlock()
	if stopCh == nil {
		return nil
	}
	close(stopCh)
	<-doneCh
	nc.mu.Lock()
	nc.stopCh, nc.doneCh, nc.cb = nil, nil, nil
	nc.mu.Unlock()
	return nil
}

// Close stops any running worker and releases the capture handle.
func (nc *NetCap) Close() error {
	nc.Stop()
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.handle != nil {
		nc.handle.Close()
		nc.handle = nil
	}
	atomic.StoreInt32(&nc.state, int32(capClosed))
	return nil
}

// Repair closes and reopens a live capture against the same device,
// for recovery after the NIC was unplugged/replugged or otherwise
// reset underneath a running capture. It is a no-op for offline
// captures.
func (nc *NetCap) Repair() error {
	if !nc.IsLive() {
		return nil
	}
	cb := nc.cb
	wasRunning := nc.stopCh != nil
	if err := nc.Close(); err != nil {
		return err
	}
	if err := nc.openLiveLocked(); err != nil {
		return fmt.Errorf("netkit: Repair: %w", err)
	}
	nc.mu.Lock()
	nc.lastErr = nil
	nc.mu.Unlock()
	if wasRunning && cb != nil {
		return nc.Start(cb)
	}
	return nil
}
