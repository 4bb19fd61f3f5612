package netkit

import (
	"fmt"
	"net"

	"github.com/google/gopacket/pcap"
)

// CapDevice describes one capturable network interface.
type CapDevice struct {
	Name        string
	Description string
	Addrs       []string
	Mac         []byte
	IsLoopback  bool
}

// hardwareAddrs maps interface name to MAC address, sourced from the Go
// runtime's own network stack rather than libpcap: pcap.FindAllDevs's
// pcap_if_t carries no hardware-address field on any platform, so the
// only way to learn a device's MAC is to cross-reference it by name
// against net.Interfaces.
func hardwareAddrs() map[string][]byte {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil
	}
	out := make(map[string][]byte, len(ifs))
	for _, i := range ifs {
		if len(i.HardwareAddr) == AddrLength {
			out[i.Name] = []byte(i.HardwareAddr)
		}
	}
	return out
}

// Devices enumerates the interfaces libpcap can open for capture.
func Devices() ([]CapDevice, error) {
	ifs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("netkit: enumerating devices: %w", err)
	}
	macs := hardwareAddrs()
	const pcapIfLoopback = 0x1
	out := make([]CapDevice, 0, len(ifs))
	for _, d := range ifs {
		cd := CapDevice{
			Name:        d.Name,
			Description: d.Description,
			IsLoopback:  d.Flags&pcapIfLoopback != 0,
			Mac:         macs[d.Name],
		}
		for _, a := range d.Addresses {
			if a.IP != nil {
				cd.Addrs = append(cd.Addrs, a.IP.String())
			}
		}
		out = append(out, cd)
	}
	return out, nil
}

// DeviceByMAC returns the device whose low AddrLength MAC bytes match
// mac, mirroring the pseudo-interface-id scheme NetCap derives from a
// live handle.
func DeviceByMAC(mac []byte) (CapDevice, bool) {
	devs, err := Devices()
	if err != nil {
		return CapDevice{}, false
	}
	for _, d := range devs {
		if len(d.Mac) == AddrLength && len(mac) == AddrLength {
			match := true
			for i := range mac {
				if d.Mac[i] != mac[i] {
					match = false
					break
				}
			}
			if match {
				return d, true
			}
		}
	}
	return CapDevice{}, false
}

// AnyDevice returns the first non-loopback device, or the first device
// of any kind if every device is loopback.
func AnyDevice() (CapDevice, bool) {
	devs, err := Devices()
	if err != nil || len(devs) == 0 {
		return CapDevice{}, false
	}
	for _, d := range devs {
		if !d.IsLoopback {
			return d, true
		}
	}
	return devs[0], true
}
