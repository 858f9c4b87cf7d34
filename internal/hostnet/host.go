// Package hostnet reports the host's network interfaces through the modem's
// WiFi collaborator. The host manages its own links, so "networks" are the
// interfaces that are up.
package hostnet

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/jaracil/siomodem"
)

// Interface is the subset of an interface the modem reports.
type Interface struct {
	Name  string
	MAC   string
	Index int
	Up    bool
	Addrs []net.IP
}

// ErrUnknownNetwork is returned by Connect for a name that is not one of the
// host's interfaces.
var ErrUnknownNetwork = errors.New("unknown network")

// Host implements siomodem.WiFi over the host's network interfaces. Each
// interface that is up is reported as a network named after it.
type Host struct {
	log        *slog.Logger
	interfaces func() ([]Interface, error)

	mu       sync.Mutex
	results  []siomodem.ScanResult
	selected string
}

// New returns a Host listing the system's interfaces.
func New(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{log: logger, interfaces: systemInterfaces}
}

func systemInterfaces() ([]Interface, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifs))
	for _, i := range ifs {
		if i.Flags&net.FlagLoopback != 0 {
			continue
		}
		iface := Interface{
			Name:  i.Name,
			MAC:   i.HardwareAddr.String(),
			Index: i.Index,
			Up:    i.Flags&net.FlagUp != 0,
		}
		addrs, err := i.Addrs()
		if err == nil {
			for _, a := range addrs {
				if ipn, ok := a.(*net.IPNet); ok {
					iface.Addrs = append(iface.Addrs, ipn.IP)
				}
			}
		}
		out = append(out, iface)
	}
	return out, nil
}

func (h *Host) list() []Interface {
	ifs, err := h.interfaces()
	if err != nil {
		h.log.Warn("Listing interfaces", "error", err)
		return nil
	}
	return ifs
}

func (i Interface) ipv4() string {
	if !i.Up {
		return ""
	}
	for _, ip := range i.Addrs {
		if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() {
			return v4.String()
		}
	}
	return ""
}

// IPAddress returns the first IPv4 address of an interface that is up.
func (h *Host) IPAddress() string {
	for _, i := range h.list() {
		if ip := i.ipv4(); ip != "" {
			return ip
		}
	}
	return ""
}

// Connected reports whether the selected interface has an IPv4 address, or
// any interface does when none has been selected.
func (h *Host) Connected() bool {
	h.mu.Lock()
	selected := h.selected
	h.mu.Unlock()
	if selected == "" {
		return h.IPAddress() != ""
	}
	for _, i := range h.list() {
		if i.Name == selected {
			return i.ipv4() != ""
		}
	}
	return false
}

// Connect selects the interface named ssid. The host owns its links, so
// nothing is associated and key is ignored. An unknown name is still
// selected, leaving Connected false.
func (h *Host) Connect(ssid, key string) error {
	h.mu.Lock()
	h.selected = ssid
	h.mu.Unlock()
	for _, i := range h.list() {
		if i.Name == ssid {
			h.log.Info("Network selected", "interface", ssid)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownNetwork, ssid)
}

// ScanNetworks snapshots the interfaces that are up.
func (h *Host) ScanNetworks() (int, error) {
	ifs, err := h.interfaces()
	if err != nil {
		return 0, fmt.Errorf("scanning interfaces: %w", err)
	}
	results := make([]siomodem.ScanResult, 0, len(ifs))
	for _, i := range ifs {
		if !i.Up {
			continue
		}
		results = append(results, siomodem.ScanResult{
			SSID:    i.Name,
			BSSID:   i.MAC,
			Channel: i.Index,
			Open:    true,
		})
	}
	h.mu.Lock()
	h.results = results
	h.mu.Unlock()
	return len(results), nil
}

// ScanResult returns entry i of the last ScanNetworks snapshot.
func (h *Host) ScanResult(i int) (siomodem.ScanResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.results) {
		return siomodem.ScanResult{}, fmt.Errorf("scan result %d out of range", i)
	}
	return h.results[i], nil
}
