package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/fwdump/internal/probe"
)

// Probe represents a GDB server advertised on the network
type Probe struct {
	// ID identifies the probe: the "id" TXT record, else the instance name
	ID string

	// Instance is the mDNS service instance name (e.g., "openocd k64f")
	Instance string

	// Hostname is the mDNS hostname (e.g., "benchpi.local.")
	Hostname string

	// IP is the advertised address, IPv4 preferred
	IP string

	// Port is the GDB server port (typically 3333)
	Port int

	// Metadata contains the TXT record data
	// Common fields: "id=k64f-01", "server=openocd", "target=frdm-k64f"
	Metadata map[string]string

	// DiscoveredAt is when the probe was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the probe
func (p *Probe) String() string {
	return fmt.Sprintf("GDB server %s (%s) at %s", p.ID, p.Hostname, p.Address())
}

// Address returns the dialable host:port of the GDB server
func (p *Probe) Address() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// Endpoint converts the probe into a selection candidate
func (p *Probe) Endpoint() probe.Endpoint {
	return probe.Endpoint{
		ID:     p.ID,
		Host:   p.IP,
		Port:   p.Port,
		Source: "mdns",
	}
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Probe) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
