package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/probe"
)

const (
	// ServiceType is the mDNS service type GDB servers are advertised under
	ServiceType = "_gdbserver._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for probe discovery
	DefaultScanTimeout = 3 * time.Second
)

// instanceEscape matches DNS-SD escapes in instance names ("bench\ pi")
var instanceEscape = regexp.MustCompile(`\\(.)`)

// Scanner handles mDNS probe discovery
type Scanner struct {
	// Timeout is the maximum time to wait for advertisements
	Timeout time.Duration

	// Service overrides ServiceType
	Service string

	Log *zap.Logger
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
		Log:     zap.NewNop(),
	}
}

func (s *Scanner) service() string {
	if s.Service == "" {
		return ServiceType
	}
	return s.Service
}

func (s *Scanner) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Scan discovers GDB servers on the local network until the timeout
// expires or ctx is cancelled. Duplicate advertisements are collapsed.
func (s *Scanner) Scan(ctx context.Context) ([]*Probe, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var mu sync.Mutex
	probes := make([]*Probe, 0)
	seen := make(map[string]bool)

	go func() {
		for entry := range entries {
			p := s.parseServiceEntry(entry)
			if p == nil {
				continue
			}
			mu.Lock()
			if !seen[p.Address()] {
				seen[p.Address()] = true
				probes = append(probes, p)
				s.logger().Debug("gdb server discovered",
					zap.String("id", p.ID),
					zap.String("address", p.Address()),
				)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, s.service(), ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	out := make([]*Probe, len(probes))
	copy(out, probes)
	return out, nil
}

// Endpoints scans and returns the discovered probes as selection candidates.
func (s *Scanner) Endpoints(ctx context.Context) ([]probe.Endpoint, error) {
	probes, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	eps := make([]probe.Endpoint, 0, len(probes))
	for _, p := range probes {
		eps = append(eps, p.Endpoint())
	}
	return eps, nil
}

// WaitForProbe waits for a specific probe by ID
// Returns the probe or an error if not found within timeout
func (s *Scanner) WaitForProbe(ctx context.Context, id string) (*Probe, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Probe, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			p := s.parseServiceEntry(entry)
			if p != nil && p.ID == id {
				select {
				case found <- p:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, s.service(), ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case p := <-found:
		return p, nil
	case <-ctx.Done():
		select {
		case p := <-found:
			return p, nil
		default:
		}
		return nil, fmt.Errorf("probe %s not found within %s", id, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Probe
// Returns nil if the entry has no usable address
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Probe {
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = probe.DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	instance := instanceEscape.ReplaceAllString(entry.Instance, "$1")
	id := metadata["id"]
	if id == "" {
		id = instance
	}
	if id == "" {
		id = strings.TrimSuffix(entry.HostName, ".")
	}

	return &Probe{
		ID:           id,
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
