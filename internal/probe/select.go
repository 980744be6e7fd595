package probe

import (
	"context"
	"net"
	"time"
)

// DefaultDialTimeout bounds the reachability check of each candidate.
const DefaultDialTimeout = 2 * time.Second

// ReachabilityFunc reports whether a probe answers on an endpoint.
type ReachabilityFunc func(ctx context.Context, ep Endpoint) error

// Selection narrows auto-selection.
type Selection struct {
	// ID keeps only the candidate with this identifier or address
	ID string
	// Check overrides the TCP reachability check (tests)
	Check ReachabilityFunc
}

// EndpointStatus is the reachability of a single candidate.
type EndpointStatus struct {
	Endpoint  Endpoint
	Reachable bool
	Err       error
}

// DialCheck returns a ReachabilityFunc that opens and closes a TCP
// connection to the endpoint.
func DialCheck(timeout time.Duration) ReachabilityFunc {
	return func(ctx context.Context, ep Endpoint) error {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", ep.Address())
		if err != nil {
			return &ConnectionError{Endpoint: ep.Address(), Stage: "dial", Err: err}
		}
		return conn.Close()
	}
}

// CheckEndpoints tries every candidate in order and reports its status.
func CheckEndpoints(ctx context.Context, candidates []Endpoint, check ReachabilityFunc) []EndpointStatus {
	if check == nil {
		check = DialCheck(DefaultDialTimeout)
	}
	statuses := make([]EndpointStatus, 0, len(candidates))
	for _, ep := range candidates {
		err := check(ctx, ep)
		statuses = append(statuses, EndpointStatus{
			Endpoint:  ep,
			Reachable: err == nil,
			Err:       err,
		})
	}
	return statuses
}

// SelectEndpoint picks the single reachable probe among candidates.
// It fails with NoProbeFoundError when none or more than one is reachable.
func SelectEndpoint(ctx context.Context, candidates []Endpoint, sel Selection) (Endpoint, error) {
	filtered := candidates
	if sel.ID != "" {
		filtered = nil
		for _, ep := range candidates {
			if ep.Identifier() == sel.ID || ep.Address() == sel.ID {
				filtered = append(filtered, ep)
			}
		}
	}

	var reachable []Endpoint
	seen := make(map[string]bool)
	for _, status := range CheckEndpoints(ctx, filtered, sel.Check) {
		if !status.Reachable || seen[status.Endpoint.Address()] {
			continue
		}
		seen[status.Endpoint.Address()] = true
		reachable = append(reachable, status.Endpoint)
	}

	switch len(reachable) {
	case 0:
		return Endpoint{}, &NoProbeFoundError{Candidates: filtered}
	case 1:
		return reachable[0], nil
	default:
		return Endpoint{}, &NoProbeFoundError{Candidates: filtered, Ambiguous: reachable}
	}
}
