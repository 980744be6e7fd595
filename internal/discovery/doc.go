// Package discovery finds networked debug probes via mDNS.
//
// GDB servers running on bench machines (OpenOCD or pyOCD behind a
// Raspberry Pi, for example) can be advertised as "_gdbserver._tcp"
// services, e.g. with avahi:
//
//	<service>
//	  <type>_gdbserver._tcp</type>
//	  <port>3333</port>
//	  <txt-record>id=k64f-01</txt-record>
//	</service>
//
// The scanner turns each advertisement into a probe.Endpoint candidate.
// The "id" TXT record, or else the instance name, becomes the endpoint ID
// matched by --probe-id.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	eps, err := scanner.Endpoints(ctx)
//	if err != nil {
//	    return err
//	}
//	ep, err := probe.SelectEndpoint(ctx, eps, probe.Selection{})
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Probes must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
