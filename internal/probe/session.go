package probe

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// DefaultPort is the port OpenOCD and pyOCD serve the GDB remote protocol on.
const DefaultPort = 3333

// DefaultFrequencyHz is the probe clock requested when opening a session.
const DefaultFrequencyHz = 10_000_000

// DefaultClockCommand is the OpenOCD monitor command that sets the adapter clock.
const DefaultClockCommand = "adapter speed {{.KHz}}"

// Session is an open connection to one debug probe and the target behind it.
// A Session is owned by a single goroutine.
type Session interface {
	// Target returns the identity of the connected target.
	Target() TargetInfo

	// MemoryMap returns the target's regions in declaration order.
	MemoryMap(ctx context.Context) (MemoryMap, error)

	// ReadMemory returns exactly length bytes starting at addr. Neither addr
	// nor length has to be word aligned.
	ReadMemory(ctx context.Context, addr, length uint32) ([]byte, error)

	// ReadCoreRegister returns the current 32-bit value of a named core register.
	ReadCoreRegister(ctx context.Context, name string) (uint32, error)

	// Close releases the probe. The target is resumed and detached.
	Close() error
}

// ChunkSizer is implemented by sessions that prefer a specific read size
// for block transfers. Zero means "read the whole block at once".
type ChunkSizer interface {
	PreferredChunkSize() uint32
}

// Opener opens sessions on an endpoint. Each backend provides one.
type Opener interface {
	Open(ctx context.Context, ep Endpoint) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, ep Endpoint) (Session, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, ep Endpoint) (Session, error) {
	return f(ctx, ep)
}

// TargetInfo identifies the connected target.
type TargetInfo struct {
	// Name is the catalog target name or the name reported by the server
	Name string
	// Endpoint is the probe address the session is connected to
	Endpoint string
	// Backend is "rsp" or "gdb"
	Backend string
	// Architecture is reported by the server's target description, if any
	Architecture string
}

// Endpoint is a candidate probe reachable over TCP.
type Endpoint struct {
	ID     string
	Host   string
	Port   int
	Source string
}

// ParseEndpoint parses "host:port" or a bare host (DefaultPort is assumed).
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// Bare host without a port
		if s == "" {
			return Endpoint{}, fmt.Errorf("empty probe address")
		}
		return Endpoint{Host: s, Port: DefaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid port in probe address %q", s)
	}
	if host == "" {
		host = "localhost"
	}
	return Endpoint{Host: host, Port: port}, nil
}

// Address returns the dialable host:port form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Identifier returns the ID, falling back to the address.
func (e Endpoint) Identifier() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Address()
}

func (e Endpoint) String() string {
	if e.ID != "" && e.ID != e.Address() {
		return fmt.Sprintf("%s (%s)", e.ID, e.Address())
	}
	return e.Address()
}

// Options are the session settings shared by all backends.
type Options struct {
	// FrequencyHz is the requested probe clock; zero leaves the clock alone
	FrequencyHz uint32
	// ClockCommand is a text/template for the monitor command setting the
	// clock. Fields: .Hz, .KHz
	ClockCommand string
	// Halt stops the core after attaching so memory and registers are consistent
	Halt bool
	// BootAddress, when set, overrides the boot flag of the memory map: the
	// region holding it is the boot region
	BootAddress *uint32
	// Timeout bounds the handshake and every request
	Timeout time.Duration
	// Target names a catalog entry used when the server lacks a memory map
	// or register description
	Target string
}

// DefaultOptions returns the fixed session settings: 10 MHz, halt on attach.
func DefaultOptions() Options {
	return Options{
		FrequencyHz:  DefaultFrequencyHz,
		ClockCommand: DefaultClockCommand,
		Halt:         true,
		Timeout:      10 * time.Second,
	}
}

// ApplyBootAddress flags the boot region of mm. An explicit BootAddress
// replaces any flag the map carries; otherwise fallback marks a map that
// flags none.
func (o Options) ApplyBootAddress(mm MemoryMap, fallback uint32) MemoryMap {
	if o.BootAddress != nil {
		return mm.ForceBoot(*o.BootAddress)
	}
	return mm.MarkBoot(fallback)
}

// ClockMonitorCommand renders the clock command. It returns "" when no
// clock change is requested.
func (o Options) ClockMonitorCommand() (string, error) {
	if o.FrequencyHz == 0 || o.ClockCommand == "" {
		return "", nil
	}
	tmpl, err := template.New("clock").Parse(o.ClockCommand)
	if err != nil {
		return "", fmt.Errorf("invalid clock command template: %w", err)
	}
	var buf bytes.Buffer
	params := map[string]interface{}{
		"Hz":  o.FrequencyHz,
		"KHz": o.FrequencyHz / 1000,
	}
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to render clock command: %w", err)
	}
	return buf.String(), nil
}

// WithSession opens a session on ep, runs fn and always closes the session,
// including when fn returns an error or panics. A close failure is reported
// only if fn itself succeeded.
func WithSession(ctx context.Context, opener Opener, ep Endpoint, log *zap.Logger, fn func(Session) error) (err error) {
	session, err := opener.Open(ctx, ep)
	if err != nil {
		return err
	}

	log.Info("probe session opened",
		zap.String("endpoint", ep.Address()),
		zap.String("target", session.Target().Name),
		zap.String("backend", session.Target().Backend),
	)

	defer func() {
		closeErr := session.Close()
		if closeErr == nil {
			log.Info("probe session closed", zap.String("endpoint", ep.Address()))
			return
		}
		if err == nil {
			err = fmt.Errorf("failed to release probe %s: %w", ep.Address(), closeErr)
			return
		}
		log.Warn("failed to release probe after error",
			zap.String("endpoint", ep.Address()),
			zap.Error(closeErr),
		)
	}()

	return fn(session)
}
