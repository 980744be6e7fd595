package rsp

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/targets"
)

// BackendName identifies this backend in TargetInfo and configuration.
const BackendName = "rsp"

// DialFunc opens the transport to a GDB server.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Opener opens RSP sessions. It implements probe.Opener.
type Opener struct {
	// Options are the shared session settings
	Options probe.Options
	// MaxPacket caps memory read requests in bytes; zero means no cap
	MaxPacket uint32
	// Catalog supplies memory maps and register numbers for servers that
	// publish neither
	Catalog *targets.Catalog
	// Logger receives connection and packet logs
	Logger *zap.Logger
	// Dial replaces net.Dialer (tests)
	Dial DialFunc
}

// Open dials ep and performs the handshake: features, no-ack mode, clock,
// stop state and optional halt.
func (o *Opener) Open(ctx context.Context, ep probe.Endpoint) (probe.Session, error) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("endpoint", ep.Address()))

	var target *targets.Target
	if o.Options.Target != "" {
		if o.Catalog == nil {
			return nil, fmt.Errorf("target %q requested but no target catalog is loaded", o.Options.Target)
		}
		t, ok := o.Catalog.Get(o.Options.Target)
		if !ok {
			return nil, fmt.Errorf("unknown target %q (see `fwdump targets`)", o.Options.Target)
		}
		target = t
	}

	dial := o.Dial
	if dial == nil {
		dialer := &net.Dialer{Timeout: o.Options.Timeout}
		dial = dialer.DialContext
	}

	log.Debug("dialing gdb server")
	conn, err := dial(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, &probe.ConnectionError{Endpoint: ep.Address(), Stage: "dial", Err: err}
	}

	s := &Session{
		client:    NewClient(NewConn(conn, log, o.Options.Timeout), conn, log),
		opts:      o.Options,
		maxPacket: o.MaxPacket,
		catalog:   o.Catalog,
		target:    target,
		log:       log,
		info: probe.TargetInfo{
			Name:     "remote",
			Endpoint: ep.Address(),
			Backend:  BackendName,
		},
	}
	if target != nil {
		s.info.Name = target.Name
	}

	if err := s.attach(ctx); err != nil {
		_ = conn.Close()
		return nil, &probe.ConnectionError{Endpoint: ep.Address(), Stage: s.stage, Err: err}
	}
	return s, nil
}

// Session is a probe.Session over the GDB remote protocol.
type Session struct {
	client    *Client
	opts      probe.Options
	maxPacket uint32
	catalog   *targets.Catalog
	target    *targets.Target
	log       *zap.Logger
	info      probe.TargetInfo

	stage  string
	memMap *probe.MemoryMap
	regs   *RegisterSet
	noP    bool
	gReply string
	halted bool
	closed bool
}

func (s *Session) attach(ctx context.Context) error {
	s.stage = "handshake"
	if _, err := s.client.Handshake(ctx); err != nil {
		return err
	}

	s.stage = "clock"
	clock, err := s.opts.ClockMonitorCommand()
	if err != nil {
		return err
	}
	if clock != "" {
		if _, err := s.client.Monitor(ctx, clock); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("probe rejected clock command",
				zap.String("command", clock),
				zap.Error(err),
			)
		} else {
			s.log.Info("probe clock set", zap.Uint32("frequency_hz", s.opts.FrequencyHz))
		}
	}

	s.stage = "handshake"
	reason, err := s.client.StopReason(ctx)
	if err != nil {
		return err
	}
	switch {
	case isStopReply(reason):
		s.halted = true
	case len(reason) > 0 && (reason[0] == 'W' || reason[0] == 'X'):
		return fmt.Errorf("target has exited (%s)", reason)
	}

	if s.opts.Halt && !s.halted {
		s.stage = "halt"
		if _, err := s.client.Halt(ctx); err != nil {
			return err
		}
		s.halted = true
	}

	if s.client.Features().TargetXML {
		if err := s.loadRegisters(ctx); err != nil {
			s.log.Warn("failed to read target description", zap.Error(err))
		}
	}
	return nil
}

// Target implements probe.Session.
func (s *Session) Target() probe.TargetInfo {
	return s.info
}

// Features returns what the server negotiated.
func (s *Session) Features() Features {
	return s.client.Features()
}

// Monitor runs a server monitor command.
func (s *Session) Monitor(ctx context.Context, command string) (string, error) {
	return s.client.Monitor(ctx, command)
}

// MemoryMap implements probe.Session. A selected catalog target's layout
// wins over the server's map; OpenOCD reports the gaps between its banks
// as ram regions.
func (s *Session) MemoryMap(ctx context.Context) (probe.MemoryMap, error) {
	if s.memMap != nil {
		return *s.memMap, nil
	}

	var mm probe.MemoryMap
	switch {
	case s.target != nil:
		mm = s.target.MemoryMap()
		s.log.Debug("memory map from catalog", zap.String("target", s.target.Name))
	case s.client.Features().MemoryMap:
		doc, err := s.client.Xfer(ctx, "memory-map", "")
		if err != nil {
			return probe.MemoryMap{}, fmt.Errorf("failed to read memory map: %w", err)
		}
		mm, err = ParseMemoryMap(doc)
		if err != nil {
			return probe.MemoryMap{}, err
		}
		s.log.Debug("memory map from server", zap.Int("regions", mm.Len()))
	default:
		return probe.MemoryMap{}, fmt.Errorf("server does not publish a memory map; select a target with --target")
	}

	var fallback uint32
	if s.target != nil {
		fallback = s.target.BootAddress
	}
	mm = s.opts.ApplyBootAddress(mm, fallback)
	s.memMap = &mm
	return mm, nil
}

// PreferredChunkSize implements probe.ChunkSizer: the largest read whose
// hex reply fits in one packet, capped by MaxPacket.
func (s *Session) PreferredChunkSize() uint32 {
	n := uint32((s.client.Features().PacketSize - 4) / 2)
	if s.maxPacket > 0 && s.maxPacket < n {
		n = s.maxPacket
	}
	if n == 0 {
		n = 1
	}
	return n
}

// ReadMemory implements probe.Session. Short replies are continued from
// the next address.
func (s *Session) ReadMemory(ctx context.Context, addr, length uint32) ([]byte, error) {
	out := make([]byte, 0, length)
	chunk := s.PreferredChunkSize()

	for uint32(len(out)) < length {
		cur := addr + uint32(len(out))
		n := length - uint32(len(out))
		if n > chunk {
			n = chunk
		}

		data, err := s.client.ReadMemory(ctx, cur, n)
		if err != nil {
			return nil, &probe.MemoryReadError{Address: cur, Length: n, Err: err}
		}
		if len(data) == 0 {
			return nil, &probe.MemoryReadError{Address: cur, Length: n, Err: fmt.Errorf("server returned no data")}
		}
		if uint32(len(data)) > n {
			data = data[:n]
		}
		out = append(out, data...)
	}
	return out, nil
}

func (s *Session) loadRegisters(ctx context.Context) error {
	if s.regs != nil {
		return nil
	}

	if s.client.Features().TargetXML {
		fetch := func(annex string) ([]byte, error) {
			return s.client.Xfer(ctx, "features", annex)
		}
		doc, err := fetch("target.xml")
		if err == nil {
			regs, perr := ParseTargetDescription(doc, fetch)
			if perr == nil {
				s.regs = regs
				s.info.Architecture = regs.Architecture
				s.log.Debug("register layout from target description",
					zap.Int("registers", len(regs.Registers)),
					zap.String("architecture", regs.Architecture),
				)
				return nil
			}
			err = perr
		}
		if s.catalog == nil {
			return err
		}
		s.log.Warn("falling back to catalog register numbering", zap.Error(err))
	}

	switch {
	case s.target != nil:
		s.regs = RegisterSetFromTable(s.target.Registers())
	case s.catalog != nil:
		s.regs = RegisterSetFromTable(s.catalog.DefaultRegisters())
	default:
		return fmt.Errorf("server does not describe its registers and no catalog is loaded")
	}
	return nil
}

// ReadCoreRegister implements probe.Session. Registers are read with "p";
// servers without "p" are served from one cached "g" reply, which stays
// valid while the target is halted.
func (s *Session) ReadCoreRegister(ctx context.Context, name string) (uint32, error) {
	if err := s.loadRegisters(ctx); err != nil {
		return 0, &probe.RegisterReadError{Register: name, Err: err}
	}
	reg, ok := s.regs.Lookup(name)
	if !ok {
		return 0, &probe.RegisterReadError{Register: name, Err: fmt.Errorf("not described by the target")}
	}

	if !s.noP {
		raw, err := s.client.ReadRegister(ctx, reg.Number)
		switch {
		case err == nil:
			v, derr := decodeRegister(raw)
			if derr != nil {
				return 0, &probe.RegisterReadError{Register: name, Err: derr}
			}
			return v, nil
		case errors.Is(err, ErrUnsupported):
			s.log.Debug("server lacks 'p', reading all registers with 'g'")
			s.noP = true
		default:
			return 0, &probe.RegisterReadError{Register: name, Err: err}
		}
	}

	if s.gReply == "" || !s.halted {
		raw, err := s.client.ReadRegisters(ctx)
		if err != nil {
			return 0, &probe.RegisterReadError{Register: name, Err: err}
		}
		s.gReply = raw
	}

	offset, size, ok := s.regs.Offset(reg.Number)
	if !ok || (offset+size)*2 > len(s.gReply) {
		return 0, &probe.RegisterReadError{Register: name, Err: fmt.Errorf("register %d is outside the 'g' reply", reg.Number)}
	}
	v, err := decodeRegister(s.gReply[offset*2 : (offset+size)*2])
	if err != nil {
		return 0, &probe.RegisterReadError{Register: name, Err: err}
	}
	return v, nil
}

// decodeRegister converts a little-endian hex register value. Values
// wider than 32 bits are truncated to their low word.
func decodeRegister(raw string) (uint32, error) {
	if strings.ContainsAny(raw, "xX") {
		return 0, ErrUnavailable
	}
	data, err := hex.DecodeString(raw)
	if err != nil {
		return 0, &ProtocolError{Op: "read register", Err: err}
	}
	if len(data) == 0 {
		return 0, ErrUnsupported
	}
	var word [4]byte
	copy(word[:], data)
	return binary.LittleEndian.Uint32(word[:]), nil
}

// Close implements probe.Session: detach so the target resumes, then close
// the connection. Calling Close twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	timeout := s.opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	detachErr := s.client.Detach(ctx)
	if detachErr != nil {
		s.log.Warn("detach failed", zap.Error(detachErr))
	}
	closeErr := s.client.Close()
	return errors.Join(detachErr, closeErr)
}
