// Package probetest provides an in-memory probe.Session for tests.
package probetest

import (
	"context"
	"fmt"
	"strings"

	"github.com/muurk/fwdump/internal/probe"
)

// Session is a fake probe.Session backed by byte slices.
type Session struct {
	Info     probe.TargetInfo
	Map      probe.MemoryMap
	MapErr   error
	Memory   map[uint32][]byte // region start -> contents
	Regs     map[string]uint32
	RegErrs  map[string]error
	ReadErr  error
	Chunk    uint32
	CloseErr error

	Closed    bool
	Reads     []Read
	RegReads  []string
	CloseCall int
}

// Read records one ReadMemory call.
type Read struct {
	Addr   uint32
	Length uint32
}

// New returns a fake session with the given memory map; each region is
// filled with a deterministic byte pattern.
func New(regions ...probe.Region) *Session {
	s := &Session{
		Info:    probe.TargetInfo{Name: "fake", Endpoint: "localhost:3333", Backend: "fake"},
		Map:     probe.NewMemoryMap(regions...),
		Memory:  make(map[uint32][]byte),
		Regs:    make(map[string]uint32),
		RegErrs: make(map[string]error),
	}
	for _, r := range regions {
		s.Memory[r.Start] = Pattern(r.Start, r.Length)
	}
	return s
}

// Pattern returns length bytes derived from the address so that dumps of
// different regions differ.
func Pattern(start, length uint32) []byte {
	data := make([]byte, length)
	for i := range data {
		data[i] = byte((start >> 24) ^ uint32(i) ^ (uint32(i) >> 8))
	}
	return data
}

// Target implements probe.Session.
func (s *Session) Target() probe.TargetInfo {
	return s.Info
}

// MemoryMap implements probe.Session.
func (s *Session) MemoryMap(ctx context.Context) (probe.MemoryMap, error) {
	if s.MapErr != nil {
		return probe.MemoryMap{}, s.MapErr
	}
	return s.Map, nil
}

// ReadMemory implements probe.Session.
func (s *Session) ReadMemory(ctx context.Context, addr, length uint32) ([]byte, error) {
	s.Reads = append(s.Reads, Read{Addr: addr, Length: length})
	if s.ReadErr != nil {
		return nil, &probe.MemoryReadError{Address: addr, Length: length, Err: s.ReadErr}
	}
	for start, data := range s.Memory {
		end := uint64(start) + uint64(len(data))
		if addr >= start && uint64(addr)+uint64(length) <= end {
			off := addr - start
			out := make([]byte, length)
			copy(out, data[off:off+length])
			return out, nil
		}
	}
	return nil, &probe.MemoryReadError{Address: addr, Length: length, Err: fmt.Errorf("unmapped")}
}

// ReadCoreRegister implements probe.Session.
func (s *Session) ReadCoreRegister(ctx context.Context, name string) (uint32, error) {
	s.RegReads = append(s.RegReads, name)
	if err, ok := s.RegErrs[name]; ok {
		return 0, &probe.RegisterReadError{Register: name, Err: err}
	}
	v, ok := s.Regs[strings.ToLower(name)]
	if !ok {
		return 0, &probe.RegisterReadError{Register: name, Err: fmt.Errorf("unknown register")}
	}
	return v, nil
}

// PreferredChunkSize implements probe.ChunkSizer.
func (s *Session) PreferredChunkSize() uint32 {
	return s.Chunk
}

// Close implements probe.Session.
func (s *Session) Close() error {
	s.Closed = true
	s.CloseCall++
	return s.CloseErr
}

// Opener returns a probe.Opener handing out s.
func (s *Session) Opener() probe.Opener {
	return probe.OpenerFunc(func(ctx context.Context, ep probe.Endpoint) (probe.Session, error) {
		s.Info.Endpoint = ep.Address()
		return s, nil
	})
}
