package rsp

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/probe"
)

const testMemoryMap = `<?xml version="1.0"?>
<!DOCTYPE memory-map PUBLIC "+//IDN gnu.org//DTD GDB Memory Map V1.0//EN" "http://sourceware.org/gdb/gdb-memory-map.dtd">
<memory-map>
<memory type="flash" start="0x00000000" length="0x1000"><property name="blocksize">0x400</property></memory>
<memory type="ram" start="0x20000000" length="0x100"/>
</memory-map>`

const testTargetXML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target version="1.0">
<architecture>arm</architecture>
<xi:include href="core.xml" xmlns:xi="http://www.w3.org/2001/XInclude"/>
<feature name="org.gnu.gdb.arm.m-system">
<reg name="msp" bitsize="32" regnum="17"/>
<reg name="psp" bitsize="32"/>
<reg name="primask" bitsize="32"/>
<reg name="basepri" bitsize="32"/>
<reg name="faultmask" bitsize="32"/>
<reg name="control" bitsize="32"/>
</feature>
</target>`

const testCoreXML = `<?xml version="1.0"?>
<feature name="org.gnu.gdb.arm.m-profile">
<reg name="r0" bitsize="32"/><reg name="r1" bitsize="32"/><reg name="r2" bitsize="32"/>
<reg name="r3" bitsize="32"/><reg name="r4" bitsize="32"/><reg name="r5" bitsize="32"/>
<reg name="r6" bitsize="32"/><reg name="r7" bitsize="32"/><reg name="r8" bitsize="32"/>
<reg name="r9" bitsize="32"/><reg name="r10" bitsize="32"/><reg name="r11" bitsize="32"/>
<reg name="r12" bitsize="32"/>
<reg name="sp" bitsize="32" type="data_ptr"/>
<reg name="lr" bitsize="32"/>
<reg name="pc" bitsize="32" type="code_ptr"/>
<reg name="xPSR" bitsize="32" regnum="16"/>
</feature>`

// fakeServer is a minimal in-process GDB server.
type fakeServer struct {
	features   string
	xfer       map[string]string
	memory     map[uint32][]byte
	regs       map[int]uint32
	noP        bool
	maxReply   int
	failAt     uint32
	failRegs   map[int]bool
	stopReply  string
	rejectRcmd bool

	mu       sync.Mutex
	packets  []string
	monitors []string
	detached bool
}

func newFakeServer() *fakeServer {
	regs := make(map[int]uint32)
	for i := 0; i <= 22; i++ {
		regs[i] = 0x1000 + uint32(i)
	}
	return &fakeServer{
		features: "PacketSize=4000;qXfer:memory-map:read+;qXfer:features:read+;QStartNoAckMode+",
		xfer: map[string]string{
			"memory-map:":         testMemoryMap,
			"features:target.xml": testTargetXML,
			"features:core.xml":   testCoreXML,
		},
		memory: map[uint32][]byte{
			0x00000000: probeBytes(0x00, 0x1000),
			0x20000000: probeBytes(0x20, 0x100),
		},
		regs:      regs,
		failRegs:  make(map[int]bool),
		failAt:    0xffffffff,
		stopReply: "S05",
	}
}

func probeBytes(seed byte, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed ^ byte(i) ^ byte(i>>8)
	}
	return data
}

func (f *fakeServer) serve(conn net.Conn) {
	c := NewConn(conn, zap.NewNop(), 0)
	for {
		pkt, err := c.Receive()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.packets = append(f.packets, string(pkt))
		f.mu.Unlock()

		reply := f.handle(string(pkt))
		for _, out := range reply {
			if err := c.Send([]byte(out)); err != nil {
				return
			}
		}
		if string(pkt) == "QStartNoAckMode" {
			c.SetNoAck(true)
		}
		if string(pkt) == "D" {
			return
		}
	}
}

func (f *fakeServer) handle(pkt string) []string {
	switch {
	case strings.HasPrefix(pkt, "qSupported"):
		return []string{f.features}
	case pkt == "QStartNoAckMode":
		return []string{"OK"}
	case pkt == "?":
		return []string{f.stopReply}
	case pkt == "D":
		f.mu.Lock()
		f.detached = true
		f.mu.Unlock()
		return []string{"OK"}
	case strings.HasPrefix(pkt, "qRcmd,"):
		cmd, _ := hex.DecodeString(pkt[len("qRcmd,"):])
		f.mu.Lock()
		f.monitors = append(f.monitors, string(cmd))
		f.mu.Unlock()
		if f.rejectRcmd {
			return []string{""}
		}
		return []string{"O" + hex.EncodeToString([]byte("adapter speed: 10000 kHz\n")), "OK"}
	case strings.HasPrefix(pkt, "qXfer:"):
		return []string{f.handleXfer(pkt)}
	case strings.HasPrefix(pkt, "m"):
		return []string{f.handleRead(pkt[1:])}
	case strings.HasPrefix(pkt, "p"):
		if f.noP {
			return []string{""}
		}
		n, _ := strconv.ParseInt(pkt[1:], 16, 32)
		if f.failRegs[int(n)] {
			return []string{"E01"}
		}
		v, ok := f.regs[int(n)]
		if !ok {
			return []string{"xxxxxxxx"}
		}
		return []string{le32(v)}
	case pkt == "g":
		var sb strings.Builder
		for i := 0; i <= 22; i++ {
			sb.WriteString(le32(f.regs[i]))
		}
		return []string{sb.String()}
	}
	return []string{""}
}

func (f *fakeServer) handleXfer(pkt string) string {
	// qXfer:<object>:read:<annex>:<off>,<len>
	parts := strings.SplitN(pkt, ":", 5)
	if len(parts) != 5 {
		return "E00"
	}
	doc, ok := f.xfer[parts[1]+":"+parts[3]]
	if !ok {
		return "E00"
	}
	var off, length int
	fmt.Sscanf(parts[4], "%x,%x", &off, &length)
	if off >= len(doc) {
		return "l"
	}
	end := off + length
	if end >= len(doc) {
		return "l" + doc[off:]
	}
	return "m" + doc[off:end]
}

func (f *fakeServer) handleRead(args string) string {
	var addr, length uint32
	fmt.Sscanf(args, "%x,%x", &addr, &length)
	if f.failAt >= addr && f.failAt < addr+length {
		return "E0e"
	}
	if f.maxReply > 0 && int(length) > f.maxReply {
		length = uint32(f.maxReply)
	}
	for start, data := range f.memory {
		if addr >= start && uint64(addr)+uint64(length) <= uint64(start)+uint64(len(data)) {
			return hex.EncodeToString(data[addr-start : addr-start+length])
		}
	}
	return "E01"
}

func le32(v uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return hex.EncodeToString(b[:])
}

func (f *fakeServer) sent(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.packets {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

// open starts f on one end of a pipe and opens a Session on the other.
func (f *fakeServer) open(t *testing.T, opts probe.Options, configure ...func(*Opener)) (*Session, <-chan struct{}) {
	t.Helper()
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer server.Close()
		f.serve(server)
	}()

	opener := &Opener{
		Options: opts,
		Logger:  zap.NewNop(),
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return client, nil
		},
	}
	for _, fn := range configure {
		fn(opener)
	}

	s, err := opener.Open(context.Background(), probe.Endpoint{Host: "localhost", Port: 3333})
	if err != nil {
		client.Close()
		<-done
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		<-done
	})
	return s.(*Session), done
}
