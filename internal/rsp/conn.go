package rsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/logging"
)

// MaxRetransmits bounds how often a packet is resent after a '-' ack.
const MaxRetransmits = 3

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Conn frames packets over a byte stream. It handles acknowledgements,
// retransmission and checksums; it knows nothing about packet contents.
type Conn struct {
	rw      io.ReadWriter
	r       *bufio.Reader
	noAck   bool
	timeout time.Duration
	log     *zap.Logger
}

// NewConn wraps rw. When rw supports deadlines (net.Conn), every guarded
// exchange is bounded by timeout and by the context deadline.
func NewConn(rw io.ReadWriter, log *zap.Logger, timeout time.Duration) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conn{
		rw:      rw,
		r:       bufio.NewReaderSize(rw, 4096),
		timeout: timeout,
		log:     log,
	}
}

// SetNoAck switches acknowledgements off after QStartNoAckMode.
func (c *Conn) SetNoAck(noAck bool) {
	c.noAck = noAck
}

// NoAck reports whether acknowledgements are disabled.
func (c *Conn) NoAck() bool {
	return c.noAck
}

// Send writes one packet and, in ack mode, waits for '+', resending on '-'.
func (c *Conn) Send(payload []byte) error {
	frame := Frame(payload)
	logging.LogPacket(c.log, "send", payload)

	for attempt := 0; ; attempt++ {
		if _, err := c.rw.Write(frame); err != nil {
			return &ProtocolError{Op: "send", Err: err}
		}
		if c.noAck {
			return nil
		}

		ack, err := c.readAck()
		if err != nil {
			return &ProtocolError{Op: "send", Err: err}
		}
		if ack == '+' {
			return nil
		}
		if attempt >= MaxRetransmits {
			return &ProtocolError{Op: "send", Err: fmt.Errorf("packet rejected %d times", attempt+1)}
		}
		c.log.Debug("server requested retransmission", zap.Int("attempt", attempt+1))
	}
}

// readAck reads the next '+' or '-'. A packet start without a preceding
// ack is taken as an implicit '+' and left unread.
func (c *Conn) readAck() (byte, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case '+', '-':
			return b, nil
		case packetStart:
			_ = c.r.UnreadByte()
			return '+', nil
		}
	}
}

// Receive reads one packet, verifies its checksum and acknowledges it.
// The returned payload is unescaped and run-length decoded.
func (c *Conn) Receive() ([]byte, error) {
	for attempt := 0; ; attempt++ {
		raw, sum, err := c.readFrame()
		if err != nil {
			return nil, &ProtocolError{Op: "receive", Err: err}
		}

		if got := Checksum(raw); got != sum {
			if c.noAck || attempt >= MaxRetransmits {
				return nil, &ProtocolError{Op: "receive", Err: fmt.Errorf("checksum mismatch: got %02x, packet says %02x", got, sum)}
			}
			c.log.Debug("bad checksum, requesting retransmission", zap.Int("attempt", attempt+1))
			if _, err := c.rw.Write([]byte{'-'}); err != nil {
				return nil, &ProtocolError{Op: "receive", Err: err}
			}
			continue
		}

		if !c.noAck {
			if _, err := c.rw.Write([]byte{'+'}); err != nil {
				return nil, &ProtocolError{Op: "receive", Err: err}
			}
		}

		payload, err := DecodePayload(raw)
		if err != nil {
			return nil, &ProtocolError{Op: "receive", Err: err}
		}
		logging.LogPacket(c.log, "recv", payload)
		return payload, nil
	}
}

// readFrame returns the raw payload and declared checksum of the next
// packet. Bytes before '$' (stray acks, notifications) are skipped.
func (c *Conn) readFrame() ([]byte, byte, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		if b == packetStart {
			break
		}
	}

	raw, err := c.r.ReadBytes(packetEnd)
	if err != nil {
		return nil, 0, err
	}
	raw = raw[:len(raw)-1]

	var sumHex [2]byte
	if _, err := io.ReadFull(c.r, sumHex[:]); err != nil {
		return nil, 0, err
	}
	sum, err := strconv.ParseUint(string(sumHex[:]), 16, 8)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid checksum %q", sumHex[:])
	}
	return raw, byte(sum), nil
}

// Interrupt sends the out-of-band break byte.
func (c *Conn) Interrupt() error {
	logging.LogRawBytes("rsp interrupt", []byte{interruptByte})
	if _, err := c.rw.Write([]byte{interruptByte}); err != nil {
		return &ProtocolError{Op: "interrupt", Err: err}
	}
	return nil
}

// Guard bounds the I/O done until the returned release func is called by
// the connection timeout and ctx. Cancelling ctx unblocks pending reads.
func (c *Conn) Guard(ctx context.Context) (release func()) {
	d, ok := c.rw.(deadliner)
	if !ok {
		return func() {}
	}

	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	_ = d.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = d.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = d.SetDeadline(time.Time{})
	}
}

// classify turns deadline and cancellation failures into ctx errors or
// ErrTimeout.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
