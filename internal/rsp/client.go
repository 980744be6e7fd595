package rsp

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultPacketSize is assumed when qSupported does not report PacketSize.
const DefaultPacketSize = 0x400

// supportedRequest is what fwdump announces in qSupported.
const supportedRequest = "qSupported:multiprocess-;swbreak+;hwbreak+;qRelocInsn-;xmlRegisters=arm"

// Features is the server's qSupported reply.
type Features struct {
	// PacketSize is the largest packet the server accepts
	PacketSize int
	// MemoryMap means qXfer:memory-map:read is available
	MemoryMap bool
	// TargetXML means qXfer:features:read is available
	TargetXML bool
	// NoAckMode means QStartNoAckMode is available
	NoAckMode bool
	// Raw holds every advertised feature; "+"/"-" flags map to "+"/"-"
	Raw map[string]string
}

// ParseFeatures decodes a qSupported reply such as
// "PacketSize=3fff;qXfer:memory-map:read+;QStartNoAckMode+".
func ParseFeatures(reply string) Features {
	f := Features{PacketSize: DefaultPacketSize, Raw: make(map[string]string)}
	for _, item := range strings.Split(reply, ";") {
		if item == "" {
			continue
		}
		name, value := item, ""
		if i := strings.IndexByte(item, '='); i >= 0 {
			name, value = item[:i], item[i+1:]
		} else if last := item[len(item)-1]; last == '+' || last == '-' || last == '?' {
			name, value = item[:len(item)-1], string(last)
		}
		f.Raw[name] = value
	}

	if v, ok := f.Raw["PacketSize"]; ok {
		if n, err := strconv.ParseUint(v, 16, 32); err == nil && n > 0 {
			f.PacketSize = int(n)
		}
	}
	f.MemoryMap = f.Raw["qXfer:memory-map:read"] == "+"
	f.TargetXML = f.Raw["qXfer:features:read"] == "+"
	f.NoAckMode = f.Raw["QStartNoAckMode"] == "+"
	return f
}

// Client issues GDB remote protocol requests over a Conn. A Client is not
// safe for concurrent use.
type Client struct {
	conn     *Conn
	closer   io.Closer
	features Features
	log      *zap.Logger
}

// NewClient wraps conn. closer, if non-nil, is closed by Close.
func NewClient(conn *Conn, closer io.Closer, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		conn:     conn,
		closer:   closer,
		features: Features{PacketSize: DefaultPacketSize},
		log:      log,
	}
}

// Features returns the features negotiated by Handshake.
func (c *Client) Features() Features {
	return c.features
}

// request sends payload and returns the first reply that is not console
// output.
func (c *Client) request(ctx context.Context, payload string) ([]byte, error) {
	release := c.conn.Guard(ctx)
	defer release()

	if err := c.conn.Send([]byte(payload)); err != nil {
		return nil, classify(ctx, err)
	}
	for {
		reply, err := c.conn.Receive()
		if err != nil {
			return nil, classify(ctx, err)
		}
		if isConsoleOutput(reply) {
			c.logConsole(reply)
			continue
		}
		if e := parseErrorReply(packetName(payload), reply); e != nil {
			return nil, e
		}
		return reply, nil
	}
}

func (c *Client) logConsole(reply []byte) {
	text, _ := hex.DecodeString(string(reply[1:]))
	c.log.Debug("server console output", zap.String("text", strings.TrimRight(string(text), "\n")))
}

// Handshake negotiates features and enters no-ack mode when offered.
func (c *Client) Handshake(ctx context.Context) (Features, error) {
	reply, err := c.request(ctx, supportedRequest)
	if err != nil {
		return Features{}, err
	}
	c.features = ParseFeatures(string(reply))
	c.log.Debug("server features",
		zap.Int("packet_size", c.features.PacketSize),
		zap.Bool("memory_map", c.features.MemoryMap),
		zap.Bool("target_xml", c.features.TargetXML),
		zap.Bool("no_ack", c.features.NoAckMode),
	)

	if c.features.NoAckMode {
		reply, err := c.request(ctx, "QStartNoAckMode")
		if err != nil {
			return c.features, err
		}
		if string(reply) == "OK" {
			c.conn.SetNoAck(true)
		}
	}
	return c.features, nil
}

// StopReason sends '?' and returns the raw reply.
func (c *Client) StopReason(ctx context.Context) ([]byte, error) {
	return c.request(ctx, "?")
}

// Halt interrupts the target and waits for the stop reply.
func (c *Client) Halt(ctx context.Context) ([]byte, error) {
	release := c.conn.Guard(ctx)
	defer release()

	if err := c.conn.Interrupt(); err != nil {
		return nil, classify(ctx, err)
	}
	for {
		reply, err := c.conn.Receive()
		if err != nil {
			return nil, classify(ctx, err)
		}
		if isConsoleOutput(reply) {
			c.logConsole(reply)
			continue
		}
		if !isStopReply(reply) {
			return nil, &ProtocolError{Op: "halt", Err: fmt.Errorf("unexpected reply %q", reply)}
		}
		return reply, nil
	}
}

// ReadMemory issues one "m" request. The server may return fewer bytes
// than asked for.
func (c *Client) ReadMemory(ctx context.Context, addr, length uint32) ([]byte, error) {
	reply, err := c.request(ctx, fmt.Sprintf("m%x,%x", addr, length))
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 {
		return nil, ErrUnsupported
	}
	data, err := hex.DecodeString(string(reply))
	if err != nil {
		return nil, &ProtocolError{Op: "read memory", Err: err}
	}
	return data, nil
}

// ReadRegister issues "p<n>" and returns the raw hex reply.
func (c *Client) ReadRegister(ctx context.Context, num int) (string, error) {
	reply, err := c.request(ctx, fmt.Sprintf("p%x", num))
	if err != nil {
		return "", err
	}
	if len(reply) == 0 {
		return "", ErrUnsupported
	}
	return string(reply), nil
}

// ReadRegisters issues "g" and returns the raw hex reply.
func (c *Client) ReadRegisters(ctx context.Context) (string, error) {
	reply, err := c.request(ctx, "g")
	if err != nil {
		return "", err
	}
	if len(reply) == 0 {
		return "", ErrUnsupported
	}
	return string(reply), nil
}

// Xfer reads a complete qXfer object, chunk by chunk.
func (c *Client) Xfer(ctx context.Context, object, annex string) ([]byte, error) {
	chunk := c.features.PacketSize - 8
	if chunk < 64 {
		chunk = 64
	}

	var buf bytes.Buffer
	for {
		reply, err := c.request(ctx, fmt.Sprintf("qXfer:%s:read:%s:%x,%x", object, annex, buf.Len(), chunk))
		if err != nil {
			return nil, err
		}
		if len(reply) == 0 {
			return nil, ErrUnsupported
		}
		switch reply[0] {
		case 'm':
			if len(reply) == 1 {
				return nil, &ProtocolError{Op: "qXfer", Err: fmt.Errorf("empty 'm' reply for %s", annex)}
			}
			buf.Write(reply[1:])
		case 'l':
			buf.Write(reply[1:])
			return buf.Bytes(), nil
		default:
			return nil, &ProtocolError{Op: "qXfer", Err: fmt.Errorf("unexpected reply %q", reply)}
		}
	}
}

// Monitor runs a server command through qRcmd and returns its console output.
func (c *Client) Monitor(ctx context.Context, command string) (string, error) {
	release := c.conn.Guard(ctx)
	defer release()

	if err := c.conn.Send([]byte("qRcmd," + hexString(command))); err != nil {
		return "", classify(ctx, err)
	}

	var out strings.Builder
	for {
		reply, err := c.conn.Receive()
		if err != nil {
			return out.String(), classify(ctx, err)
		}
		switch {
		case string(reply) == "OK":
			return out.String(), nil
		case len(reply) == 0:
			return "", ErrUnsupported
		case isConsoleOutput(reply):
			text, _ := hex.DecodeString(string(reply[1:]))
			out.Write(text)
		default:
			if e := parseErrorReply("qRcmd", reply); e != nil {
				return out.String(), e
			}
			// Some servers answer with the hex encoded output directly
			if text, err := hex.DecodeString(string(reply)); err == nil {
				out.Write(text)
				return out.String(), nil
			}
			return out.String(), &ProtocolError{Op: "monitor", Err: fmt.Errorf("unexpected reply %q", reply)}
		}
	}
}

// Detach releases the target, which resumes execution.
func (c *Client) Detach(ctx context.Context) error {
	reply, err := c.request(ctx, "D")
	if err != nil {
		return err
	}
	if string(reply) != "OK" {
		return &ProtocolError{Op: "detach", Err: fmt.Errorf("unexpected reply %q", reply)}
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
