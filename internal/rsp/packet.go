package rsp

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	packetStart = '$'
	packetEnd   = '#'
	escapeByte  = '}'
	repeatByte  = '*'
	escapeXor   = 0x20

	// interruptByte halts a running target when sent outside a packet.
	interruptByte = 0x03

	// rleBias is subtracted from the repeat count byte following '*'.
	rleBias = 29
)

// Checksum returns the modulo 256 sum of the payload bytes as sent on the wire.
func Checksum(raw []byte) byte {
	var sum byte
	for _, b := range raw {
		sum += b
	}
	return sum
}

// Escape applies binary escaping to payload: '#', '$', '}' and '*' are
// sent as '}' followed by the byte XOR 0x20.
func Escape(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		switch b {
		case packetStart, packetEnd, escapeByte, repeatByte:
			out = append(out, escapeByte, b^escapeXor)
		default:
			out = append(out, b)
		}
	}
	return out
}

// Frame returns the complete wire form "$<escaped payload>#<checksum>".
func Frame(payload []byte) []byte {
	raw := Escape(payload)
	out := make([]byte, 0, len(raw)+4)
	out = append(out, packetStart)
	out = append(out, raw...)
	out = append(out, packetEnd)
	out = append(out, fmt.Sprintf("%02x", Checksum(raw))...)
	return out
}

// DecodePayload undoes escaping and run-length encoding of a received
// payload. "X*n" expands to X followed by n-29 further copies of X.
func DecodePayload(raw []byte) ([]byte, error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		switch b := raw[i]; b {
		case escapeByte:
			if i+1 >= len(raw) {
				return nil, fmt.Errorf("dangling escape at end of packet")
			}
			i++
			out = append(out, raw[i]^escapeXor)
		case repeatByte:
			if len(out) == 0 || i+1 >= len(raw) {
				return nil, fmt.Errorf("malformed run-length encoding at offset %d", i)
			}
			i++
			count := int(raw[i]) - rleBias
			if count < 0 {
				return nil, fmt.Errorf("invalid run-length count 0x%02x at offset %d", raw[i], i)
			}
			last := out[len(out)-1]
			for j := 0; j < count; j++ {
				out = append(out, last)
			}
		default:
			out = append(out, b)
		}
	}
	return out, nil
}

// isStopReply reports whether a reply is an S or T stop notification.
func isStopReply(p []byte) bool {
	return len(p) >= 3 && (p[0] == 'S' || p[0] == 'T')
}

// isConsoleOutput reports whether a reply is an "O<hex>" console packet.
func isConsoleOutput(p []byte) bool {
	if len(p) < 3 || p[0] != 'O' || len(p)%2 != 1 {
		return false
	}
	_, err := hex.DecodeString(string(p[1:]))
	return err == nil
}

// parseErrorReply recognises "Enn" error replies.
func parseErrorReply(packet string, p []byte) *ErrorReply {
	if len(p) != 3 || p[0] != 'E' {
		return nil
	}
	code, err := hex.DecodeString(string(p[1:]))
	if err != nil {
		return nil
	}
	return &ErrorReply{Packet: packet, Code: code[0]}
}

// hexString hex encodes s, as used by qRcmd.
func hexString(s string) string {
	return hex.EncodeToString([]byte(s))
}

// packetName returns the command part of a request for error messages.
func packetName(payload string) string {
	if len(payload) > 1 && (payload[0] == 'm' || payload[0] == 'p') {
		return payload[:1]
	}
	if i := strings.IndexAny(payload, ":,;"); i > 0 {
		return payload[:i]
	}
	return payload
}
