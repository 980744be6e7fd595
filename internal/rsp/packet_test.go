package rsp

import (
	"bytes"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		payload string
		want    byte
	}{
		{"", 0x00},
		{"OK", 0x9a},
		{"g", 0x67},
		{"m0,4", 0xfd},
	}

	for _, tt := range tests {
		if got := Checksum([]byte(tt.payload)); got != tt.want {
			t.Errorf("Checksum(%q) = %02x, want %02x", tt.payload, got, tt.want)
		}
	}
}

func TestFrame(t *testing.T) {
	tests := []struct {
		payload []byte
		want    string
	}{
		{[]byte("OK"), "$OK#9a"},
		{[]byte("g"), "$g#67"},
		{[]byte("a#b"), "$a}\x03b#43"},
		{[]byte{'$', '}', '*'}, "$}\x04}]}\x0a#e2"},
	}

	for _, tt := range tests {
		if got := string(Frame(tt.payload)); got != tt.want {
			t.Errorf("Frame(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: "OK", want: "OK"},
		{name: "escape", raw: "a}\x03b", want: "a#b"},
		{name: "run length", raw: "0* ", want: "0000"},
		{name: "run length zero extra", raw: "f*\x1d", want: "f"},
		{name: "run length in middle", raw: "ab*\"c", want: "abbbbbbc"},
		{name: "dangling escape", raw: "a}", wantErr: true},
		{name: "repeat without byte", raw: "*#", wantErr: true},
		{name: "repeat without count", raw: "a*", wantErr: true},
		{name: "negative count", raw: "a*\x01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodePayload(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("DecodePayload(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	payload := []byte{0x00, '#', 0x7d, '$', '*', 0xff, 'x'}
	got, err := DecodePayload(Escape(payload))
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %x, want %x", got, payload)
	}
}

func TestReplyClassification(t *testing.T) {
	if !isConsoleOutput([]byte("O48690a")) {
		t.Error("O48690a should be console output")
	}
	if isConsoleOutput([]byte("OK")) {
		t.Error("OK is not console output")
	}
	if !isStopReply([]byte("S05")) || !isStopReply([]byte("T0505:00000000;")) {
		t.Error("S and T replies are stop replies")
	}
	if isStopReply([]byte("OK")) {
		t.Error("OK is not a stop reply")
	}

	e := parseErrorReply("m", []byte("E0e"))
	if e == nil || e.Code != 0x0e {
		t.Fatalf("parseErrorReply(E0e) = %v", e)
	}
	if parseErrorReply("m", []byte("deadbeef")) != nil {
		t.Error("hex data is not an error reply")
	}
}

func TestPacketName(t *testing.T) {
	tests := map[string]string{
		"m20000000,100":                   "m",
		"p19":                             "p",
		"qXfer:memory-map:read::0,3f0":    "qXfer",
		"qRcmd,68616c74":                  "qRcmd",
		"g":                               "g",
		"QStartNoAckMode":                 "QStartNoAckMode",
		"qSupported:multiprocess-;swbrea": "qSupported",
	}
	for payload, want := range tests {
		if got := packetName(payload); got != want {
			t.Errorf("packetName(%q) = %q, want %q", payload, got, want)
		}
	}
}
