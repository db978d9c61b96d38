package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		want    []byte
	}{
		{
			name:    "empty payload",
			cmd:     FindAlarm,
			payload: nil,
			want:    []byte{0xAA, 0x01, 0x00, 0x55},
		},
		{
			name:    "single byte payload",
			cmd:     DisconnectAlarm,
			payload: []byte{0x01},
			want:    []byte{0xAA, 0x02, 0x01, 0x01, 0x55},
		},
		{
			name:    "pairing code payload",
			cmd:     Pairing,
			payload: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x42},
			want:    []byte{0xAA, 0x05, 0x05, 0xDE, 0xAD, 0xBE, 0xEF, 0x42, 0x55},
		},
		{
			name:    "device info query",
			cmd:     DeviceInfoQuery,
			payload: nil,
			want:    []byte{0xAA, 0xCC, 0x00, 0x55},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.cmd, tt.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := Encode(FindAlarm, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Encode() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestEncodeMaxPayload(t *testing.T) {
	payload := make([]byte, MaxPayloadSize)
	got, err := Encode(SosAlarm, payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(got) != minFrameSize+MaxPayloadSize {
		t.Errorf("Encode() frame length = %d, want %d", len(got), minFrameSize+MaxPayloadSize)
	}
	if got[2] != 0xFF {
		t.Errorf("Encode() length byte = 0x%02X, want 0xFF", got[2])
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantCmd     Command
		wantPayload []byte
	}{
		{
			name:        "empty payload",
			data:        []byte{0xAA, 0x01, 0x00, 0x55},
			wantCmd:     FindAlarm,
			wantPayload: []byte{},
		},
		{
			name:        "with payload",
			data:        []byte{0xAA, 0x04, 0x02, 0x01, 0x00, 0x55},
			wantCmd:     AlarmStatusQuery,
			wantPayload: []byte{0x01, 0x00},
		},
		{
			name:        "unknown command decodes",
			data:        []byte{0xAA, 0x7F, 0x01, 0x09, 0x55},
			wantCmd:     Command(0x7F),
			wantPayload: []byte{0x09},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Command != tt.wantCmd {
				t.Errorf("Decode() command = %v, want %v", got.Command, tt.wantCmd)
			}
			if !bytes.Equal(got.Payload, tt.wantPayload) {
				t.Errorf("Decode() payload = % X, want % X", got.Payload, tt.wantPayload)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "empty input",
			data:    nil,
			wantErr: ErrTooShort,
		},
		{
			name:    "three bytes",
			data:    []byte{0xAA, 0x01, 0x55},
			wantErr: ErrTooShort,
		},
		{
			name:    "wrong header",
			data:    []byte{0xAB, 0x01, 0x00, 0x55},
			wantErr: ErrBadFraming,
		},
		{
			name:    "wrong tail",
			data:    []byte{0xAA, 0x01, 0x00, 0x56},
			wantErr: ErrBadFraming,
		},
		{
			name:    "declared length exceeds available",
			data:    []byte{0xAA, 0x01, 0x05, 0x01, 0x02, 0x55},
			wantErr: ErrTruncatedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodePayloadIsCopy(t *testing.T) {
	data := []byte{0xAA, 0x03, 0x01, 0x42, 0x55}
	frame, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	data[3] = 0xFF
	if frame.Payload[0] != 0x42 {
		t.Error("Decode() payload aliases the input buffer")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	commands := []Command{FindAlarm, DisconnectAlarm, SosAlarm, AlarmStatusQuery, Pairing, DeviceInfoQuery}
	payloads := [][]byte{nil, {0x00}, {0x01, 0x02, 0x03}, make([]byte, MaxPayloadSize)}

	for _, cmd := range commands {
		for _, payload := range payloads {
			encoded, err := Encode(cmd, payload)
			if err != nil {
				t.Fatalf("Encode(%v, %d bytes) error = %v", cmd, len(payload), err)
			}
			frame, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode(Encode(%v)) error = %v", cmd, err)
			}
			if frame.Command != cmd {
				t.Errorf("round trip command = %v, want %v", frame.Command, cmd)
			}
			if !bytes.Equal(frame.Payload, payload) {
				t.Errorf("round trip payload mismatch for %v", cmd)
			}
		}
	}
}

func TestCommandKnown(t *testing.T) {
	for _, cmd := range []Command{FindAlarm, DisconnectAlarm, SosAlarm, AlarmStatusQuery, Pairing, DeviceInfoQuery} {
		if !cmd.Known() {
			t.Errorf("Known() = false for %v", cmd)
		}
	}
	for _, cmd := range []Command{0x00, 0x06, 0x7F, 0xCB, 0xFF} {
		if cmd.Known() {
			t.Errorf("Known() = true for 0x%02X", byte(cmd))
		}
	}
}

func TestCommandString(t *testing.T) {
	if got := SosAlarm.String(); got != "SosAlarm" {
		t.Errorf("String() = %q, want %q", got, "SosAlarm")
	}
	if got := Command(0x99).String(); got != "Unknown(0x99)" {
		t.Errorf("String() = %q, want %q", got, "Unknown(0x99)")
	}
}
