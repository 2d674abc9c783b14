package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{
			name: "noop empty payload",
			cmd:  Command{ID: CommandNoop, Seq: 0},
			want: []byte{0x01, 0x00, 0x00},
		},
		{
			name: "reset with seq",
			cmd:  Command{ID: CommandReset, Seq: 0x7F},
			want: []byte{0x02, 0x7F, 0x00},
		},
		{
			name: "property get payload",
			cmd:  Command{ID: CommandPropertyGet, Seq: 3, Payload: []byte{0x0A, 0x00, 0x00, 0x00}},
			want: []byte{0x03, 0x03, 0x04, 0x0A, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCommandPayloadTooLarge(t *testing.T) {
	_, err := EncodeCommand(Command{ID: CommandPropertySet, Payload: make([]byte, 256)})
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeCommandRoundTrip(t *testing.T) {
	cmd := Command{ID: CommandPropertyIs, Seq: 42, Payload: []byte{1, 2, 3, 4, 5}}

	buf, err := EncodeCommand(cmd)
	require.NoError(t, err)

	got, err := DecodeCommand(buf)
	require.NoError(t, err)
	assert.Equal(t, cmd, got)
}

// Every decoded frame must satisfy len(buffer)-3 == header.length.
func TestDecodeCommandLengthMismatch(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "empty", buf: nil},
		{name: "short header", buf: []byte{0x01, 0x00}},
		{name: "length larger than buffer", buf: []byte{0x01, 0x00, 0x05, 0xAA}},
		{name: "length smaller than buffer", buf: []byte{0x01, 0x00, 0x00, 0xAA}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand(tt.buf)
			require.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestCommandIDString(t *testing.T) {
	assert.Equal(t, "NOOP", CommandNoop.String())
	assert.Equal(t, "PROP_VALUE_IS", CommandPropertyIs.String())
	assert.Equal(t, "UNKNOWN(0x77)", CommandID(0x77).String())
}
