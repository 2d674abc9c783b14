package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode(encode(id, value)) == (id, value) for the integer widths.
func TestPropertyRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		id    PropertyID
		value []byte
	}{
		{name: "u8", id: PropProtocolVersion, value: U8Bytes(0x42)},
		{name: "u16", id: PropRxCapability, value: U16Bytes(0x1234)},
		{name: "u32", id: PropCapabilities, value: U32Bytes(0xDEADBEEF)},
		{name: "u64", id: PropBootloaderInfo, value: U64Bytes(0x0102030405060708)},
		{name: "opaque", id: PropSecondaryAppVersion, value: []byte("v4.1.0")},
		{name: "no value", id: PropLastStatus, value: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := EncodeProperty(tt.id, tt.value)

			id, value, err := DecodeProperty(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.value, value)
		})
	}
}

// A property-set of u32 0x12345678 to property 0x0A must produce the exact
// little-endian payload bytes.
func TestPropertyWireBytes(t *testing.T) {
	payload := EncodeProperty(0x0A, U32Bytes(0x12345678))

	assert.Equal(t, []byte{0x0A, 0x00, 0x00, 0x00, 0x78, 0x56, 0x34, 0x12}, payload)
}

func TestDecodePropertyShort(t *testing.T) {
	_, _, err := DecodeProperty([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrShortProperty)
}

func TestValueSwapOnlyIntegerWidths(t *testing.T) {
	// 3-byte values are opaque and must come back verbatim.
	opaque := []byte{0xAA, 0xBB, 0xCC}
	payload := EncodeProperty(PropCapabilities, opaque)
	assert.Equal(t, opaque, payload[PropertyIDSize:])

	// 4-byte values are little-endian on the wire regardless of host order.
	payload = EncodeProperty(PropCapabilities, U32Bytes(0x01020304))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, payload[PropertyIDSize:])
}

func TestEndpointStateProperty(t *testing.T) {
	p := EndpointStateProperty(7)
	assert.Equal(t, PropEndpointState0+7, p)
	assert.True(t, p.IsEndpointState())
	assert.Equal(t, uint8(7), p.EndpointID())

	assert.False(t, PropLastStatus.IsEndpointState())
	assert.True(t, PropEndpointState255.IsEndpointState())
	assert.False(t, (PropEndpointState255 + 1).IsEndpointState())
}

func TestUint32Value(t *testing.T) {
	v, err := Uint32Value(U32Bytes(1234))
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), v)

	_, err = Uint32Value([]byte{1, 2})
	require.Error(t, err)
}

func TestU32BytesNativeOrder(t *testing.T) {
	b := U32Bytes(0x11223344)
	assert.Equal(t, uint32(0x11223344), binary.NativeEndian.Uint32(b))
}

func TestPropertyIDString(t *testing.T) {
	assert.Equal(t, "PROP_LAST_STATUS", PropLastStatus.String())
	assert.Equal(t, "PROP_ENDPOINT_STATE_12", EndpointStateProperty(12).String())
	assert.Equal(t, "PROP_UNKNOWN(0x00abcdef)", PropertyID(0xABCDEF).String())
}
