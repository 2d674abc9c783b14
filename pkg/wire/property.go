package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PropertyID identifies a property of the secondary. It travels as a 4-byte
// little-endian field at the start of a property command payload.
type PropertyID uint32

// Reserved property identifiers.
const (
	// PropLastStatus is reported by the secondary to communicate its last
	// status code, typically after a reboot.
	PropLastStatus PropertyID = 0x00

	// PropProtocolVersion is the CPC protocol version of the secondary.
	PropProtocolVersion PropertyID = 0x01

	// PropCapabilities is the capability bitmask of the secondary.
	PropCapabilities PropertyID = 0x02

	// PropSecondaryCPCVersion is the CPC library version of the secondary.
	PropSecondaryCPCVersion PropertyID = 0x03

	// PropSecondaryAppVersion is the application version of the secondary.
	PropSecondaryAppVersion PropertyID = 0x04

	// PropRxCapability is the maximum receive payload of the secondary.
	PropRxCapability PropertyID = 0x20

	// PropBootloaderInfo describes the bootloader of the secondary.
	PropBootloaderInfo PropertyID = 0x200

	// PropBootloaderRebootMode selects the reboot mode before a reset.
	PropBootloaderRebootMode PropertyID = 0x202

	// PropEndpointState0 through PropEndpointState255 mirror the state of
	// each endpoint on the secondary.
	PropEndpointState0   PropertyID = 0x1000
	PropEndpointState255 PropertyID = 0x10FF
)

// PropertyIDSize is the encoded size of a property id.
const PropertyIDSize = 4

// ErrShortProperty indicates a property payload shorter than the property id
// field.
var ErrShortProperty = errors.New("property payload shorter than property id")

// EndpointStateProperty returns the property id mirroring the state of the
// given endpoint.
func EndpointStateProperty(endpointID uint8) PropertyID {
	return PropEndpointState0 + PropertyID(endpointID)
}

// IsEndpointState reports whether p falls in the endpoint-state range.
func (p PropertyID) IsEndpointState() bool {
	return p >= PropEndpointState0 && p <= PropEndpointState255
}

// EndpointID returns the endpoint this endpoint-state property refers to.
// Only meaningful when IsEndpointState is true.
func (p PropertyID) EndpointID() uint8 {
	return uint8(p - PropEndpointState0)
}

// String returns the property name.
func (p PropertyID) String() string {
	switch p {
	case PropLastStatus:
		return "PROP_LAST_STATUS"
	case PropProtocolVersion:
		return "PROP_PROTOCOL_VERSION"
	case PropCapabilities:
		return "PROP_CAPABILITIES"
	case PropSecondaryCPCVersion:
		return "PROP_SECONDARY_CPC_VERSION"
	case PropSecondaryAppVersion:
		return "PROP_SECONDARY_APP_VERSION"
	case PropRxCapability:
		return "PROP_RX_CAPABILITY"
	case PropBootloaderInfo:
		return "PROP_BOOTLOADER_INFO"
	case PropBootloaderRebootMode:
		return "PROP_BOOTLOADER_REBOOT_MODE"
	}
	if p.IsEndpointState() {
		return fmt.Sprintf("PROP_ENDPOINT_STATE_%d", p.EndpointID())
	}
	return fmt.Sprintf("PROP_UNKNOWN(0x%08x)", uint32(p))
}

// EncodeProperty builds the payload of a property command: the little-endian
// property id followed by the value in wire byte order.
func EncodeProperty(id PropertyID, value []byte) []byte {
	payload := make([]byte, PropertyIDSize+len(value))
	binary.LittleEndian.PutUint32(payload, uint32(id))
	copy(payload[PropertyIDSize:], valueToWire(value))
	return payload
}

// DecodeProperty parses a property command payload into the property id and
// the value in native byte order.
func DecodeProperty(payload []byte) (PropertyID, []byte, error) {
	if len(payload) < PropertyIDSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrShortProperty, len(payload))
	}
	id := PropertyID(binary.LittleEndian.Uint32(payload))
	return id, valueFromWire(payload[PropertyIDSize:]), nil
}

// valueToWire converts a native-order property value to wire (little-endian)
// byte order. Only lengths 2, 4 and 8 are integers; everything else is
// opaque and copied as-is.
func valueToWire(value []byte) []byte {
	switch len(value) {
	case 2:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, binary.NativeEndian.Uint16(value))
		return out
	case 4:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, binary.NativeEndian.Uint32(value))
		return out
	case 8:
		out := make([]byte, 8)
		binary.LittleEndian.PutUint64(out, binary.NativeEndian.Uint64(value))
		return out
	default:
		out := make([]byte, len(value))
		copy(out, value)
		return out
	}
}

// valueFromWire is the inverse of valueToWire.
func valueFromWire(value []byte) []byte {
	switch len(value) {
	case 2:
		out := make([]byte, 2)
		binary.NativeEndian.PutUint16(out, binary.LittleEndian.Uint16(value))
		return out
	case 4:
		out := make([]byte, 4)
		binary.NativeEndian.PutUint32(out, binary.LittleEndian.Uint32(value))
		return out
	case 8:
		out := make([]byte, 8)
		binary.NativeEndian.PutUint64(out, binary.LittleEndian.Uint64(value))
		return out
	default:
		out := make([]byte, len(value))
		copy(out, value)
		return out
	}
}

// Typed value helpers. Property values cross the codec boundary as
// native-order bytes; these build and read them for the common widths.

// U8Bytes returns the native-order bytes of a 1-byte value.
func U8Bytes(v uint8) []byte { return []byte{v} }

// U16Bytes returns the native-order bytes of a 2-byte value.
func U16Bytes(v uint16) []byte {
	out := make([]byte, 2)
	binary.NativeEndian.PutUint16(out, v)
	return out
}

// U32Bytes returns the native-order bytes of a 4-byte value.
func U32Bytes(v uint32) []byte {
	out := make([]byte, 4)
	binary.NativeEndian.PutUint32(out, v)
	return out
}

// U64Bytes returns the native-order bytes of an 8-byte value.
func U64Bytes(v uint64) []byte {
	out := make([]byte, 8)
	binary.NativeEndian.PutUint64(out, v)
	return out
}

// Uint32Value reads a 4-byte native-order value.
func Uint32Value(value []byte) (uint32, error) {
	if len(value) != 4 {
		return 0, fmt.Errorf("property value is %d bytes, want 4", len(value))
	}
	return binary.NativeEndian.Uint32(value), nil
}
