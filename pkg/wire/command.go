package wire

import (
	"errors"
	"fmt"
)

// CommandID identifies a system endpoint command.
type CommandID uint8

// System endpoint command identifiers. The numeric values are fixed by the
// wire protocol.
const (
	// CommandNoop is a liveness probe; the secondary echoes it back.
	CommandNoop CommandID = 0x01

	// CommandReset asks the secondary to reboot; the reply carries a
	// 4-byte status.
	CommandReset CommandID = 0x02

	// CommandPropertyGet requests the value of a property.
	CommandPropertyGet CommandID = 0x03

	// CommandPropertySet writes the value of a property.
	CommandPropertySet CommandID = 0x04

	// CommandPropertyIs carries a property value from the secondary,
	// either as the reply to a get/set or unsolicited.
	CommandPropertyIs CommandID = 0x05
)

// String returns the command name.
func (c CommandID) String() string {
	switch c {
	case CommandNoop:
		return "NOOP"
	case CommandReset:
		return "RESET"
	case CommandPropertyGet:
		return "PROP_VALUE_GET"
	case CommandPropertySet:
		return "PROP_VALUE_SET"
	case CommandPropertyIs:
		return "PROP_VALUE_IS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(c))
	}
}

// Framing constants.
const (
	// HeaderSize is the fixed command header size in bytes.
	HeaderSize = 3

	// MaxPayloadSize is the largest payload the 1-byte length field can
	// describe.
	MaxPayloadSize = 255
)

// Codec errors.
var (
	// ErrMalformedFrame indicates the buffer length does not match the
	// header length field.
	ErrMalformedFrame = errors.New("malformed system command frame")

	// ErrPayloadTooLarge indicates the payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("system command payload too large")
)

// Command is a decoded system endpoint frame.
type Command struct {
	// ID is the command identifier.
	ID CommandID

	// Seq is the wrapping sequence number chosen by the primary.
	Seq uint8

	// Payload is the command payload (without the header).
	Payload []byte
}

// EncodeCommand serializes a command to wire format.
func EncodeCommand(cmd Command) ([]byte, error) {
	if len(cmd.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(cmd.Payload), MaxPayloadSize)
	}

	buf := make([]byte, HeaderSize+len(cmd.Payload))
	buf[0] = uint8(cmd.ID)
	buf[1] = cmd.Seq
	buf[2] = uint8(len(cmd.Payload))
	copy(buf[HeaderSize:], cmd.Payload)
	return buf, nil
}

// DecodeCommand parses a received buffer. The header length field must
// match the buffer length exactly; anything else is ErrMalformedFrame.
func DecodeCommand(buf []byte) (Command, error) {
	if len(buf) < HeaderSize {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(buf))
	}

	length := int(buf[2])
	if length != len(buf)-HeaderSize {
		return Command{}, fmt.Errorf("%w: header length %d, payload length %d",
			ErrMalformedFrame, length, len(buf)-HeaderSize)
	}

	return Command{
		ID:      CommandID(buf[0]),
		Seq:     buf[1],
		Payload: buf[HeaderSize:],
	}, nil
}
