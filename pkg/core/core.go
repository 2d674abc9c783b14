package core

import "fmt"

// EndpointSystem is the reserved endpoint id of the system endpoint.
const EndpointSystem uint8 = 0

// OpenFlags configure an endpoint when it is opened.
type OpenFlags uint8

const (
	// OpenUFrameEnable allows the endpoint to exchange unnumbered frames.
	OpenUFrameEnable OpenFlags = 1 << 0

	// OpenIFrameDisable rejects information frames on the endpoint.
	OpenIFrameDisable OpenFlags = 1 << 1
)

// WriteFlags select the frame class of an outbound write.
type WriteFlags uint8

const (
	// WriteUnnumberedPoll sends the payload as an unnumbered frame with
	// the poll bit set.
	WriteUnnumberedPoll WriteFlags = 1 << 0

	// WriteInformationPoll sends the payload as an information frame with
	// the poll bit set.
	WriteInformationPoll WriteFlags = 1 << 1

	// WriteUnnumberedReset sends an unnumbered reset command; the payload
	// must be empty.
	WriteUnnumberedReset WriteFlags = 1 << 2
)

// EndpointState describes the lifecycle state of an endpoint. The numeric
// values travel on the wire in endpoint-state properties as 4-byte
// little-endian integers.
type EndpointState uint32

const (
	// StateOpen means the endpoint is connected and usable.
	StateOpen EndpointState = 0

	// StateClosed means the endpoint is not open.
	StateClosed EndpointState = 1

	// StateClosing means the endpoint is draining before close.
	StateClosing EndpointState = 2

	// StateErrorDestinationUnreachable means the remote side closed or
	// never opened the endpoint.
	StateErrorDestinationUnreachable EndpointState = 3

	// StateErrorSecurityIncident means a security fault was detected.
	StateErrorSecurityIncident EndpointState = 4

	// StateErrorFault means the endpoint failed for another reason.
	StateErrorFault EndpointState = 5
)

// String returns the state name.
func (s EndpointState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateClosing:
		return "CLOSING"
	case StateErrorDestinationUnreachable:
		return "ERROR_DESTINATION_UNREACHABLE"
	case StateErrorSecurityIncident:
		return "ERROR_SECURITY_INCIDENT"
	case StateErrorFault:
		return "ERROR_FAULT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(s))
	}
}

// IsError reports whether the state is one of the error states.
func (s EndpointState) IsError() bool {
	return s == StateErrorDestinationUnreachable ||
		s == StateErrorSecurityIncident ||
		s == StateErrorFault
}

// FinalHandler receives the payload of a frame carrying the final bit, in
// reply to a previously written poll.
type FinalHandler func(endpointID uint8, payload []byte)

// UframeHandler receives the payload of an unsolicited unnumbered frame.
type UframeHandler func(endpointID uint8, payload []byte)

// PollAckHandler is invoked when the link layer acknowledges reception of a
// previously written poll frame. It receives the payload of the original
// write, before any protocol-level reply exists.
type PollAckHandler func(endpointID uint8, payload []byte)

// Core is the framing layer consumed by the system endpoint and the daemon.
// All callbacks are delivered on the event loop; implementations must not
// invoke them concurrently.
type Core interface {
	// OpenEndpoint opens an endpoint with the given flags and transmit
	// window.
	OpenEndpoint(endpointID uint8, flags OpenFlags, txWindow int) error

	// CloseEndpoint closes an endpoint. When notifySecondary is set the
	// remote side is told; force discards pending traffic.
	CloseEndpoint(endpointID uint8, notifySecondary, force bool) error

	// SetOnFinal installs the final-reply callback for an endpoint.
	SetOnFinal(endpointID uint8, fn FinalHandler)

	// SetOnUframeReceive installs the unsolicited-frame callback for an
	// endpoint.
	SetOnUframeReceive(endpointID uint8, fn UframeHandler)

	// SetOnPollAcknowledged installs the poll-ack callback for an
	// endpoint.
	SetOnPollAcknowledged(endpointID uint8, fn PollAckHandler)

	// Write queues a frame for transmission.
	Write(endpointID uint8, payload []byte, flags WriteFlags) error

	// ProcessTransmitQueue flushes queued frames to the link.
	ProcessTransmitQueue()

	// EndpointState returns the current state of an endpoint.
	EndpointState(endpointID uint8) EndpointState

	// SetEndpointInError moves an endpoint to the given error state and
	// notifies its users.
	SetEndpointInError(endpointID uint8, state EndpointState)
}
