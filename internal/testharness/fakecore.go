// Package testharness provides the fakes the protocol core is tested
// against: a recording core and a manually advanced timer service.
package testharness

import (
	"fmt"

	"github.com/cpc-protocol/cpcd-go/pkg/core"
)

// Write records one outbound frame handed to the fake core.
type Write struct {
	EndpointID uint8
	Payload    []byte
	Flags      core.WriteFlags
}

// FakeCore implements core.Core for tests. It records writes and endpoint
// lifecycle calls and lets the test inject inbound traffic through the
// registered hooks.
type FakeCore struct {
	Writes  []Write
	Flushes int

	OpenCalls  int
	CloseCalls int
	OpenFlags  core.OpenFlags

	States      map[uint8]core.EndpointState
	ErrorStates map[uint8]core.EndpointState

	onFinal   map[uint8]core.FinalHandler
	onUframe  map[uint8]core.UframeHandler
	onPollAck map[uint8]core.PollAckHandler

	// WriteErr, when set, is returned by the next Write.
	WriteErr error
}

// NewFakeCore creates an empty fake core.
func NewFakeCore() *FakeCore {
	return &FakeCore{
		States:      make(map[uint8]core.EndpointState),
		ErrorStates: make(map[uint8]core.EndpointState),
		onFinal:     make(map[uint8]core.FinalHandler),
		onUframe:    make(map[uint8]core.UframeHandler),
		onPollAck:   make(map[uint8]core.PollAckHandler),
	}
}

// OpenEndpoint records the open and marks the endpoint OPEN.
func (f *FakeCore) OpenEndpoint(endpointID uint8, flags core.OpenFlags, _ int) error {
	f.OpenCalls++
	f.OpenFlags = flags
	f.States[endpointID] = core.StateOpen
	return nil
}

// CloseEndpoint records the close and marks the endpoint CLOSED.
func (f *FakeCore) CloseEndpoint(endpointID uint8, _, _ bool) error {
	f.CloseCalls++
	f.States[endpointID] = core.StateClosed
	return nil
}

// SetOnFinal installs the final hook.
func (f *FakeCore) SetOnFinal(endpointID uint8, fn core.FinalHandler) {
	f.onFinal[endpointID] = fn
}

// SetOnUframeReceive installs the unsolicited hook.
func (f *FakeCore) SetOnUframeReceive(endpointID uint8, fn core.UframeHandler) {
	f.onUframe[endpointID] = fn
}

// SetOnPollAcknowledged installs the poll-ack hook.
func (f *FakeCore) SetOnPollAcknowledged(endpointID uint8, fn core.PollAckHandler) {
	f.onPollAck[endpointID] = fn
}

// Write records the frame.
func (f *FakeCore) Write(endpointID uint8, payload []byte, flags core.WriteFlags) error {
	if f.WriteErr != nil {
		err := f.WriteErr
		f.WriteErr = nil
		return err
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.Writes = append(f.Writes, Write{EndpointID: endpointID, Payload: buf, Flags: flags})
	return nil
}

// ProcessTransmitQueue counts flushes.
func (f *FakeCore) ProcessTransmitQueue() {
	f.Flushes++
}

// EndpointState returns the recorded state (CLOSED when unknown).
func (f *FakeCore) EndpointState(endpointID uint8) core.EndpointState {
	state, ok := f.States[endpointID]
	if !ok {
		return core.StateClosed
	}
	return state
}

// SetEndpointInError records the error transition.
func (f *FakeCore) SetEndpointInError(endpointID uint8, state core.EndpointState) {
	f.States[endpointID] = state
	f.ErrorStates[endpointID] = state
}

// DeliverFinal injects a final reply through the registered hook.
func (f *FakeCore) DeliverFinal(endpointID uint8, payload []byte) {
	fn, ok := f.onFinal[endpointID]
	if !ok {
		panic(fmt.Sprintf("no final hook registered for endpoint %d", endpointID))
	}
	fn(endpointID, payload)
}

// DeliverUframe injects an unsolicited frame through the registered hook.
func (f *FakeCore) DeliverUframe(endpointID uint8, payload []byte) {
	fn, ok := f.onUframe[endpointID]
	if !ok {
		panic(fmt.Sprintf("no uframe hook registered for endpoint %d", endpointID))
	}
	fn(endpointID, payload)
}

// DeliverPollAck injects a poll acknowledgement through the registered hook.
func (f *FakeCore) DeliverPollAck(endpointID uint8, payload []byte) {
	fn, ok := f.onPollAck[endpointID]
	if !ok {
		panic(fmt.Sprintf("no poll-ack hook registered for endpoint %d", endpointID))
	}
	fn(endpointID, payload)
}

// HasPollAckHook reports whether a poll-ack hook is registered.
func (f *FakeCore) HasPollAckHook(endpointID uint8) bool {
	_, ok := f.onPollAck[endpointID]
	return ok
}

// LastWrite returns the most recent write, failing the caller if none
// happened.
func (f *FakeCore) LastWrite() Write {
	if len(f.Writes) == 0 {
		panic("no writes recorded")
	}
	return f.Writes[len(f.Writes)-1]
}

// Compile-time interface satisfaction check.
var _ core.Core = (*FakeCore)(nil)
