package daemon

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cpc-protocol/cpcd-go/pkg/system"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// Negotiation errors.
var (
	ErrRebootRefused     = errors.New("secondary did not acknowledge reboot")
	ErrVersionMismatch   = errors.New("protocol version mismatch")
	ErrNegotiationFailed = errors.New("startup negotiation failed")
)

// SecondaryInfo is what startup negotiation learns about the attached
// co-processor.
type SecondaryInfo struct {
	ProtocolVersion uint32
	Capabilities    wire.Capabilities
	CPCVersion      string
	AppVersion      string
}

// negotiator drives the startup sequence on the event loop: reset the
// endpoint, reboot the secondary, then read protocol version, capabilities
// and version strings. done is invoked exactly once.
type negotiator struct {
	sys     *system.Endpoint
	log     zerolog.Logger
	retries uint8
	timeout time.Duration

	info SecondaryInfo
	done func(SecondaryInfo, error)
}

// start kicks the sequence off. Must run on the event loop.
func (n *negotiator) start() {
	// Clear any stale link state and suppress the reset reason the
	// reboot is about to provoke.
	n.sys.ResetEndpoint()
	n.sys.SetIgnoreResetReason(true)

	n.log.Info().Msg("rebooting secondary")
	n.sys.Reboot(n.onReboot, n.retries, n.timeout)
}

func (n *negotiator) onReboot(_ *system.Command, status system.Status, resetStatus wire.Status) {
	if !status.Ok() {
		n.fail(fmt.Errorf("%w: %s", ErrRebootRefused, status))
		return
	}
	if resetStatus != wire.StatusOK {
		n.fail(fmt.Errorf("%w: reset status %s", ErrRebootRefused, resetStatus))
		return
	}

	n.log.Debug().Msg("secondary acknowledged reboot")
	n.sys.PropertyGet(n.onProtocolVersion, wire.PropProtocolVersion, n.retries, n.timeout)
}

func (n *negotiator) onProtocolVersion(_ *system.Command, _ wire.PropertyID, value []byte, status system.Status) {
	if !status.Ok() {
		n.fail(fmt.Errorf("%w: reading protocol version: %s", ErrNegotiationFailed, status))
		return
	}
	version, err := wire.Uint32Value(value)
	if err != nil {
		n.fail(fmt.Errorf("%w: protocol version: %v", ErrNegotiationFailed, err))
		return
	}
	if version != wire.ProtocolVersion {
		n.fail(fmt.Errorf("%w: secondary speaks v%d, daemon speaks v%d",
			ErrVersionMismatch, version, wire.ProtocolVersion))
		return
	}
	n.info.ProtocolVersion = version

	n.sys.PropertyGet(n.onCapabilities, wire.PropCapabilities, n.retries, n.timeout)
}

func (n *negotiator) onCapabilities(_ *system.Command, _ wire.PropertyID, value []byte, status system.Status) {
	if !status.Ok() {
		n.fail(fmt.Errorf("%w: reading capabilities: %s", ErrNegotiationFailed, status))
		return
	}
	caps, err := wire.Uint32Value(value)
	if err != nil {
		n.fail(fmt.Errorf("%w: capabilities: %v", ErrNegotiationFailed, err))
		return
	}
	n.info.Capabilities = wire.Capabilities(caps)

	n.sys.PropertyGet(n.onCPCVersion, wire.PropSecondaryCPCVersion, n.retries, n.timeout)
}

func (n *negotiator) onCPCVersion(_ *system.Command, _ wire.PropertyID, value []byte, status system.Status) {
	if !status.Ok() {
		n.fail(fmt.Errorf("%w: reading secondary version: %s", ErrNegotiationFailed, status))
		return
	}
	n.info.CPCVersion = string(value)

	n.sys.PropertyGet(n.onAppVersion, wire.PropSecondaryAppVersion, n.retries, n.timeout)
}

func (n *negotiator) onAppVersion(_ *system.Command, _ wire.PropertyID, value []byte, status system.Status) {
	// The application version is optional on the secondary; a timeout
	// here does not fail the bring-up.
	if status.Ok() {
		n.info.AppVersion = string(value)
	}

	n.log.Info().
		Uint32("protocol_version", n.info.ProtocolVersion).
		Str("cpc_version", n.info.CPCVersion).
		Str("app_version", n.info.AppVersion).
		Msg("secondary negotiated")
	n.done(n.info, nil)
}

func (n *negotiator) fail(err error) {
	n.log.Error().Err(err).Msg("startup negotiation failed")
	n.done(n.info, err)
}
