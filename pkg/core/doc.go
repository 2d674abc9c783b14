// Package core declares the interface of the CPC framing layer as consumed
// by the rest of the daemon.
//
// The core multiplexes logical endpoints over one link, delivers inbound
// frames through per-endpoint callbacks, and accepts outbound writes with
// frame-type flags. Endpoint 0 is reserved for the system endpoint.
// pkg/link provides the serial implementation; tests substitute a fake.
package core
