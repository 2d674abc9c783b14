// Package daemon assembles the cpcd process: serial port, event loop, link,
// system endpoint, tracing and metrics, plus the startup negotiation and
// liveness probing that drive the system endpoint.
package daemon
