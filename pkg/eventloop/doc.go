// Package eventloop provides the single-goroutine run loop the daemon core
// executes on.
//
// Every part of the protocol core — issuer calls, inbound frame dispatch,
// timer expirations — runs as a function posted to one Loop, so the core
// needs no locking. Timers are monotonic one-shots whose callbacks are
// delivered on the loop, never concurrently with other loop work.
package eventloop
