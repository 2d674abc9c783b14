// Package system implements the CPC system endpoint, the control plane of
// the host-secondary link.
//
// The system endpoint (endpoint 0) carries liveness probes, device reset,
// and a property get/set request-reply protocol used to negotiate
// capabilities and mirror endpoint state. Commands are fire-and-forget:
// each issuer operation takes a typed completion callback that is invoked
// exactly once with OK, IN_PROGRESS (the reply arrived after at least one
// retransmit), TIMEOUT, or CANCELLED (dropped by an endpoint reset).
//
// Two transmission modes exist. The default submits commands as information
// frames with the poll bit and arms the retransmission timer only once the
// link layer reports the poll acknowledged, so a slow secondary is not
// flooded with retransmits. The legacy mode, for early secondaries without
// the poll-ack hook, submits unnumbered polls and arms the timer at issue
// time.
//
// The whole package is loop-affine: every entry point — issuer calls, core
// hooks, timer expirations — must run on the daemon event loop, and no
// locking is done.
package system
