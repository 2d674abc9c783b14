// Package trace captures protocol events for offline analysis.
//
// The daemon emits an Event for raw frames on the link, system command
// lifecycle transitions and endpoint state changes. The Event format also
// has an error payload, which the daemon does not emit. Events
// are encoded as CBOR with integer keys so long captures stay compact, and
// every event carries the instance id of the daemon run that produced it.
//
// Tracing is optional: pass NoopLogger (or nil checks at the call sites) to
// disable it entirely.
package trace
