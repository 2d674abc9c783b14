// Package wire implements the CPC System Endpoint frame codec.
//
// A system command is a fixed 3-byte header followed by a variable payload:
//
//	┌────────────┬─────────────┬────────┬──────────────────┐
//	│ command_id │ command_seq │ length │ payload (length) │
//	│    1 B     │     1 B     │  1 B   │    0..255 B      │
//	└────────────┴─────────────┴────────┴──────────────────┘
//
// Property commands carry a 4-byte little-endian property id at the start of
// the payload, optionally followed by the property value. Values of length
// 2, 4 and 8 are integers and are converted between native and little-endian
// byte order at the codec boundary; length 1 and all other lengths are
// treated as opaque bytes and copied verbatim.
package wire
