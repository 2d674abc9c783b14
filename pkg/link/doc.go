// Package link implements the CPC framing layer over a serial byte stream.
//
// Frames are delimited by a start byte and carry an endpoint id, a
// little-endian payload length, a control byte and CRC-16/CCITT checks over
// header and payload:
//
//	┌─────┬────┬────────┬─────────┬─────┬─────────┬─────┐
//	│ SOF │ ep │ len LE │ control │ HCS │ payload │ FCS │
//	│ 1 B │ 1B │  2 B   │   1 B   │ 2 B │  len B  │ 2 B │
//	└─────┴────┴────────┴─────────┴─────┴─────────┴─────┘
//
// A frame with an empty payload carries no FCS.
//
// The control byte distinguishes information frames (3-bit sequence
// number), supervisory acks and unnumbered frames, plus a poll/final bit.
// Corrupt frames are dropped and counted; the decoder resynchronizes on the
// next start byte.
//
// Link implements core.Core: writes are queued and flushed to the port, a
// read goroutine decodes inbound frames and posts dispatch onto the event
// loop, and a supervisory ack covering an information frame sent with the
// poll bit surfaces the poll-acknowledged hook.
package link
