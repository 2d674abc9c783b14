package link

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing constants.
const (
	// sof delimits the start of every frame.
	sof = 0x14

	// headerSize is SOF + endpoint + length + control + header CRC.
	headerSize = 7

	// fcsSize is the payload CRC size; omitted for empty payloads.
	fcsSize = 2

	// maxPayloadSize bounds a single frame payload.
	maxPayloadSize = 4096

	// seqModulo is the information-frame sequence space.
	seqModulo = 8
)

// frameType is the frame class, encoded in the top two control bits.
type frameType uint8

const (
	// frameInformation is a sequenced data frame.
	frameInformation frameType = 0

	// frameSupervisory acknowledges information frames.
	frameSupervisory frameType = 1

	// frameUnnumbered is an unsequenced frame.
	frameUnnumbered frameType = 2
)

// uframeKind is the unnumbered frame subtype, encoded in the low control
// bits.
type uframeKind uint8

const (
	// uframeInformation carries unsolicited or poll data.
	uframeInformation uframeKind = 0

	// uframeResetCommand asks the remote side to reset its sequence
	// numbers.
	uframeResetCommand uframeKind = 2

	// uframeResetAck confirms a reset command.
	uframeResetAck uframeKind = 3
)

// Control byte layout.
const (
	controlTypeShift = 6
	controlPollBit   = 1 << 5
	controlLowMask   = 0x07
)

// Framing errors.
var (
	errBadHeaderCRC  = errors.New("header crc mismatch")
	errBadPayloadCRC = errors.New("payload crc mismatch")
	errPayloadSize   = errors.New("payload length out of range")
)

// frame is one decoded link frame.
type frame struct {
	endpointID uint8
	typ        frameType
	pollFinal  bool

	// seq is the sequence number of an information frame; ack is the
	// acknowledged sequence number of a supervisory frame.
	seq uint8
	ack uint8

	kind    uframeKind
	payload []byte
}

// control encodes the control byte.
func (f frame) control() uint8 {
	c := uint8(f.typ) << controlTypeShift
	if f.pollFinal {
		c |= controlPollBit
	}
	switch f.typ {
	case frameInformation:
		c |= f.seq & controlLowMask
	case frameSupervisory:
		c |= f.ack & controlLowMask
	case frameUnnumbered:
		c |= uint8(f.kind) & controlLowMask
	}
	return c
}

// parseControl decodes the control byte into the frame fields.
func (f *frame) parseControl(c uint8) {
	f.typ = frameType(c >> controlTypeShift)
	f.pollFinal = c&controlPollBit != 0
	switch f.typ {
	case frameInformation:
		f.seq = c & controlLowMask
	case frameSupervisory:
		f.ack = c & controlLowMask
	case frameUnnumbered:
		f.kind = uframeKind(c & controlLowMask)
	}
}

// marshalFrame serializes a frame, computing both CRCs.
func marshalFrame(f frame) ([]byte, error) {
	if len(f.payload) > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d", errPayloadSize, len(f.payload))
	}

	size := headerSize + len(f.payload)
	if len(f.payload) > 0 {
		size += fcsSize
	}
	buf := make([]byte, size)

	buf[0] = sof
	buf[1] = f.endpointID
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(f.payload)))
	buf[4] = f.control()
	binary.LittleEndian.PutUint16(buf[5:7], crc16(buf[:5]))

	if len(f.payload) > 0 {
		copy(buf[headerSize:], f.payload)
		binary.LittleEndian.PutUint16(buf[headerSize+len(f.payload):], crc16(f.payload))
	}
	return buf, nil
}

// decoder incrementally parses frames out of a byte stream, resynchronizing
// on the start byte after corruption.
type decoder struct {
	buf []byte

	// corrupt counts bytes dropped, one per byte skipped while hunting for
	// a start byte or after a failed check.
	corrupt int
}

// feed appends stream bytes and returns every complete frame now available.
func (d *decoder) feed(p []byte) []frame {
	d.buf = append(d.buf, p...)

	var frames []frame
	for {
		f, ok := d.next()
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

// next attempts to decode one frame from the front of the buffer.
func (d *decoder) next() (frame, bool) {
	for {
		// Hunt for the start byte.
		for len(d.buf) > 0 && d.buf[0] != sof {
			d.buf = d.buf[1:]
			d.corrupt++
		}
		if len(d.buf) < headerSize {
			return frame{}, false
		}

		if crc16(d.buf[:5]) != binary.LittleEndian.Uint16(d.buf[5:7]) {
			// Corrupt header: skip this SOF and resync.
			d.buf = d.buf[1:]
			d.corrupt++
			continue
		}

		length := int(binary.LittleEndian.Uint16(d.buf[2:4]))
		if length > maxPayloadSize {
			d.buf = d.buf[1:]
			d.corrupt++
			continue
		}

		total := headerSize + length
		if length > 0 {
			total += fcsSize
		}
		if len(d.buf) < total {
			return frame{}, false
		}

		var f frame
		f.endpointID = d.buf[1]
		f.parseControl(d.buf[4])

		if length > 0 {
			payload := d.buf[headerSize : headerSize+length]
			fcs := binary.LittleEndian.Uint16(d.buf[headerSize+length:])
			if crc16(payload) != fcs {
				d.buf = d.buf[1:]
				d.corrupt++
				continue
			}
			f.payload = make([]byte, length)
			copy(f.payload, payload)
		}

		d.buf = d.buf[total:]
		return f, true
	}
}
