package link

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// OpenSerial opens the UART to the secondary: 8 data bits, no parity, one
// stop bit at the given baud rate.
func OpenSerial(device string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	return port, nil
}
