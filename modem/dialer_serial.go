package modem

import (
	"context"
	"errors"

	"go.bug.st/serial"
)

// SerialDialer opens a GSM modem over a local serial port using
// go.bug.st/serial. PortName is required; Mode defaults to 115200-8N1
// if nil, the line discipline SimCom modules speak before autobaud
// negotiates anything else. A non-zero BaudRate replaces 115200 in that
// default; it is ignored when Mode is set.
type SerialDialer struct {
	PortName string
	BaudRate int
	Mode     *serial.Mode
}

func (d SerialDialer) defaultMode() *serial.Mode {
	if d.Mode != nil {
		return d.Mode
	}
	baud := 115200
	if d.BaudRate > 0 {
		baud = d.BaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
}

// Dial opens the configured serial port. It respects ctx cancellation
// before attempting to open the port, since serial.Open itself has no
// context-aware variant.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("gsm: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("gsm: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.Open(d.PortName, d.defaultMode())
	if err != nil {
		return nil, err
	}
	return port, nil
}
