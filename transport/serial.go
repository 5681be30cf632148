package transport

import (
	"context"
	"fmt"
	"log/slog"

	"go.bug.st/serial"
)

// MIDIBaud is the DIN MIDI line rate. USB-serial bridges often run faster.
const MIDIBaud = 31250

// SerialPort writes MIDI bytes to a serial device.
type SerialPort struct {
	name   string
	port   serial.Port
	logger *slog.Logger
}

// OpenSerial opens the named serial device at the given baud rate, 8N1.
func OpenSerial(name string, baud int, logger *slog.Logger) (*SerialPort, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		logger.Error("serial: failed to open port", "device", name, "baud", baud, "err", err)
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return &SerialPort{name: name, port: p, logger: logger}, nil
}

// Write sends p to the port as-is.
func (s *SerialPort) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		s.logger.Error("serial: write error", "device", s.name, "err", err)
		return n, err
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("serial: bytes sent", "bytes", n, "data", fmt.Sprintf("% X", p))
	}
	return n, nil
}

// Close closes the underlying serial port.
func (s *SerialPort) Close() error {
	s.logger.Info("serial: closing port", "device", s.name)
	return s.port.Close()
}

// SerialPorts lists the serial devices present on this machine.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
