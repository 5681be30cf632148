package transport

import (
	"fmt"
	"log/slog"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Driver is the part of a gomidi driver the transports need.
// *rtmididrv.Driver satisfies it.
type Driver interface {
	Ins() ([]drivers.In, error)
	Outs() ([]drivers.Out, error)
}

// OutPort adapts a gomidi output port to io.Writer, one Write per message.
type OutPort struct {
	name   string
	send   func(gomidi.Message) error
	close  func() error
	logger *slog.Logger
}

// OpenOutPort opens the first output whose name contains pattern
// (case-insensitive).
func OpenOutPort(drv Driver, pattern string, logger *slog.Logger) (*OutPort, error) {
	if logger == nil {
		logger = slog.Default()
	}
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	var found drivers.Out
	for _, out := range outs {
		if containsCI(out.String(), pattern) {
			found = out
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("output %q not found", pattern)
	}

	send, err := gomidi.SendTo(found)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", found.String(), err)
	}
	logger.Info("midi: output opened", "device", found.String())
	return newOutPort(found.String(), send, found.Close, logger), nil
}

func newOutPort(name string, send func(gomidi.Message) error, closeFn func() error, logger *slog.Logger) *OutPort {
	return &OutPort{name: name, send: send, close: closeFn, logger: logger}
}

// Write sends p as one MIDI message. p must hold exactly one complete message.
func (o *OutPort) Write(p []byte) (int, error) {
	if err := o.send(gomidi.Message(p)); err != nil {
		o.logger.Error("midi: send failed", "device", o.name, "err", err)
		return 0, err
	}
	return len(p), nil
}

// Close closes the port.
func (o *OutPort) Close() error {
	o.logger.Info("midi: closing output", "device", o.name)
	if o.close == nil {
		return nil
	}
	return o.close()
}

// PortNames lists input and output port names of drv.
func PortNames(drv Driver) (ins, outs []string, err error) {
	inPorts, err := drv.Ins()
	if err != nil {
		return nil, nil, fmt.Errorf("list inputs: %w", err)
	}
	outPorts, err := drv.Outs()
	if err != nil {
		return nil, nil, fmt.Errorf("list outputs: %w", err)
	}
	for _, p := range inPorts {
		ins = append(ins, p.String())
	}
	for _, p := range outPorts {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
