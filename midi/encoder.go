package midi

import (
	"fmt"
	"io"
	"log/slog"
)

// Observer is notified of every message the encoder writes or discards.
// Implementations must not block.
type Observer interface {
	MessageSent(t MessageType, n int)
	MessageDropped(t MessageType, reason string)
}

type nopObserver struct{}

func (nopObserver) MessageSent(MessageType, int)       {}
func (nopObserver) MessageDropped(MessageType, string) {}

// Option configures an Encoder.
type Option func(*Encoder)

// WithRunningStatus makes the encoder omit the status byte of a channel
// message when it matches the previous channel message's status byte.
func WithRunningStatus() Option {
	return func(e *Encoder) {
		e.runningStatus = true
	}
}

// WithLogger sets the logger discarded sends are reported to (debug level).
func WithLogger(l *slog.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver installs an Observer, typically a metrics collector.
func WithObserver(o Observer) Option {
	return func(e *Encoder) {
		if o != nil {
			e.observer = o
		}
	}
}

// Encoder turns events into MIDI wire bytes. Every message reaches the
// underlying writer in a single Write call. Invalid input (a guard channel, an
// unknown type) is dropped silently and reported as a nil error; only a
// failing writer produces an error.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	w        io.Writer
	log      *slog.Logger
	observer Observer

	runningStatus bool
	lastStatus    byte

	scratch [3]byte
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{
		w:        w,
		log:      slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// -------------------- Channel messages --------------------

// NoteOn sends a note on. Velocity 0 is a note off to most receivers.
func (e *Encoder) NoteOn(note, velocity byte, ch Channel) error {
	return e.sendChannelMessage(NoteOn, note, velocity, ch)
}

// NoteOff sends a note off with a release velocity.
func (e *Encoder) NoteOff(note, velocity byte, ch Channel) error {
	return e.sendChannelMessage(NoteOff, note, velocity, ch)
}

// ProgramChange selects a patch on ch.
func (e *Encoder) ProgramChange(program byte, ch Channel) error {
	return e.sendChannelMessage(ProgramChange, program, 0, ch)
}

// ControlChange sends controller number with value.
func (e *Encoder) ControlChange(number, value byte, ch Channel) error {
	return e.sendChannelMessage(ControlChange, number, value, ch)
}

// PitchBend sends value in [PitchBendMin, PitchBendMax], 0 being the centre.
func (e *Encoder) PitchBend(value int, ch Channel) error {
	bend := uint(value - PitchBendMin)
	return e.sendChannelMessage(PitchBend, byte(bend&dataMask), byte((bend>>7)&dataMask), ch)
}

// PitchBendFloat sends a normalised bend in [-1.0, 1.0]. Positive values are
// scaled by PitchBendMax and negative ones by the magnitude of PitchBendMin, so
// both extremes land on the ends of the 14-bit range.
func (e *Encoder) PitchBendFloat(value float64, ch Channel) error {
	scale := -PitchBendMin
	if value > 0 {
		scale = PitchBendMax
	}
	return e.PitchBend(int(value*float64(scale)), ch)
}

// PolyPressure sends per-note aftertouch.
func (e *Encoder) PolyPressure(note, pressure byte, ch Channel) error {
	return e.sendChannelMessage(AfterTouchPoly, note, pressure, ch)
}

// AfterTouch sends channel pressure.
func (e *Encoder) AfterTouch(pressure byte, ch Channel) error {
	return e.sendChannelMessage(AfterTouchChannel, pressure, 0, ch)
}

// -------------------- System common --------------------

// TimeCodeQuarterFrame sends one MTC quarter frame data byte.
func (e *Encoder) TimeCodeQuarterFrame(data byte) error {
	return e.sendSystemCommonMessage(TimeCodeQuarterFrame, data, 0)
}

// TimeCodeQuarterFrameNibbles packs a 3-bit piece type and a 4-bit value into
// a quarter-frame data byte.
func (e *Encoder) TimeCodeQuarterFrameNibbles(typeNibble, valueNibble byte) error {
	return e.TimeCodeQuarterFrame((typeNibble&0x07)<<4 | valueNibble&0x0F)
}

// SongPosition sends a 14-bit beat count (sixteenth notes since song start).
func (e *Encoder) SongPosition(beats uint16) error {
	return e.sendSystemCommonMessage(SongPosition, byte(beats&dataMask), byte((beats>>7)&dataMask))
}

// SongSelect selects a song or sequence.
func (e *Encoder) SongSelect(song byte) error {
	return e.sendSystemCommonMessage(SongSelect, song, 0)
}

// TuneRequest asks analog synths to tune their oscillators.
func (e *Encoder) TuneRequest() error {
	return e.sendSystemCommonMessage(TuneRequest, 0, 0)
}

// SysEx frames payload between 0xF0 and 0xF7. Payload bytes are masked to 7
// bits, so callers must not include the framing bytes themselves.
func (e *Encoder) SysEx(payload []byte) error {
	msg := make([]byte, 0, len(payload)+2)
	msg = append(msg, byte(SystemExclusive))
	for _, b := range payload {
		msg = append(msg, b&dataMask)
	}
	msg = append(msg, byte(SystemExclusiveEnd))

	e.lastStatus = 0
	return e.write(SystemExclusive, msg)
}

// -------------------- System real-time --------------------

// Clock sends one timing pulse, 24 per quarter note. Real-time messages are a
// single status byte and may land between the bytes of any other message.
func (e *Encoder) Clock() error         { return e.sendRealTimeMessage(Clock) }
func (e *Encoder) Tick() error          { return e.sendRealTimeMessage(Tick) }
func (e *Encoder) Start() error         { return e.sendRealTimeMessage(Start) }
func (e *Encoder) Continue() error      { return e.sendRealTimeMessage(Continue) }
func (e *Encoder) Stop() error          { return e.sendRealTimeMessage(Stop) }
func (e *Encoder) ActiveSensing() error { return e.sendRealTimeMessage(ActiveSensing) }
func (e *Encoder) Reset() error         { return e.sendRealTimeMessage(SystemReset) }

// -------------------- internal --------------------

func (e *Encoder) sendChannelMessage(t MessageType, data1, data2 byte, ch Channel) error {
	if ch >= ChannelOff || ch == ChannelOmni || t < NoteOff {
		e.drop(t, "guard")
		return nil
	}

	if t <= PitchBend {
		status := StatusFor(t, ch)

		msg := e.scratch[:0]
		if !e.runningStatus || status != e.lastStatus {
			msg = append(msg, status)
		}
		msg = append(msg, data1&dataMask)
		if t != ProgramChange && t != AfterTouchChannel {
			msg = append(msg, data2&dataMask)
		}

		if err := e.write(t, msg); err != nil {
			return err
		}
		if e.runningStatus {
			e.lastStatus = status
		}
		return nil
	}

	if t >= Clock && t <= SystemReset {
		return e.sendRealTimeMessage(t)
	}

	e.drop(t, "not a channel message")
	return nil
}

func (e *Encoder) sendSystemCommonMessage(t MessageType, data1, data2 byte) error {
	msg := e.scratch[:0]
	switch t {
	case TimeCodeQuarterFrame, SongSelect:
		msg = append(msg, byte(t), data1&dataMask)
	case SongPosition:
		msg = append(msg, byte(t), data1&dataMask, data2&dataMask)
	case TuneRequest:
		msg = append(msg, byte(t))
	default:
		e.drop(t, "not a system common message")
		return nil
	}

	// system common cancels running status
	e.lastStatus = 0
	return e.write(t, msg)
}

// sendRealTimeMessage writes t on its own. Real-time bytes may land between
// the bytes of any other message, so running status is left untouched.
func (e *Encoder) sendRealTimeMessage(t MessageType) error {
	if !IsRealTime(t) {
		e.drop(t, "not a real-time message")
		return nil
	}
	e.scratch[0] = byte(t)
	return e.write(t, e.scratch[:1])
}

func (e *Encoder) write(t MessageType, msg []byte) error {
	n, err := e.w.Write(msg)
	if err != nil {
		e.lastStatus = 0
		return fmt.Errorf("write %s: %w", t, err)
	}
	e.observer.MessageSent(t, n)
	return nil
}

func (e *Encoder) drop(t MessageType, reason string) {
	e.log.Debug("midi: message dropped", "type", t, "reason", reason)
	e.observer.MessageDropped(t, reason)
}
