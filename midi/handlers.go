package midi

import "sync"

// Handler signatures, one per shape of inbound message.
type (
	NoteHandler         func(ch Channel, note, velocity byte)
	ControlHandler      func(ch Channel, number, value byte)
	ChannelByteHandler  func(ch Channel, value byte)
	PitchBendHandler    func(ch Channel, bend int)
	SongPositionHandler func(beats uint16)
	ByteHandler         func(data byte)
	SysExHandler        func(data []byte)
	EventHandler        func()
)

type handlerSet struct {
	noteOff           NoteHandler
	noteOn            NoteHandler
	afterTouchPoly    NoteHandler
	controlChange     ControlHandler
	programChange     ChannelByteHandler
	afterTouchChannel ChannelByteHandler
	pitchBend         PitchBendHandler
	sysEx             SysExHandler
	timeCode          ByteHandler
	songPosition      SongPositionHandler
	songSelect        ByteHandler
	tuneRequest       EventHandler
	clock             EventHandler
	start             EventHandler
	cont              EventHandler
	stop              EventHandler
	activeSensing     EventHandler
	reset             EventHandler
}

// Handlers holds at most one handler per inbound event kind. Registering a
// handler replaces the previous one; a nil handler clears the slot. Events
// without a handler are dropped.
//
// Registration and Dispatch may run on different goroutines, and a handler
// may re-register handlers while it runs.
type Handlers struct {
	mu  sync.RWMutex
	set handlerSet
}

func (h *Handlers) update(fn func(s *handlerSet)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.set)
}

func (h *Handlers) snapshot() handlerSet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.set
}

// HandleNoteOff registers fn for note off messages.
func (h *Handlers) HandleNoteOff(fn NoteHandler) { h.update(func(s *handlerSet) { s.noteOff = fn }) }
// HandleNoteOn registers fn for note on messages, including velocity 0.
func (h *Handlers) HandleNoteOn(fn NoteHandler)  { h.update(func(s *handlerSet) { s.noteOn = fn }) }

// HandleAfterTouchPoly registers fn for per-note pressure.
func (h *Handlers) HandleAfterTouchPoly(fn NoteHandler) {
	h.update(func(s *handlerSet) { s.afterTouchPoly = fn })
}

// HandleControlChange registers fn for controller changes.
func (h *Handlers) HandleControlChange(fn ControlHandler) {
	h.update(func(s *handlerSet) { s.controlChange = fn })
}

// HandleProgramChange registers fn for program changes.
func (h *Handlers) HandleProgramChange(fn ChannelByteHandler) {
	h.update(func(s *handlerSet) { s.programChange = fn })
}

// HandleAfterTouchChannel registers fn for channel pressure.
func (h *Handlers) HandleAfterTouchChannel(fn ChannelByteHandler) {
	h.update(func(s *handlerSet) { s.afterTouchChannel = fn })
}

// HandlePitchBend registers fn to receive the bend as a signed value in
// [PitchBendMin, PitchBendMax].
func (h *Handlers) HandlePitchBend(fn PitchBendHandler) {
	h.update(func(s *handlerSet) { s.pitchBend = fn })
}

// HandleSysEx registers fn to receive the payload without the 0xF0/0xF7
// framing. The slice is only valid for the duration of the call.
func (h *Handlers) HandleSysEx(fn SysExHandler) {
	h.update(func(s *handlerSet) { s.sysEx = fn })
}

// HandleTimeCodeQuarterFrame registers fn for MTC quarter frames.
func (h *Handlers) HandleTimeCodeQuarterFrame(fn ByteHandler) {
	h.update(func(s *handlerSet) { s.timeCode = fn })
}

// HandleSongPosition registers fn to receive the 14-bit beat count.
func (h *Handlers) HandleSongPosition(fn SongPositionHandler) {
	h.update(func(s *handlerSet) { s.songPosition = fn })
}

// HandleSongSelect registers fn for song select.
func (h *Handlers) HandleSongSelect(fn ByteHandler) {
	h.update(func(s *handlerSet) { s.songSelect = fn })
}

// HandleTuneRequest registers fn for tune request.
func (h *Handlers) HandleTuneRequest(fn EventHandler) {
	h.update(func(s *handlerSet) { s.tuneRequest = fn })
}

// HandleClock registers fn for timing clock pulses.
func (h *Handlers) HandleClock(fn EventHandler)    { h.update(func(s *handlerSet) { s.clock = fn }) }
// HandleStart registers fn for sequence start.
func (h *Handlers) HandleStart(fn EventHandler)    { h.update(func(s *handlerSet) { s.start = fn }) }
// HandleContinue registers fn for sequence continue.
func (h *Handlers) HandleContinue(fn EventHandler) { h.update(func(s *handlerSet) { s.cont = fn }) }
// HandleStop registers fn for sequence stop.
func (h *Handlers) HandleStop(fn EventHandler)     { h.update(func(s *handlerSet) { s.stop = fn }) }

// HandleActiveSensing registers fn for active sensing.
func (h *Handlers) HandleActiveSensing(fn EventHandler) {
	h.update(func(s *handlerSet) { s.activeSensing = fn })
}

// HandleReset registers fn for system reset.
func (h *Handlers) HandleReset(fn EventHandler) {
	h.update(func(s *handlerSet) { s.reset = fn })
}

// Dispatch classifies one complete message and calls the handler registered
// for its kind. It reports whether a handler ran; malformed or unhandled
// messages are dropped.
func (h *Handlers) Dispatch(msg []byte) bool {
	if len(msg) == 0 {
		return false
	}

	status := msg[0]
	t := TypeFromStatus(status)
	if t == InvalidType {
		return false
	}

	s := h.snapshot()

	if t == SystemExclusive {
		return s.dispatchSysEx(msg[1:])
	}

	n := DataLength(t)
	if len(msg) < n+1 {
		return false
	}
	data := msg[1 : n+1]
	for _, b := range data {
		if b > dataMask {
			return false
		}
	}

	if IsChannelMessage(t) {
		return s.dispatchChannel(t, ChannelFromStatus(status), data)
	}
	return s.dispatchSystem(t, data)
}

func (s *handlerSet) dispatchChannel(t MessageType, ch Channel, data []byte) bool {
	switch t {
	case NoteOff, NoteOn, AfterTouchPoly:
		fn := s.noteOff
		if t == NoteOn {
			fn = s.noteOn
		} else if t == AfterTouchPoly {
			fn = s.afterTouchPoly
		}
		if fn == nil {
			return false
		}
		fn(ch, data[0], data[1])
	case ControlChange:
		if s.controlChange == nil {
			return false
		}
		s.controlChange(ch, data[0], data[1])
	case ProgramChange, AfterTouchChannel:
		fn := s.programChange
		if t == AfterTouchChannel {
			fn = s.afterTouchChannel
		}
		if fn == nil {
			return false
		}
		fn(ch, data[0])
	case PitchBend:
		if s.pitchBend == nil {
			return false
		}
		s.pitchBend(ch, (int(data[1])<<7|int(data[0]))+PitchBendMin)
	default:
		return false
	}
	return true
}

func (s *handlerSet) dispatchSystem(t MessageType, data []byte) bool {
	switch t {
	case TimeCodeQuarterFrame, SongSelect:
		fn := s.timeCode
		if t == SongSelect {
			fn = s.songSelect
		}
		if fn == nil {
			return false
		}
		fn(data[0])
		return true
	case SongPosition:
		if s.songPosition == nil {
			return false
		}
		s.songPosition(uint16(data[0]) | uint16(data[1])<<7)
		return true
	}

	var fn EventHandler
	switch t {
	case TuneRequest:
		fn = s.tuneRequest
	case Clock:
		fn = s.clock
	case Start:
		fn = s.start
	case Continue:
		fn = s.cont
	case Stop:
		fn = s.stop
	case ActiveSensing:
		fn = s.activeSensing
	case SystemReset:
		fn = s.reset
	}
	if fn == nil {
		return false
	}
	fn()
	return true
}

func (s *handlerSet) dispatchSysEx(payload []byte) bool {
	if s.sysEx == nil {
		return false
	}
	if n := len(payload); n > 0 && payload[n-1] == byte(SystemExclusiveEnd) {
		payload = payload[:n-1]
	}
	s.sysEx(payload)
	return true
}
