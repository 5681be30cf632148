package midi

// TypeFromStatus extracts the message type from a status byte. Data bytes and
// the undefined system codes map to InvalidType.
func TypeFromStatus(status byte) MessageType {
	switch {
	case status < 0x80,
		status == 0xF4,
		status == 0xF5,
		status == 0xF9,
		status == 0xFD:
		return InvalidType
	case status < 0xF0:
		// channel message, drop the channel nibble
		return MessageType(status & typeMask)
	}
	return MessageType(status)
}

// ChannelFromStatus returns the 1-based channel held in the low nibble. Only
// meaningful when TypeFromStatus reported a channel message.
func ChannelFromStatus(status byte) Channel {
	return Channel(status&channelMask) + 1
}

// StatusFor builds the status byte of a channel message.
func StatusFor(t MessageType, ch Channel) byte {
	return byte(t)&typeMask | (byte(ch)-1)&channelMask
}

// IsChannelMessage reports whether t carries a channel nibble.
func IsChannelMessage(t MessageType) bool {
	switch t {
	case NoteOff, NoteOn, AfterTouchPoly, ControlChange,
		ProgramChange, AfterTouchChannel, PitchBend:
		return true
	}
	return false
}

// IsSystemCommon reports whether t is one of the system common messages.
func IsSystemCommon(t MessageType) bool {
	switch t {
	case TimeCodeQuarterFrame, SongPosition, SongSelect, TuneRequest:
		return true
	}
	return false
}

// IsRealTime reports whether t is a single-byte real-time message.
func IsRealTime(t MessageType) bool {
	switch t {
	case Clock, Tick, Start, Continue, Stop, ActiveSensing, SystemReset:
		return true
	}
	return false
}

// DataLength is the number of data bytes that follow the status byte of t.
// SystemExclusive is variable and reports -1.
func DataLength(t MessageType) int {
	switch t {
	case ProgramChange, AfterTouchChannel, TimeCodeQuarterFrame, SongSelect:
		return 1
	case NoteOff, NoteOn, AfterTouchPoly, ControlChange, PitchBend, SongPosition:
		return 2
	case SystemExclusive:
		return -1
	}
	return 0
}
