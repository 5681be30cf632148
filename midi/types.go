// Package midi encodes MIDI 1.0 messages into their wire bytes, classifies
// received status bytes, and holds the handler table an inbound parser
// dispatches complete messages to.
package midi

import "fmt"

// MessageType is the status-byte code of a message. Channel messages use the
// high nibble only; system messages occupy the full byte.
type MessageType byte

const (
	InvalidType MessageType = 0x00

	// Channel messages
	NoteOff           MessageType = 0x80
	NoteOn            MessageType = 0x90
	AfterTouchPoly    MessageType = 0xA0
	ControlChange     MessageType = 0xB0
	ProgramChange     MessageType = 0xC0
	AfterTouchChannel MessageType = 0xD0
	PitchBend         MessageType = 0xE0

	// System common
	SystemExclusive      MessageType = 0xF0
	TimeCodeQuarterFrame MessageType = 0xF1
	SongPosition         MessageType = 0xF2
	SongSelect           MessageType = 0xF3
	TuneRequest          MessageType = 0xF6
	SystemExclusiveEnd   MessageType = 0xF7

	// System real-time
	Clock         MessageType = 0xF8
	Tick          MessageType = 0xF9
	Start         MessageType = 0xFA
	Continue      MessageType = 0xFB
	Stop          MessageType = 0xFC
	ActiveSensing MessageType = 0xFE
	SystemReset   MessageType = 0xFF
)

var typeNames = map[MessageType]string{
	InvalidType:          "InvalidType",
	NoteOff:              "NoteOff",
	NoteOn:               "NoteOn",
	AfterTouchPoly:       "AfterTouchPoly",
	ControlChange:        "ControlChange",
	ProgramChange:        "ProgramChange",
	AfterTouchChannel:    "AfterTouchChannel",
	PitchBend:            "PitchBend",
	SystemExclusive:      "SystemExclusive",
	TimeCodeQuarterFrame: "TimeCodeQuarterFrame",
	SongPosition:         "SongPosition",
	SongSelect:           "SongSelect",
	TuneRequest:          "TuneRequest",
	SystemExclusiveEnd:   "SystemExclusiveEnd",
	Clock:                "Clock",
	Tick:                 "Tick",
	Start:                "Start",
	Continue:             "Continue",
	Stop:                 "Stop",
	ActiveSensing:        "ActiveSensing",
	SystemReset:          "SystemReset",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(0x%02X)", byte(t))
}

// Channel is a 1-based MIDI channel. ChannelOmni and ChannelOff are only
// meaningful as outbound guards: sending to either is a no-op.
type Channel byte

const (
	ChannelOmni Channel = 0
	ChannelMin  Channel = 1
	ChannelMax  Channel = 16
	ChannelOff  Channel = 17
)

// Pitch bend range of the integer encoding, centred on zero.
const (
	PitchBendMin = -8192
	PitchBendMax = 8191
)

const (
	dataMask    = 0x7F
	typeMask    = 0xF0
	channelMask = 0x0F
)
