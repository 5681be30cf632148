package midi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// recorder keeps every Write call separately so tests can check message
// boundaries as well as bytes.
type recorder struct {
	writes [][]byte
}

func (r *recorder) Write(p []byte) (int, error) {
	r.writes = append(r.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (r *recorder) bytes() []byte {
	var out []byte
	for _, w := range r.writes {
		out = append(out, w...)
	}
	return out
}

type failingWriter struct{}

var errUnplugged = errors.New("unplugged")

func (failingWriter) Write(p []byte) (int, error) { return 0, errUnplugged }

type countingObserver struct {
	sent    map[MessageType]int
	dropped map[MessageType]string
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		sent:    map[MessageType]int{},
		dropped: map[MessageType]string{},
	}
}

func (o *countingObserver) MessageSent(t MessageType, n int)            { o.sent[t] += n }
func (o *countingObserver) MessageDropped(t MessageType, reason string) { o.dropped[t] = reason }

func TestEncoder_ChannelMessages(t *testing.T) {
	t.Run("note on", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, NewEncoder(rec).NoteOn(60, 100, 1))
		assert.Equal(t, [][]byte{{0x90, 60, 100}}, rec.writes)
	})

	t.Run("program change has one data byte", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, NewEncoder(rec).ProgramChange(5, 2))
		assert.Equal(t, [][]byte{{0xC1, 5}}, rec.writes)
	})

	t.Run("channel pressure has one data byte", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, NewEncoder(rec).AfterTouch(33, 16))
		assert.Equal(t, [][]byte{{0xDF, 33}}, rec.writes)
	})

	t.Run("matches gomidi", func(t *testing.T) {
		rec := &recorder{}
		enc := NewEncoder(rec)
		require.NoError(t, enc.NoteOn(64, 90, 3))
		require.NoError(t, enc.NoteOff(64, 12, 3))
		require.NoError(t, enc.ControlChange(7, 127, 10))
		require.NoError(t, enc.ProgramChange(42, 16))
		require.NoError(t, enc.PolyPressure(61, 70, 4))
		require.NoError(t, enc.AfterTouch(20, 5))

		assert.Equal(t, [][]byte{
			[]byte(gomidi.NoteOn(2, 64, 90)),
			[]byte(gomidi.NoteOffVelocity(2, 64, 12)),
			[]byte(gomidi.ControlChange(9, 7, 127)),
			[]byte(gomidi.ProgramChange(15, 42)),
			[]byte(gomidi.PolyAfterTouch(3, 61, 70)),
			[]byte(gomidi.AfterTouch(4, 20)),
		}, rec.writes)
	})

	t.Run("data bytes are masked", func(t *testing.T) {
		for v := 0; v < 256; v++ {
			rec := &recorder{}
			enc := NewEncoder(rec)
			require.NoError(t, enc.NoteOn(byte(v), byte(v), 1))
			require.NoError(t, enc.ProgramChange(byte(v), 1))
			require.Len(t, rec.writes, 2)
			for _, msg := range rec.writes {
				for _, b := range msg[1:] {
					assert.Zero(t, b&0x80, "value %d leaked bit 7", v)
				}
			}
		}
	})
}

func TestEncoder_Guards(t *testing.T) {
	cases := []struct {
		name string
		send func(e *Encoder) error
	}{
		{"omni", func(e *Encoder) error { return e.NoteOn(60, 100, ChannelOmni) }},
		{"off", func(e *Encoder) error { return e.NoteOn(60, 100, ChannelOff) }},
		{"above off", func(e *Encoder) error { return e.ControlChange(1, 2, 200) }},
		{"bend to omni", func(e *Encoder) error { return e.PitchBend(0, ChannelOmni) }},
		{"data byte as type", func(e *Encoder) error { return e.sendChannelMessage(0x40, 1, 2, 1) }},
		{"sysex as channel message", func(e *Encoder) error { return e.sendChannelMessage(SystemExclusive, 1, 2, 1) }},
		{"channel type as system common", func(e *Encoder) error { return e.sendSystemCommonMessage(NoteOn, 1, 2) }},
		{"undefined real-time", func(e *Encoder) error { return e.sendRealTimeMessage(0xFD) }},
		{"channel type as real-time", func(e *Encoder) error { return e.sendRealTimeMessage(NoteOn) }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := &recorder{}
			obs := newCountingObserver()
			assert.NoError(t, c.send(NewEncoder(rec, WithObserver(obs))))
			assert.Empty(t, rec.writes)
			assert.Len(t, obs.dropped, 1)
		})
	}
}

func TestEncoder_RealTimeThroughChannelPath(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, NewEncoder(rec).sendChannelMessage(Clock, 0x7F, 0x7F, 1))
	assert.Equal(t, [][]byte{{0xF8}}, rec.writes)
}

func TestEncoder_PitchBend(t *testing.T) {
	t.Run("centre", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, NewEncoder(rec).PitchBend(0, 1))
		bend := 0 - PitchBendMin
		assert.Equal(t, []byte{0xE0, byte(bend & 0x7F), byte(bend >> 7 & 0x7F)}, rec.bytes())
		assert.Equal(t, []byte{0xE0, 0x00, 0x40}, rec.bytes())
	})

	t.Run("extremes", func(t *testing.T) {
		rec := &recorder{}
		enc := NewEncoder(rec)
		require.NoError(t, enc.PitchBend(PitchBendMin, 1))
		require.NoError(t, enc.PitchBend(PitchBendMax, 1))
		assert.Equal(t, [][]byte{{0xE0, 0x00, 0x00}, {0xE0, 0x7F, 0x7F}}, rec.writes)
	})

	t.Run("normalised equals integer", func(t *testing.T) {
		for _, c := range []struct {
			f float64
			i int
		}{
			{1.0, PitchBendMax},
			{-1.0, PitchBendMin},
			{0, 0},
			{0.5, PitchBendMax / 2},
			{-0.5, PitchBendMin / 2},
		} {
			a, b := &recorder{}, &recorder{}
			require.NoError(t, NewEncoder(a).PitchBendFloat(c.f, 1))
			require.NoError(t, NewEncoder(b).PitchBend(c.i, 1))
			assert.Equal(t, b.writes, a.writes, "%v", c.f)
		}
	})

	t.Run("matches gomidi", func(t *testing.T) {
		for _, v := range []int{PitchBendMin, -1000, 0, 1, 4096, PitchBendMax} {
			rec := &recorder{}
			require.NoError(t, NewEncoder(rec).PitchBend(v, 9))
			assert.Equal(t, []byte(gomidi.Pitchbend(8, int16(v))), rec.bytes(), "%d", v)
		}
	})
}

func TestEncoder_SystemCommon(t *testing.T) {
	rec := &recorder{}
	enc := NewEncoder(rec)

	require.NoError(t, enc.TimeCodeQuarterFrame(0x35))
	require.NoError(t, enc.TimeCodeQuarterFrameNibbles(0x0B, 0x1F))
	require.NoError(t, enc.SongPosition(0x3FFF))
	require.NoError(t, enc.SongPosition(300))
	require.NoError(t, enc.SongSelect(0xFF))
	require.NoError(t, enc.TuneRequest())

	assert.Equal(t, [][]byte{
		{0xF1, 0x35},
		{0xF1, 0x3F},
		{0xF2, 0x7F, 0x7F},
		{0xF2, 300 & 0x7F, 300 >> 7},
		{0xF3, 0x7F},
		{0xF6},
	}, rec.writes)
}

func TestEncoder_RealTime(t *testing.T) {
	rec := &recorder{}
	enc := NewEncoder(rec)

	for _, send := range []func() error{
		enc.Clock, enc.Tick, enc.Start, enc.Continue,
		enc.Stop, enc.ActiveSensing, enc.Reset,
	} {
		require.NoError(t, send())
	}

	assert.Equal(t, [][]byte{{0xF8}, {0xF9}, {0xFA}, {0xFB}, {0xFC}, {0xFE}, {0xFF}}, rec.writes)
}

func TestEncoder_RealTimeInterleaving(t *testing.T) {
	rec := &recorder{}
	enc := NewEncoder(rec)
	require.NoError(t, enc.NoteOn(60, 100, 1))
	require.NoError(t, enc.Clock())
	require.Len(t, rec.writes, 2)

	note, clock := rec.writes[0], rec.writes[1]
	require.Equal(t, []byte{0xF8}, clock)

	// splice the clock byte between the two data bytes of the note
	wire := []byte{note[0], note[1], clock[0], note[2]}

	var rest, realtime []byte
	for _, b := range wire {
		if IsRealTime(TypeFromStatus(b)) {
			realtime = append(realtime, b)
			continue
		}
		rest = append(rest, b)
	}
	assert.Equal(t, []byte{0xF8}, realtime)
	assert.Equal(t, []byte{0x90, 60, 100}, rest)

	h := &Handlers{}
	var got []byte
	h.HandleNoteOn(func(ch Channel, n, v byte) { got = []byte{byte(ch), n, v} })
	clocks := 0
	h.HandleClock(func() { clocks++ })
	assert.True(t, h.Dispatch(rest))
	assert.True(t, h.Dispatch(realtime))
	assert.Equal(t, []byte{1, 60, 100}, got)
	assert.Equal(t, 1, clocks)
}

func TestEncoder_SysEx(t *testing.T) {
	rec := &recorder{}
	enc := NewEncoder(rec)

	payload := []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F}
	require.NoError(t, enc.SysEx(payload))
	require.NoError(t, enc.SysEx([]byte{0x81, 0xFF}))
	require.NoError(t, enc.SysEx(nil))

	assert.Equal(t, []byte(gomidi.SysEx(payload)), rec.writes[0])
	assert.Equal(t, []byte{0xF0, 0x01, 0x7F, 0xF7}, rec.writes[1])
	assert.Equal(t, []byte{0xF0, 0xF7}, rec.writes[2])
}

func TestEncoder_RunningStatus(t *testing.T) {
	t.Run("repeated status is omitted", func(t *testing.T) {
		rec := &recorder{}
		enc := NewEncoder(rec, WithRunningStatus())
		require.NoError(t, enc.NoteOn(60, 100, 1))
		require.NoError(t, enc.NoteOn(64, 100, 1))
		require.NoError(t, enc.NoteOn(67, 100, 2))
		require.NoError(t, enc.NoteOn(67, 0, 2))

		assert.Equal(t, [][]byte{
			{0x90, 60, 100},
			{64, 100},
			{0x91, 67, 100},
			{67, 0},
		}, rec.writes)
	})

	t.Run("real-time keeps it", func(t *testing.T) {
		rec := &recorder{}
		enc := NewEncoder(rec, WithRunningStatus())
		require.NoError(t, enc.ControlChange(1, 10, 1))
		require.NoError(t, enc.Clock())
		require.NoError(t, enc.ControlChange(1, 11, 1))

		assert.Equal(t, [][]byte{{0xB0, 1, 10}, {0xF8}, {1, 11}}, rec.writes)
	})

	t.Run("system common clears it", func(t *testing.T) {
		rec := &recorder{}
		enc := NewEncoder(rec, WithRunningStatus())
		require.NoError(t, enc.ProgramChange(1, 1))
		require.NoError(t, enc.SongSelect(3))
		require.NoError(t, enc.ProgramChange(2, 1))
		require.NoError(t, enc.SysEx([]byte{1}))
		require.NoError(t, enc.ProgramChange(3, 1))

		assert.Equal(t, [][]byte{
			{0xC0, 1},
			{0xF3, 3},
			{0xC0, 2},
			{0xF0, 1, 0xF7},
			{0xC0, 3},
		}, rec.writes)
	})

	t.Run("off by default", func(t *testing.T) {
		rec := &recorder{}
		enc := NewEncoder(rec)
		require.NoError(t, enc.NoteOn(60, 100, 1))
		require.NoError(t, enc.NoteOn(60, 100, 1))
		assert.Equal(t, [][]byte{{0x90, 60, 100}, {0x90, 60, 100}}, rec.writes)
	})
}

func TestEncoder_WriteError(t *testing.T) {
	obs := newCountingObserver()
	enc := NewEncoder(failingWriter{}, WithRunningStatus(), WithObserver(obs))

	err := enc.NoteOn(60, 100, 1)
	assert.ErrorIs(t, err, errUnplugged)
	assert.Contains(t, err.Error(), "NoteOn")
	assert.ErrorIs(t, enc.Clock(), errUnplugged)
	assert.Empty(t, obs.sent)

	// guarded sends never reach the writer
	assert.NoError(t, enc.NoteOn(60, 100, ChannelOmni))
}

func TestEncoder_Observer(t *testing.T) {
	obs := newCountingObserver()
	enc := NewEncoder(&recorder{}, WithObserver(obs))
	require.NoError(t, enc.NoteOn(60, 100, 1))
	require.NoError(t, enc.NoteOn(60, 100, ChannelOff))
	require.NoError(t, enc.Clock())

	assert.Equal(t, 3, obs.sent[NoteOn])
	assert.Equal(t, 1, obs.sent[Clock])
	assert.Equal(t, "guard", obs.dropped[NoteOn])
}
