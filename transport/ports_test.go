package transport

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/chase3718/lou-midi/midi"
)

func TestOutPort_Write(t *testing.T) {
	var sent []gomidi.Message
	closed := false
	out := newOutPort("Synth", func(msg gomidi.Message) error {
		sent = append(sent, append(gomidi.Message(nil), msg...))
		return nil
	}, func() error {
		closed = true
		return nil
	}, slog.Default())

	enc := midi.NewEncoder(out)
	require.NoError(t, enc.NoteOn(60, 100, 1))
	require.NoError(t, enc.Start())

	var ch, key, vel uint8
	require.Len(t, sent, 2)
	assert.True(t, sent[0].GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, []uint8{0, 60, 100}, []uint8{ch, key, vel})
	assert.Equal(t, gomidi.Message{0xFA}, sent[1])

	require.NoError(t, out.Close())
	assert.True(t, closed)
}

func TestOutPort_SendError(t *testing.T) {
	errGone := errors.New("port gone")
	out := newOutPort("Synth", func(gomidi.Message) error { return errGone }, nil, slog.Default())

	n, err := out.Write([]byte{0xF8})
	assert.Zero(t, n)
	assert.ErrorIs(t, err, errGone)
	assert.NoError(t, out.Close())
}

func TestPickPreferred(t *testing.T) {
	preferred := []string{"Launchkey", "Novation"}

	name, ok := pickPreferred([]string{"USB Keys", "Launchkey Mini MIDI 1"}, preferred)
	assert.True(t, ok)
	assert.Equal(t, "Launchkey Mini MIDI 1", name)

	name, ok = pickPreferred([]string{"usb keys"}, preferred)
	assert.True(t, ok)
	assert.Equal(t, "usb keys", name)

	_, ok = pickPreferred([]string{"a", "b"}, preferred)
	assert.False(t, ok)

	_, ok = pickPreferred(nil, preferred)
	assert.False(t, ok)
}

func TestFilterExcluded(t *testing.T) {
	names := []string{"Midi Through Port-0", "Launchkey MIDI", "Dummy In", "Keys"}
	assert.Equal(t,
		[]string{"Launchkey MIDI", "Keys"},
		filterExcluded(names, []string{"midi through", "Dummy"}))
	assert.Equal(t, names, filterExcluded(names, nil))
}
