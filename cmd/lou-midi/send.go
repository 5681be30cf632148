package main

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chase3718/lou-midi/midi"
)

type sendKind struct {
	usage string
	nargs int // -1 for variadic
	run   func(e *midi.Encoder, args []string, ch midi.Channel) error
}

// byteArgs wraps a send that takes only 7-bit data arguments.
func byteArgs(fn func(e *midi.Encoder, b []byte, ch midi.Channel) error) func(*midi.Encoder, []string, midi.Channel) error {
	return func(e *midi.Encoder, args []string, ch midi.Channel) error {
		b, err := parseDataBytes(args)
		if err != nil {
			return err
		}
		return fn(e, b, ch)
	}
}

func noArgs(fn func(e *midi.Encoder) error) func(*midi.Encoder, []string, midi.Channel) error {
	return func(e *midi.Encoder, _ []string, _ midi.Channel) error { return fn(e) }
}

var sendKinds = map[string]sendKind{
	"note-on": {"<note> <velocity>", 2, byteArgs(func(e *midi.Encoder, b []byte, ch midi.Channel) error {
		return e.NoteOn(b[0], b[1], ch)
	})},
	"note-off": {"<note> <velocity>", 2, byteArgs(func(e *midi.Encoder, b []byte, ch midi.Channel) error {
		return e.NoteOff(b[0], b[1], ch)
	})},
	"cc": {"<number> <value>", 2, byteArgs(func(e *midi.Encoder, b []byte, ch midi.Channel) error {
		return e.ControlChange(b[0], b[1], ch)
	})},
	"pc": {"<program>", 1, byteArgs(func(e *midi.Encoder, b []byte, ch midi.Channel) error {
		return e.ProgramChange(b[0], ch)
	})},
	"poly-pressure": {"<note> <pressure>", 2, byteArgs(func(e *midi.Encoder, b []byte, ch midi.Channel) error {
		return e.PolyPressure(b[0], b[1], ch)
	})},
	"aftertouch": {"<pressure>", 1, byteArgs(func(e *midi.Encoder, b []byte, ch midi.Channel) error {
		return e.AfterTouch(b[0], ch)
	})},
	"bend": {"<value -8192..8191 | -1.0..1.0>", 1, func(e *midi.Encoder, args []string, ch midi.Channel) error {
		if strings.Contains(args[0], ".") {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil || v < -1 || v > 1 {
				return fmt.Errorf("bend %q: want a number in -1.0..1.0", args[0])
			}
			return e.PitchBendFloat(v, ch)
		}
		v, err := strconv.Atoi(args[0])
		if err != nil || v < midi.PitchBendMin || v > midi.PitchBendMax {
			return fmt.Errorf("bend %q: want an integer in %d..%d", args[0], midi.PitchBendMin, midi.PitchBendMax)
		}
		return e.PitchBend(v, ch)
	}},
	"mtc": {"<data>", 1, byteArgs(func(e *midi.Encoder, b []byte, _ midi.Channel) error {
		return e.TimeCodeQuarterFrame(b[0])
	})},
	"song-position": {"<beats 0..16383>", 1, func(e *midi.Encoder, args []string, _ midi.Channel) error {
		v, err := strconv.ParseUint(args[0], 10, 14)
		if err != nil {
			return fmt.Errorf("song position %q: %w", args[0], err)
		}
		return e.SongPosition(uint16(v))
	}},
	"song-select": {"<song>", 1, byteArgs(func(e *midi.Encoder, b []byte, _ midi.Channel) error {
		return e.SongSelect(b[0])
	})},
	"sysex": {"<hex payload, without F0/F7>", -1, func(e *midi.Encoder, args []string, _ midi.Channel) error {
		payload, err := hex.DecodeString(strings.Join(args, ""))
		if err != nil {
			return fmt.Errorf("sysex payload: %w", err)
		}
		return e.SysEx(payload)
	}},
	"tune-request":   {"", 0, noArgs((*midi.Encoder).TuneRequest)},
	"clock":          {"", 0, noArgs((*midi.Encoder).Clock)},
	"tick":           {"", 0, noArgs((*midi.Encoder).Tick)},
	"start":          {"", 0, noArgs((*midi.Encoder).Start)},
	"continue":       {"", 0, noArgs((*midi.Encoder).Continue)},
	"stop":           {"", 0, noArgs((*midi.Encoder).Stop)},
	"active-sensing": {"", 0, noArgs((*midi.Encoder).ActiveSensing)},
	"reset":          {"", 0, noArgs((*midi.Encoder).Reset)},
}

func parseDataBytes(args []string) ([]byte, error) {
	out := make([]byte, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil || v > 127 {
			return nil, fmt.Errorf("data byte %q: want 0..127", a)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// runSend encodes one message described by args onto e.
func runSend(e *midi.Encoder, args []string, ch midi.Channel) error {
	kind, ok := sendKinds[args[0]]
	if !ok {
		return fmt.Errorf("unknown message %q (want one of %s)", args[0], strings.Join(kindNames(), ", "))
	}
	rest := args[1:]
	if kind.nargs >= 0 && len(rest) != kind.nargs {
		return fmt.Errorf("%s takes %d argument(s): %s", args[0], kind.nargs, kind.usage)
	}
	return kind.run(e, rest, ch)
}

func kindNames() []string {
	names := make([]string, 0, len(sendKinds))
	for name := range sendKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sendUsage() string {
	var sb strings.Builder
	sb.WriteString("Messages:\n")
	for _, name := range kindNames() {
		fmt.Fprintf(&sb, "  %-15s %s\n", name, sendKinds[name].usage)
	}
	return sb.String()
}

var sendCmd = &cobra.Command{
	Use:   "send <message> [args...]",
	Short: "Encode and send one MIDI message",
	Long: "Encode one MIDI message and write it to the output. Flags go before the\n" +
		"message name; everything after it is an argument, so negative bends parse as values.\n\n" + sendUsage(),
	Example: `  lou-midi send -c 1 note-on 60 100
  lou-midi send --port "IAC Driver" bend -0.5
  lou-midi send sysex 00 20 29 02 0C 00 7F`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newOutput(cfg)
		if err != nil {
			return err
		}
		defer out.Close()

		if err := runSend(out.enc, args, channel()); err != nil {
			return err
		}
		logger.Info("message sent", "message", args[0], "channel", cfg.Output.Channel)
		return nil
	},
}

func init() {
	// stop flag parsing at the message name so "-0.5" and "-100" stay arguments
	sendCmd.Flags().SetInterspersed(false)
}
