package main

import (
	"context"
	"encoding/hex"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/lou-midi/midi"
	"github.com/chase3718/lou-midi/transport"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Connect to a MIDI input and log every message received",
	Long: `monitor watches for MIDI inputs, connects to the first preferred one
(input.preferred in the config) and reconnects when the device is replugged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, err := rtmididrv.New()
		if err != nil {
			return err
		}
		defer drv.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := transport.NewWatcher(drv, logHandlers(logger), transport.WatcherConfig{
			Preferred: cfg.Input.Preferred,
			Excluded:  cfg.Input.Excluded,
			OnDisconnect: func() {
				logger.Warn("monitor: input disconnected, waiting for it to come back")
			},
			Logger: logger,
		})
		w.Run(ctx)
		return nil
	},
}

// logHandlers returns a dispatch table that logs every event kind. Clock and
// active sensing log at debug since they arrive many times per second.
func logHandlers(log *slog.Logger) *midi.Handlers {
	h := &midi.Handlers{}
	note := func(kind string) midi.NoteHandler {
		return func(ch midi.Channel, note, velocity byte) {
			log.Info(kind, "channel", ch, "note", note, "velocity", velocity)
		}
	}
	event := func(level slog.Level, kind string) midi.EventHandler {
		return func() { log.Log(context.Background(), level, kind) }
	}

	h.HandleNoteOn(note("note on"))
	h.HandleNoteOff(note("note off"))
	h.HandleAfterTouchPoly(func(ch midi.Channel, note, pressure byte) {
		log.Info("poly pressure", "channel", ch, "note", note, "pressure", pressure)
	})
	h.HandleControlChange(func(ch midi.Channel, number, value byte) {
		log.Info("control change", "channel", ch, "number", number, "value", value)
	})
	h.HandleProgramChange(func(ch midi.Channel, program byte) {
		log.Info("program change", "channel", ch, "program", program)
	})
	h.HandleAfterTouchChannel(func(ch midi.Channel, pressure byte) {
		log.Info("aftertouch", "channel", ch, "pressure", pressure)
	})
	h.HandlePitchBend(func(ch midi.Channel, bend int) {
		log.Info("pitch bend", "channel", ch, "bend", bend)
	})
	h.HandleSysEx(func(data []byte) {
		log.Info("sysex", "len", len(data), "data", hex.EncodeToString(data))
	})
	h.HandleTimeCodeQuarterFrame(func(data byte) {
		log.Debug("time code quarter frame", "type", data>>4, "value", data&0x0F)
	})
	h.HandleSongPosition(func(beats uint16) {
		log.Info("song position", "beats", beats)
	})
	h.HandleSongSelect(func(song byte) {
		log.Info("song select", "song", song)
	})
	h.HandleTuneRequest(event(slog.LevelInfo, "tune request"))
	h.HandleClock(event(slog.LevelDebug, "clock"))
	h.HandleStart(event(slog.LevelInfo, "start"))
	h.HandleContinue(event(slog.LevelInfo, "continue"))
	h.HandleStop(event(slog.LevelInfo, "stop"))
	h.HandleActiveSensing(event(slog.LevelDebug, "active sensing"))
	h.HandleReset(event(slog.LevelInfo, "reset"))
	return h
}
