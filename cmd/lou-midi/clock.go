package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chase3718/lou-midi/midi"
)

const pulsesPerQuarter = 24

var clockFlags struct {
	bpm      float64
	duration time.Duration
}

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Send MIDI clock: Start, 24 pulses per quarter note, Stop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if clockFlags.bpm <= 0 {
			return fmt.Errorf("--bpm must be positive, got %g", clockFlags.bpm)
		}
		out, err := newOutput(cfg)
		if err != nil {
			return err
		}
		defer out.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if clockFlags.duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, clockFlags.duration)
			defer cancel()
		}

		logger.Info("clock: running", "bpm", clockFlags.bpm, "duration", clockFlags.duration)
		pulses, err := runClock(ctx, out.enc, clockFlags.bpm)
		logger.Info("clock: stopped", "pulses", pulses)
		return err
	},
}

func init() {
	clockCmd.Flags().Float64Var(&clockFlags.bpm, "bpm", 120, "tempo in beats per minute")
	clockCmd.Flags().DurationVar(&clockFlags.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
}

func pulseInterval(bpm float64) time.Duration {
	return time.Duration(float64(time.Minute) / (bpm * pulsesPerQuarter))
}

// runClock sends Start, then one Clock per pulse until ctx is done, then Stop.
// It returns the number of Clock messages sent.
func runClock(ctx context.Context, enc *midi.Encoder, bpm float64) (int, error) {
	if err := enc.Start(); err != nil {
		return 0, err
	}

	ticker := time.NewTicker(pulseInterval(bpm))
	defer ticker.Stop()

	pulses := 0
	for {
		select {
		case <-ctx.Done():
			return pulses, enc.Stop()
		case <-ticker.C:
			if err := enc.Clock(); err != nil {
				return pulses, err
			}
			pulses++
		}
	}
}
