package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/lou-midi/internal/config"
	"github.com/chase3718/lou-midi/metrics"
	"github.com/chase3718/lou-midi/midi"
	"github.com/chase3718/lou-midi/transport"
)

type globalFlags struct {
	configPath  string
	serial      string
	baud        int
	port        string
	channel     int
	debug       bool
	metricsAddr string
}

var (
	flags globalFlags
	cfg   *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lou-midi",
	Short: "Send and monitor MIDI over a serial line or MIDI port",
	Long: `lou-midi encodes MIDI 1.0 messages and writes them to a serial device
(DIN MIDI, Arduino, USB-serial bridge) or a MIDI output port, and monitors a
MIDI input, logging every message it receives.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := flags.configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err == nil {
				path = p
			}
		}

		var err error
		if path != "" {
			cfg, err = config.Load(path)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Default()
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		initLogger(cfg.Debug)
		logger.Debug("config loaded", "path", path, "serial", cfg.Serial.Device,
			"baud", cfg.Serial.Baud, "port", cfg.Output.Port, "channel", cfg.Output.Channel)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/lou-midi/config.yaml)")
	pf.StringVar(&flags.serial, "serial", "", "serial port device")
	pf.IntVar(&flags.baud, "baud", 0, "serial baud rate")
	pf.StringVar(&flags.port, "port", "", "MIDI output port name (instead of serial)")
	pf.IntVarP(&flags.channel, "channel", "c", 0, "MIDI channel 1-16")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging (adds source location)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(sendCmd, clockCmd, monitorCmd, portsCmd)
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("serial") {
		c.Serial.Device = flags.serial
	}
	if f.Changed("baud") {
		c.Serial.Baud = flags.baud
	}
	if f.Changed("port") {
		c.Output.Port = flags.port
	}
	if f.Changed("channel") {
		c.Output.Channel = flags.channel
	}
	if f.Changed("debug") {
		c.Debug = flags.debug
	}
	if f.Changed("metrics-addr") {
		c.Metrics.Addr = flags.metricsAddr
	}
}

// output is an opened transport with the encoder writing to it.
type output struct {
	enc     *midi.Encoder
	buf     *transport.Buffered
	closers []func() error
}

func (o *output) Close() error {
	var errs []error
	if o.buf != nil {
		errs = append(errs, o.buf.Flush())
	}
	for i := len(o.closers) - 1; i >= 0; i-- {
		errs = append(errs, o.closers[i]())
	}
	return errors.Join(errs...)
}

// newOutput is swapped out in tests.
var newOutput = openOutput

// openOutput opens the configured transport and builds an encoder on it.
func openOutput(c *config.Config) (*output, error) {
	out := &output{}

	var w io.Writer
	byteStream := c.Output.Port == ""
	if !byteStream {
		drv, err := rtmididrv.New()
		if err != nil {
			return nil, fmt.Errorf("rtmididrv: %w", err)
		}
		port, err := transport.OpenOutPort(drv, c.Output.Port, logger)
		if err != nil {
			drv.Close()
			return nil, err
		}
		out.closers = append(out.closers, func() error { drv.Close(); return nil }, port.Close)
		w = port
	} else {
		sp, err := transport.OpenSerial(c.Serial.Device, c.Serial.Baud, logger)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, sp.Close)
		w = sp
	}

	opts := []midi.Option{midi.WithLogger(logger)}
	if c.Metrics.Addr != "" {
		opts = append(opts, midi.WithObserver(metrics.NewCollector(prometheus.DefaultRegisterer)))
		serveMetrics(c.Metrics.Addr)
	}
	out.enc, out.buf = newEncoder(w, c, byteStream, opts...)
	return out, nil
}

// newEncoder builds the encoder for w. Batching and running status only
// apply to a byte stream; a MIDI port takes one complete message per Write.
func newEncoder(w io.Writer, c *config.Config, byteStream bool, opts ...midi.Option) (*midi.Encoder, *transport.Buffered) {
	if !byteStream {
		if c.Serial.Buffer > 0 || c.Output.RunningStatus {
			logger.Warn("output: serial.buffer and output.running_status ignored for a MIDI port",
				"port", c.Output.Port)
		}
		return midi.NewEncoder(w, opts...), nil
	}

	var buf *transport.Buffered
	if c.Serial.Buffer > 0 {
		buf = transport.NewBuffered(w, c.Serial.Buffer)
		w = buf
	}
	if c.Output.RunningStatus {
		opts = append(opts, midi.WithRunningStatus())
	}
	return midi.NewEncoder(w, opts...), buf
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	go func() {
		logger.Info("metrics: listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics: server stopped", "err", err)
		}
	}()
}

func channel() midi.Channel {
	return midi.Channel(cfg.Output.Channel)
}
