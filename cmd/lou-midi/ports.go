package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/lou-midi/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports and serial devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		serials, err := transport.SerialPorts()
		if err != nil {
			logger.Warn("ports: serial scan failed", "err", err)
		}
		printList(w, "Serial devices", serials)

		drv, err := rtmididrv.New()
		if err != nil {
			return fmt.Errorf("rtmididrv: %w", err)
		}
		defer drv.Close()

		ins, outs, err := transport.PortNames(drv)
		if err != nil {
			return err
		}
		printList(w, "MIDI inputs", ins)
		printList(w, "MIDI outputs", outs)
		return nil
	},
}

func printList(w io.Writer, title string, names []string) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(names) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", n)
	}
}
