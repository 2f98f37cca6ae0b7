package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/termbridge/internal/transport"
	"pkt.systems/termbridge/schema"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report local serial devices and transport capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			ports, err := transport.ListSerialPorts()
			if err != nil {
				return fmt.Errorf("list serial ports: %w", err)
			}
			if len(ports) == 0 {
				fmt.Fprintln(out, "serial: no local devices found")
			} else {
				fmt.Fprintln(out, "serial devices:")
				for _, p := range ports {
					fmt.Fprintf(out, "  %s\n", p)
				}
			}

			fmt.Fprintln(out, "\ntransport capabilities:")
			kinds := []schema.TransportKindTag{
				schema.TransportSerial,
				schema.TransportTCP,
				schema.TransportTelnet,
				schema.TransportSSH,
				schema.TransportBLE,
			}
			for _, kind := range kinds {
				tr, err := transport.New(schema.TransportKind{Kind: kind})
				if err != nil {
					fmt.Fprintf(out, "  %-8s unavailable: %v\n", kind, err)
					continue
				}
				caps := tr.Capabilities()
				fmt.Fprintf(out, "  %-8s send=%-5v receive=%-5v flow_control=%-5v modem_lines=%-5v break=%-5v file_transfer=%-5v max_baud=%d\n",
					kind, caps.CanSend, caps.CanReceive, caps.SupportsFlowControl,
					caps.SupportsModemLines, caps.SupportsBreak, caps.SupportsFileTransfer, caps.MaxBaud)
			}
			return nil
		},
	}
}
