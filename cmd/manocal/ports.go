package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CK6170/Manocal-go/modern"
	serialpkg "github.com/CK6170/Manocal-go/serial"
)

func NewPortsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and check which one sends sensor records",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := modern.LoadParameters(configPath, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			candidates := serialpkg.Candidates()
			if len(candidates) == 0 {
				warning.Fprintln(out, "No serial ports found.")
				return nil
			}
			found := ""
			for _, name := range candidates {
				ok := serialpkg.TestPort(name, p.SERIAL.BAUDRATE, p.SERIAL.READTIMEOUT)
				if ok && found == "" {
					found = name
				}
				fmt.Fprintf(out, "  %s %s\n", checkMark(ok), name)
			}
			if found == "" {
				warning.Fprintln(out, "No port answered with sensor records.")
				return nil
			}
			fmt.Fprintf(out, "\nUse %s\n", bold.Sprintf("--port %s", found))
			return nil
		},
	}
	return cmd
}
