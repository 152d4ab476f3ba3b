package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/CK6170/Manocal-go/modern"
)

var (
	logLevel   = "info"
	configPath = ""
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}
	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, modern.ErrPortUnavailable):
		fmt.Fprintln(os.Stderr, "\nError: the serial port could not be opened")
		fmt.Fprintln(os.Stderr, "  - Is the device plugged in and powered?")
		fmt.Fprintln(os.Stderr, "  - Check SERIAL.PORT, or try 'manocal ports' to find it")
	case errors.Is(err, modern.ErrIOFailure):
		fmt.Fprintln(os.Stderr, "\nError: calibration stopped on an I/O failure")
		fmt.Fprintln(os.Stderr, "  - Rows written before the failure are kept in the output file")
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "\nInterrupted")
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manocal",
		Short: "Manual pressure-transducer calibration against a reference manometer",
		Long: `manocal guides an operator through a manual calibration session: it reads raw
ADC values from a sensor over a serial port, averages them per calibration step
and writes one CSV row per step next to the manometer reading entered by hand.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
	}

	cmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML); values may also come from MANOCAL_* env vars")

	cmd.AddCommand(
		NewRunCommand(),
		NewMonitorCommand(),
		NewPortsCommand(),
	)

	return cmd
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}
