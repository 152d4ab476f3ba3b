package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/CK6170/Manocal-go/modern"
	"github.com/CK6170/Manocal-go/ui"
)

func NewMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show live ADC readings without recording them",
		Long: `Monitor prints every record the sensor sends together with min/max/average over
the last few readings. Use it to check wiring and settling before a session.
Press Esc or q to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadParameters(cmd)
			if err != nil {
				return err
			}
			window, _ := cmd.Flags().GetInt("window")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			log := logrus.WithField("port", p.SERIAL.PORT)
			link, err := modern.AcquireLink(ctx, modern.PortOpener(p.SERIAL), p.SERIAL.RETRIES, p.SERIAL.RETRYDELAY, clock.New(),
				func(attempt int, err error) {
					log.WithField("attempt", attempt).Warnf("failed to open port: %v", err)
				})
			if err != nil {
				return err
			}
			defer func() { _ = link.Close() }()

			keys := ui.StartKeyEvents()
			defer ui.StopKeyEvents()
			go func() {
				for r := range keys {
					if ui.IsQuitKey(r) {
						cancel()
						return
					}
				}
			}()

			out := cmd.OutOrStdout()
			green.Fprintf(out, "Reading %s (Esc or q to quit)\r\n", p.SERIAL.PORT)
			err = modern.Monitor(ctx, link, window, func(s modern.MonitorSnapshot) {
				fmt.Fprintf(out, "\r\033[KADC %8d | last %d: min %d max %d avg %.2f sd %.2f | ok %d bad %d idle %d",
					s.Last.ADC, s.Window.N, s.Window.Min, s.Window.Max, s.Window.Mean, s.Window.StdDev,
					s.Received, s.Malformed, s.Timeouts)
			})
			fmt.Fprint(out, "\r\n")
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	addSerialFlags(cmd)
	cmd.Flags().IntP("window", "w", modern.DefaultMeasurements, "number of recent readings to summarize")
	return cmd
}
