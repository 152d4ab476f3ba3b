package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/CK6170/Manocal-go/modern"
)

var (
	green   = color.New(color.FgHiGreen)
	warning = color.New(color.FgHiYellow)
	bold    = color.New(color.Bold)
)

// consolePrinter renders session events for the operator. Diagnostics go to
// the logger, not here.
type consolePrinter struct {
	out  io.Writer
	port string
}

func (p *consolePrinter) Handle(ev modern.Event) {
	switch ev.Kind {
	case modern.EventPortOpened:
		green.Fprintf(p.out, "Using port: %s\n", p.port)
	case modern.EventOutputReady:
		fmt.Fprintf(p.out, "Writing data to %s\n", ev.Path)
	case modern.EventAwaitStart:
		bold.Fprintln(p.out, "Enter 'start' to begin calibration:")
	case modern.EventPrompt:
		bold.Fprintf(p.out, "Enter manometer reading for step %d/%d (bar) or 'stop' to end:\n", ev.Step, ev.MaxSteps)
	case modern.EventSampling:
		fmt.Fprintf(p.out, "Sampling step %d, one measurement every %s...\n", ev.Step, ev.Wait)
	case modern.EventSample:
		fmt.Fprintf(p.out, "Measurement %d: ADC = %d\n", ev.Measurement, ev.ADC)
	case modern.EventStepDone:
		r := ev.Result
		green.Fprintf(p.out, "Step %d completed: Manometer = %.2f, Min ADC = %d, Max ADC = %d, Avg ADC = %.2f\n",
			r.Step, r.Reference, r.MinADC, r.MaxADC, r.AvgADC)
	case modern.EventStepEmpty:
		warning.Fprintf(p.out, "No valid data received for step %d\n", ev.Step)
	case modern.EventDone:
		if ev.Outcome == modern.OutcomeAborted {
			warning.Fprintln(p.out, "Calibration aborted.")
			return
		}
		green.Fprintf(p.out, "Calibration complete. Data saved to %s\n", ev.Path)
	}
}

func checkMark(ok bool) string {
	if ok {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}
