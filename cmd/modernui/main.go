package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/CK6170/Manocal-go/models"
	"github.com/CK6170/Manocal-go/modern"
)

type phase int

const (
	phaseConnecting phase = iota
	phaseAwaitStart
	phaseAwaitReference
	phaseSampling
	phaseFinished
	phaseFailed
)

type model struct {
	input textinput.Model
	lines chan<- string

	events <-chan modern.Event
	done   <-chan sessionResult
	cancel context.CancelFunc

	phase       phase
	port        string
	path        string
	step        int
	maxSteps    int
	measurement int
	perStep     int
	interval    time.Duration
	sampleAt    time.Time
	samples     []string
	results     []models.StepResult
	outcome     modern.Outcome

	infoLine string
	lastErr  error
}

type sessionResult struct {
	sess *modern.Session
	err  error
}

type eventMsg modern.Event
type doneMsg sessionResult
type tickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cellStyle  = lipgloss.NewStyle().Width(14).Align(lipgloss.Right)
)

func initialModel(p *models.PARAMETERS, lines chan<- string, events <-chan modern.Event, done <-chan sessionResult, cancel context.CancelFunc) model {
	in := textinput.New()
	in.Placeholder = "start"
	in.Focus()
	in.CharLimit = 32
	in.Width = 24

	return model{
		input:    in,
		lines:    lines,
		events:   events,
		done:     done,
		cancel:   cancel,
		phase:    phaseConnecting,
		port:     p.SERIAL.PORT,
		maxSteps: p.SESSION.STEPS,
		perStep:  p.SESSION.MEASUREMENTS,
		interval: p.SESSION.INTERVAL,
	}
}

func waitForEvent(ch <-chan modern.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func waitForDone(ch <-chan sessionResult) tea.Cmd {
	return func() tea.Msg { return doneMsg(<-ch) }
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events), waitForDone(m.done), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancel()
			return m, tea.Quit
		case "enter":
			return m.submit()
		}
		if m.finished() {
			if msg.String() == "q" {
				return m, tea.Quit
			}
			return m, nil
		}
	case eventMsg:
		m.apply(modern.Event(msg))
		return m, waitForEvent(m.events)
	case doneMsg:
		if msg.err != nil {
			m.phase = phaseFailed
			m.lastErr = msg.err
		} else {
			m.phase = phaseFinished
		}
		if msg.sess != nil && m.path == "" {
			m.path = msg.sess.Path
		}
		m.input.Blur()
		return m, nil
	case tickMsg:
		return m, tick()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseAwaitStart, phaseAwaitReference:
	case phaseFinished, phaseFailed:
		return m, tea.Quit
	default:
		return m, nil
	}
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	select {
	case m.lines <- line:
		m.input.Reset()
		m.lastErr = nil
	default:
		m.lastErr = fmt.Errorf("input ignored, session is busy")
	}
	return m, nil
}

func (m *model) finished() bool {
	return m.phase == phaseFinished || m.phase == phaseFailed
}

// apply folds ev into the view. Events still queued when the session result
// arrives may fill in details but never move the phase back.
func (m *model) apply(ev modern.Event) {
	if m.finished() {
		defer func(p phase) { m.phase = p }(m.phase)
	}
	switch ev.Kind {
	case modern.EventPortAttempt:
		m.lastErr = fmt.Errorf("attempt %d: %s", ev.Attempt, ev.Error)
		if ev.Wait > 0 {
			m.infoLine = fmt.Sprintf("Retrying in %s...", ev.Wait)
		}
	case modern.EventPortOpened:
		m.lastErr = nil
		m.infoLine = "Connected to " + m.port
	case modern.EventOutputReady:
		m.path = ev.Path
	case modern.EventAwaitStart:
		m.phase = phaseAwaitStart
		m.input.Placeholder = "start"
	case modern.EventPrompt:
		m.phase = phaseAwaitReference
		m.step = ev.Step
		m.maxSteps = ev.MaxSteps
		m.input.Placeholder = "bar or stop"
		m.input.Focus()
	case modern.EventInvalidInput:
		m.lastErr = fmt.Errorf("%s", ev.Error)
	case modern.EventSampling:
		m.phase = phaseSampling
		m.measurement = 0
		m.samples = m.samples[:0]
		m.sampleAt = ev.Time.Add(ev.Wait)
		m.infoLine = ""
	case modern.EventSample:
		m.measurement = ev.Measurement
		m.samples = append(m.samples, fmt.Sprintf("%d", ev.ADC))
		m.sampleAt = time.Now().Add(m.interval)
	case modern.EventSampleSkipped:
		m.measurement = ev.Measurement
		m.samples = append(m.samples, "-")
		m.sampleAt = time.Now().Add(m.interval)
	case modern.EventStepDone:
		if ev.Result != nil {
			m.results = append(m.results, *ev.Result)
		}
	case modern.EventStepEmpty:
		m.infoLine = fmt.Sprintf("Step %d: no valid data received, nothing recorded", ev.Step)
	case modern.EventDone:
		m.outcome = ev.Outcome
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Manometer calibration") + "\n")
	b.WriteString(helpStyle.Render("Esc or Ctrl+C to quit.") + "\n\n")
	if m.path != "" {
		b.WriteString(helpStyle.Render("Output: "+m.path) + "\n")
	}
	if m.infoLine != "" {
		b.WriteString(okStyle.Render(m.infoLine) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")

	switch m.phase {
	case phaseConnecting:
		b.WriteString("Opening " + m.port + "...\n")
	case phaseAwaitStart:
		b.WriteString("Type 'start' to begin calibration.\n")
		b.WriteString(m.input.View() + "\n")
	case phaseAwaitReference:
		b.WriteString(fmt.Sprintf("Step %d/%d: enter the manometer reading in bar, or 'stop'.\n", m.step, m.maxSteps))
		b.WriteString(m.input.View() + "\n")
	case phaseSampling:
		b.WriteString(fmt.Sprintf("Step %d/%d: measurement %d/%d", m.step, m.maxSteps, m.measurement, m.perStep))
		if left := time.Until(m.sampleAt).Round(time.Second); left > 0 && m.measurement < m.perStep {
			b.WriteString(fmt.Sprintf(", next in %s", left))
		}
		b.WriteString("\n")
		if len(m.samples) > 0 {
			b.WriteString("  ADC: " + strings.Join(m.samples, "  ") + "\n")
		}
	case phaseFinished:
		b.WriteString(okStyle.Render(fmt.Sprintf("Calibration %s.", m.outcome)) + "\n")
		b.WriteString(helpStyle.Render("Press Enter or q to exit.") + "\n")
	case phaseFailed:
		b.WriteString(errStyle.Render("Calibration failed.") + "\n")
		b.WriteString(helpStyle.Render("Press Enter or q to exit.") + "\n")
	}

	if len(m.results) > 0 {
		b.WriteString("\n" + m.viewResults())
	}
	return b.String()
}

func (m model) viewResults() string {
	var b strings.Builder
	header := []string{"Step", "Manometer", "Min ADC", "Max ADC", "Average ADC"}
	for _, h := range header {
		b.WriteString(cellStyle.Bold(true).Render(h))
	}
	b.WriteString("\n")
	for _, r := range m.results {
		b.WriteString(cellStyle.Render(fmt.Sprintf("%d", r.Step)))
		b.WriteString(cellStyle.Render(fmt.Sprintf("%.2f", r.Reference)))
		b.WriteString(cellStyle.Render(fmt.Sprintf("%d", r.MinADC)))
		b.WriteString(cellStyle.Render(fmt.Sprintf("%d", r.MaxADC)))
		b.WriteString(cellStyle.Render(fmt.Sprintf("%.2f", r.AvgADC)))
		b.WriteString("\n")
	}
	return b.String()
}

// uiLogger keeps log output off the terminal the TUI owns.
func uiLogger(debug bool) logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	if debug {
		if f, err := os.OpenFile("manocal-ui.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			l.SetOutput(f)
			l.SetLevel(logrus.DebugLevel)
		}
	}
	return l
}

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = strings.TrimSpace(os.Args[1])
	}
	p, err := modern.LoadParameters(path, nil)
	if err == nil {
		_, err = modern.EnsureSerialPort(p)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := make(chan string, 4)
	events := make(chan modern.Event, 64)
	done := make(chan sessionResult, 1)

	ctl := modern.NewController(
		modern.SessionSettings(p),
		modern.PortOpener(p.SERIAL),
		modern.NewChanSource(lines),
		modern.NewCSVSinkFactory(p.OUTPUT.DIR, p.OUTPUT.PREFIX),
		modern.WithLogger(uiLogger(p.DEBUG)),
		modern.WithEvents(func(ev modern.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}),
	)

	var g errgroup.Group
	g.Go(func() error {
		sess, err := ctl.Run(ctx)
		done <- sessionResult{sess: sess, err: err}
		return err
	})

	m := initialModel(p, lines, events, done, cancel)
	_, uiErr := tea.NewProgram(m).Run()
	cancel()
	runErr := g.Wait()

	if uiErr != nil {
		fmt.Fprintln(os.Stderr, uiErr)
		os.Exit(1)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
