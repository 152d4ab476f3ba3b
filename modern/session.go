package modern

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/CK6170/Manocal-go/models"
	serialpkg "github.com/CK6170/Manocal-go/serial"
)

const (
	CommandStart = "start"
	CommandStop  = "stop"
)

// Settings are the fixed limits and pacing of a session.
type Settings struct {
	Retries             int
	RetryDelay          time.Duration
	MaxSteps            int
	MeasurementsPerStep int
	Interval            time.Duration
	FlushBeforeSample   bool
}

// DefaultSettings matches the bench procedure: 5 port attempts 2s apart, 10
// steps of 5 measurements taken 20s apart.
func DefaultSettings() Settings {
	return Settings{
		Retries:             DefaultRetries,
		RetryDelay:          DefaultRetryDelay,
		MaxSteps:            DefaultSteps,
		MeasurementsPerStep: DefaultMeasurements,
		Interval:            DefaultInterval,
	}
}

// Session is the record of one calibration run.
type Session struct {
	Started time.Time
	Path    string
	Step    int
	Results []models.StepResult
	Outcome Outcome
}

type Controller struct {
	settings Settings
	open     LinkOpener
	input    LineSource
	sinks    SinkFactory
	clock    clock.Clock
	onEvent  func(Event)
	log      logrus.FieldLogger
}

type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func WithEvents(fn func(Event)) Option {
	return func(ctl *Controller) { ctl.onEvent = fn }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

func NewController(settings Settings, open LinkOpener, input LineSource, sinks SinkFactory, opts ...Option) *Controller {
	c := &Controller{
		settings: settings,
		open:     open,
		input:    input,
		sinks:    sinks,
		clock:    clock.New(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) emit(ev Event) {
	if c.onEvent == nil {
		return
	}
	ev.Time = c.clock.Now()
	c.onEvent(ev)
}

// Run drives one session from port acquisition to termination. The link and
// the sink are released on every return path.
//
// A nil error with a non-nil Session covers completion, an explicit stop and
// an aborted start gate. ErrPortUnavailable returns no Session.
func (c *Controller) Run(ctx context.Context) (*Session, error) {
	link, err := AcquireLink(ctx, c.open, c.settings.Retries, c.settings.RetryDelay, c.clock, func(attempt int, err error) {
		var wait time.Duration
		if attempt < c.settings.Retries {
			wait = c.settings.RetryDelay
		}
		c.log.WithFields(logrus.Fields{"attempt": attempt, "retries": c.settings.Retries}).
			Warnf("failed to open port: %v", err)
		c.emit(Event{Kind: EventPortAttempt, Attempt: attempt, Error: err.Error(), Wait: wait})
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := link.Close(); cerr != nil {
			c.log.Warnf("failed to close link: %v", cerr)
		}
	}()
	c.emit(Event{Kind: EventPortOpened})

	sess := &Session{Started: c.clock.Now(), Step: 1}
	sink, err := c.sinks(sess.Started)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			c.log.Warnf("failed to close %s: %v", sink.Path(), cerr)
		}
	}()
	sess.Path = sink.Path()
	c.log.WithField("path", sess.Path).Info("writing calibration data")
	c.emit(Event{Kind: EventOutputReady, Path: sess.Path})

	if err := c.run(ctx, sess, link, sink); err != nil {
		return sess, err
	}
	c.log.WithFields(logrus.Fields{"outcome": sess.Outcome, "rows": len(sess.Results), "path": sess.Path}).
		Info("calibration finished")
	c.emit(Event{Kind: EventDone, Outcome: sess.Outcome, Path: sess.Path, Step: sess.Step})
	return sess, nil
}

func (c *Controller) run(ctx context.Context, sess *Session, link serialpkg.Link, sink RecordSink) error {
	c.emit(Event{Kind: EventAwaitStart})
	cmd, err := c.input.ReadLine(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(cmd), CommandStart) {
		c.log.Info("calibration aborted")
		sess.Outcome = OutcomeAborted
		return nil
	}

	sampler := NewSampler(link, c.settings.FlushBeforeSample)
	for sess.Step <= c.settings.MaxSteps {
		c.emit(Event{Kind: EventPrompt, Step: sess.Step, MaxSteps: c.settings.MaxSteps})
		line, err := c.input.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			c.log.Warn("operator input closed, stopping")
			sess.Outcome = OutcomeStopped
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, CommandStop) {
			sess.Outcome = OutcomeStopped
			return nil
		}
		ref, err := ParseReference(line)
		if err != nil {
			c.log.WithField("step", sess.Step).Warn(err)
			c.emit(Event{Kind: EventInvalidInput, Step: sess.Step, Input: line, Error: err.Error()})
			continue
		}

		samples, err := c.sample(ctx, sampler, sess.Step)
		if err != nil {
			return err
		}
		if err := c.complete(sess, sink, ref, samples); err != nil {
			return err
		}
		sess.Step++
	}
	sess.Outcome = OutcomeCompleted
	return nil
}

// sample collects up to MeasurementsPerStep readings, waiting Interval before
// each one. Empty and malformed reads are skipped.
func (c *Controller) sample(ctx context.Context, sampler *Sampler, step int) ([]models.RawSample, error) {
	c.emit(Event{Kind: EventSampling, Step: step, Wait: c.settings.Interval})
	samples := make([]models.RawSample, 0, c.settings.MeasurementsPerStep)
	for i := 1; i <= c.settings.MeasurementsPerStep; i++ {
		if err := c.sleep(ctx, c.settings.Interval); err != nil {
			return nil, err
		}
		s, err := sampler.ReadOne()
		switch {
		case err == nil:
			samples = append(samples, s)
			c.log.WithFields(logrus.Fields{"step": step, "measurement": i}).Debugf("ADC = %d", s.ADC)
			c.emit(Event{Kind: EventSample, Step: step, Measurement: i, ADC: s.ADC})
		case errors.Is(err, ErrEmptyRead):
			c.log.WithFields(logrus.Fields{"step": step, "measurement": i}).Warn("no data received")
			c.emit(Event{Kind: EventSampleSkipped, Step: step, Measurement: i, Skip: SkipEmpty, Error: err.Error()})
		case errors.Is(err, ErrMalformedRecord):
			c.log.WithFields(logrus.Fields{"step": step, "measurement": i}).Warnf("error parsing data: %v", err)
			c.emit(Event{Kind: EventSampleSkipped, Step: step, Measurement: i, Skip: SkipMalformed, Input: s.Line, Error: err.Error()})
		default:
			return nil, err
		}
	}
	return samples, nil
}

func (c *Controller) complete(sess *Session, sink RecordSink, ref float64, samples []models.RawSample) error {
	sum, ok := Reduce(samples)
	if !ok {
		c.log.WithField("step", sess.Step).Warn("no valid data received")
		c.emit(Event{Kind: EventStepEmpty, Step: sess.Step, Reference: ref})
		return nil
	}
	row := models.StepResult{
		Step:      sess.Step,
		Reference: ref,
		MinADC:    sum.Min,
		MaxADC:    sum.Max,
		AvgADC:    sum.Mean,
		Samples:   sum.N,
	}
	if err := sink.Append(row); err != nil {
		return err
	}
	sess.Results = append(sess.Results, row)
	c.log.WithFields(logrus.Fields{
		"step":    sess.Step,
		"ref":     ref,
		"min":     sum.Min,
		"max":     sum.Max,
		"avg":     sum.Mean,
		"stddev":  sum.StdDev,
		"samples": sum.N,
	}).Info("step completed")
	c.emit(Event{Kind: EventStepDone, Step: sess.Step, Reference: ref, Result: &row})
	return nil
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := c.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ParseReference parses an operator-entered manometer reading.
func ParseReference(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number, enter a reading or 'stop'", ErrInvalidInput, s)
	}
	return v, nil
}
