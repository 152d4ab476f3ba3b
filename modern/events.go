package modern

import (
	"time"

	"github.com/CK6170/Manocal-go/models"
)

type EventKind string

const (
	EventPortAttempt   EventKind = "portAttempt"
	EventPortOpened    EventKind = "portOpened"
	EventOutputReady   EventKind = "outputReady"
	EventAwaitStart    EventKind = "awaitStart"
	EventPrompt        EventKind = "prompt"
	EventInvalidInput  EventKind = "invalidInput"
	EventSampling      EventKind = "sampling"
	EventSample        EventKind = "sample"
	EventSampleSkipped EventKind = "sampleSkipped"
	EventStepDone      EventKind = "stepDone"
	EventStepEmpty     EventKind = "stepEmpty"
	EventDone          EventKind = "done"
)

// Outcome says how a session that acquired the port ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeAborted   Outcome = "aborted"
)

// SkipReason distinguishes the two ways a sample slot can come up empty.
type SkipReason string

const (
	SkipEmpty     SkipReason = "empty"
	SkipMalformed SkipReason = "malformed"
)

// Event is published for every transition of a session. Only the fields that
// make sense for Kind are set.
type Event struct {
	Kind        EventKind          `json:"kind"`
	Time        time.Time          `json:"time"`
	Step        int                `json:"step,omitempty"`
	MaxSteps    int                `json:"maxSteps,omitempty"`
	Measurement int                `json:"measurement,omitempty"`
	Attempt     int                `json:"attempt,omitempty"`
	ADC         int                `json:"adc,omitempty"`
	Reference   float64            `json:"reference,omitempty"`
	Result      *models.StepResult `json:"result,omitempty"`
	Skip        SkipReason         `json:"skip,omitempty"`
	Input       string             `json:"input,omitempty"`
	Port        string             `json:"port,omitempty"`
	Path        string             `json:"path,omitempty"`
	Outcome     Outcome            `json:"outcome,omitempty"`
	Error       string             `json:"error,omitempty"`
	Wait        time.Duration      `json:"wait,omitempty"`
}

// Fanout returns a handler that forwards every event to each non-nil handler.
func Fanout(handlers ...func(Event)) func(Event) {
	return func(ev Event) {
		for _, h := range handlers {
			if h != nil {
				h(ev)
			}
		}
	}
}
