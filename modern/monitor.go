package modern

import (
	"context"
	"errors"

	"github.com/CK6170/Manocal-go/models"
	serialpkg "github.com/CK6170/Manocal-go/serial"
)

// MonitorSnapshot is the live view of the link between sessions.
type MonitorSnapshot struct {
	Last      models.RawSample
	Window    models.Summary
	Received  int
	Malformed int
	Timeouts  int
}

// Monitor reads records continuously and reports a snapshot after each
// parsed or malformed record. Nothing is persisted. It returns ctx.Err() when
// cancelled or an ErrIOFailure when the link breaks.
func Monitor(ctx context.Context, link serialpkg.Link, window int, onSnapshot func(MonitorSnapshot)) error {
	if window <= 0 {
		window = DefaultMeasurements
	}
	sampler := NewSampler(link, false)
	recent := make([]models.RawSample, 0, window)
	var snap MonitorSnapshot
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s, err := sampler.ReadOne()
		switch {
		case err == nil:
			snap.Received++
			snap.Last = s
			if len(recent) == window {
				recent = append(recent[:0], recent[1:]...)
			}
			recent = append(recent, s)
			snap.Window, _ = Reduce(recent)
		case errors.Is(err, ErrEmptyRead):
			snap.Timeouts++
			continue
		case errors.Is(err, ErrMalformedRecord):
			snap.Malformed++
		default:
			return err
		}
		if onSnapshot != nil {
			onSnapshot(snap)
		}
	}
}
