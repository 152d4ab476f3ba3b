package modern

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/CK6170/Manocal-go/models"
	serialpkg "github.com/CK6170/Manocal-go/serial"
)

// LinkOpener opens the device link once.
type LinkOpener func(ctx context.Context) (serialpkg.Link, error)

// PortOpener opens the configured serial port.
func PortOpener(ser *models.SERIAL) LinkOpener {
	return func(context.Context) (serialpkg.Link, error) {
		return serialpkg.OpenPort(ser)
	}
}

// AcquireLink opens the link, trying up to attempts times with a fixed delay
// between failures. onFail, if set, sees every failed attempt (1-based).
// Exhausting the attempts returns ErrPortUnavailable.
func AcquireLink(
	ctx context.Context,
	open LinkOpener,
	attempts int,
	delay time.Duration,
	clk clock.Clock,
	onFail func(attempt int, err error),
) (serialpkg.Link, error) {
	if attempts <= 0 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	var link serialpkg.Link
	op := func() error {
		attempt++
		l, err := open(ctx)
		if err != nil {
			if onFail != nil {
				onFail(attempt, err)
			}
			return err
		}
		link = l
		return nil
	}
	if err := backoff.RetryNotifyWithTimer(op, b, nil, &clockTimer{clock: clk}); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: gave up after %d attempt(s): %v", ErrPortUnavailable, attempt, err)
	}
	return link, nil
}

// clockTimer lets backoff wait on an injected clock.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
