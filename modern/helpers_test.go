package modern

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// fakeLink replays records, then repeats `repeat` forever ("" means timeouts).
type fakeLink struct {
	mu      sync.Mutex
	records []string
	repeat  string
	readErr error
	reads   int
	flushes int
	closed  int
}

func (l *fakeLink) ReadRecord() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.readErr != nil {
		return "", l.readErr
	}
	if len(l.records) > 0 {
		r := l.records[0]
		l.records = l.records[1:]
		return r, nil
	}
	return l.repeat, nil
}

func (l *fakeLink) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushes++
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

func scriptedInput(lines ...string) *ChanSource {
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return NewChanSource(ch)
}

// driveClock advances mock one second at a time until fn returns.
func driveClock(t *testing.T, mock *clock.Mock, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	deadline := time.After(20 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("timed out waiting for simulated run")
		default:
			mock.Add(time.Second)
		}
	}
}

// runSession runs ctl on the mock clock and returns what Run returned.
func runSession(t *testing.T, ctl *Controller, mock *clock.Mock) (*Session, error) {
	t.Helper()
	var (
		sess *Session
		err  error
	)
	driveClock(t, mock, func() {
		sess, err = ctl.Run(context.Background())
	})
	return sess, err
}
