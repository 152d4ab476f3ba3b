package modern

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// LineSource yields operator commands one line at a time. ReadLine blocks until
// a line arrives or ctx is done; io.EOF means no more input will come.
type LineSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// ReaderSource reads lines from a stream such as os.Stdin. The stream is
// drained by a background goroutine so a pending read never blocks ctx
// cancellation. The goroutine exits at end of stream.
type ReaderSource struct {
	r     io.Reader
	once  sync.Once
	lines chan string
	err   error
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, lines: make(chan string)}
}

func (s *ReaderSource) start() {
	go func() {
		sc := bufio.NewScanner(s.r)
		for sc.Scan() {
			s.lines <- sc.Text()
		}
		s.err = sc.Err()
		if s.err == nil {
			s.err = io.EOF
		}
		close(s.lines)
	}()
}

func (s *ReaderSource) ReadLine(ctx context.Context) (string, error) {
	s.once.Do(s.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", s.err
		}
		return line, nil
	}
}

// ChanSource reads lines from a channel, e.g. one fed by a UI text field.
// A closed channel reads as io.EOF.
type ChanSource struct {
	ch <-chan string
}

func NewChanSource(ch <-chan string) *ChanSource {
	return &ChanSource{ch: ch}
}

func (s *ChanSource) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.ch:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}
