package serial

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// maxRecordLen bounds an unterminated record. Longer runs of bytes without a
// newline are line noise and get discarded.
const maxRecordLen = 4096

// Link delivers newline-terminated records from the measuring device.
//
// ReadRecord returns ("", nil) when the device sent nothing within the port's
// read timeout. Any other error means the link is gone.
type Link interface {
	ReadRecord() (string, error)
	Close() error
}

// Flusher is implemented by links that can drop input buffered since the last read.
type Flusher interface {
	Flush() error
}

// LineLink frames a byte stream into records.
type LineLink struct {
	mu      sync.Mutex
	rwc     io.ReadWriteCloser
	pending []byte
	chunk   []byte
	closed  bool
}

func NewLineLink(rwc io.ReadWriteCloser) *LineLink {
	return &LineLink{rwc: rwc, chunk: make([]byte, 256)}
}

func (l *LineLink) ReadRecord() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", io.ErrClosedPipe
	}
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := string(bytes.TrimRight(l.pending[:i], "\r"))
			l.pending = l.pending[i+1:]
			return line, nil
		}
		n, err := l.rwc.Read(l.chunk)
		if n > 0 {
			l.pending = append(l.pending, l.chunk[:n]...)
			if len(l.pending) > maxRecordLen && bytes.IndexByte(l.pending, '\n') < 0 {
				l.pending = l.pending[:0]
			}
			continue
		}
		// tarm/serial reports an expired read timeout as io.EOF on posix and as
		// (0, nil) on windows.
		if err == nil || errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", err
	}
}

func (l *LineLink) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = l.pending[:0]
	if f, ok := l.rwc.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close releases the underlying port. It is safe to call more than once.
func (l *LineLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.rwc.Close()
}
