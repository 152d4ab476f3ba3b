package modern

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/CK6170/Manocal-go/models"
)

const (
	CSVHeader      = "Manometer (bar),Min ADC,Max ADC,Average ADC"
	FileTimeLayout = "2006-01-02_15-04-05"
)

var headerFields = []string{"Manometer (bar)", "Min ADC", "Max ADC", "Average ADC"}

// RecordSink persists completed steps.
type RecordSink interface {
	Append(row models.StepResult) error
	Path() string
	Close() error
}

// SinkFactory creates the sink for a session that starts at the given time.
type SinkFactory func(start time.Time) (RecordSink, error)

// FileName derives the output file name for a session started at t.
func FileName(prefix string, t time.Time) string {
	return prefix + t.Format(FileTimeLayout) + ".csv"
}

// CSVSink appends one row per step to a timestamped CSV file and flushes after
// every row.
type CSVSink struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	path   string
	closed bool
}

// NewCSVSink creates dir if needed, opens the session file and writes the header.
func NewCSVSink(dir, prefix string, now time.Time) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir %s: %v", ErrIOFailure, dir, err)
	}
	path := filepath.Join(dir, FileName(prefix, now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIOFailure, path, err)
	}
	s := &CSVSink{f: f, w: csv.NewWriter(f), path: path}
	if err := s.write(headerFields); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// NewCSVSinkFactory returns a SinkFactory writing into dir.
func NewCSVSinkFactory(dir, prefix string) SinkFactory {
	return func(start time.Time) (RecordSink, error) {
		return NewCSVSink(dir, prefix, start)
	}
}

func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Append(row models.StepResult) error {
	return s.write(FormatRow(row))
}

// FormatRow renders a step as the CSV fields reference, min, max and average.
func FormatRow(row models.StepResult) []string {
	return []string{
		strconv.FormatFloat(row.Reference, 'f', 2, 64),
		strconv.Itoa(row.MinADC),
		strconv.Itoa(row.MaxADC),
		strconv.FormatFloat(row.AvgADC, 'f', 2, 64),
	}
}

func (s *CSVSink) write(fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: write %s: sink closed", ErrIOFailure, s.path)
	}
	if err := s.w.Write(fields); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIOFailure, s.path, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("%w: flush %s: %v", ErrIOFailure, s.path, err)
	}
	return nil
}

// Close flushes and closes the file. Later calls are no-ops.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	werr := s.w.Error()
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIOFailure, s.path, err)
	}
	if werr != nil {
		return fmt.Errorf("%w: flush %s: %v", ErrIOFailure, s.path, werr)
	}
	return nil
}
