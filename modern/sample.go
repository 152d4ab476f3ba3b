package modern

import (
	"fmt"

	"github.com/CK6170/Manocal-go/models"
	serialpkg "github.com/CK6170/Manocal-go/serial"
)

// Sampler pulls single readings off a link.
type Sampler struct {
	link  serialpkg.Link
	flush bool
}

func NewSampler(link serialpkg.Link, flushBeforeRead bool) *Sampler {
	return &Sampler{link: link, flush: flushBeforeRead}
}

// ReadOne reads one record and parses its ADC value.
//
// ErrEmptyRead and ErrMalformedRecord mean "skip this sample". Any other error
// comes from the link itself and wraps ErrIOFailure.
func (s *Sampler) ReadOne() (models.RawSample, error) {
	if s.flush {
		if f, ok := s.link.(serialpkg.Flusher); ok {
			if err := f.Flush(); err != nil {
				return models.RawSample{}, fmt.Errorf("%w: flush link: %v", ErrIOFailure, err)
			}
		}
	}
	line, err := s.link.ReadRecord()
	if err != nil {
		return models.RawSample{}, fmt.Errorf("%w: read link: %v", ErrIOFailure, err)
	}
	if line == "" {
		return models.RawSample{}, ErrEmptyRead
	}
	adc, err := serialpkg.ParseRecord(line)
	if err != nil {
		return models.RawSample{Line: line}, err
	}
	return models.RawSample{ADC: adc, Line: line}, nil
}
