package serial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldSeparator splits a device record into fields. Field 0 is ignored and
// field 1 carries the ADC reading.
const FieldSeparator = ","

var ErrMalformedRecord = errors.New("malformed record")

// ParseRecord extracts the ADC value from one device record. Readings outside
// the signed 32-bit range are malformed.
func ParseRecord(line string) (int, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, FieldSeparator)
	if len(parts) < 2 {
		return 0, fmt.Errorf("%w: %d field(s) in %q", ErrMalformedRecord, len(parts), line)
	}
	adc, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedRecord, line, err)
	}
	return int(adc), nil
}
