package serial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/CK6170/Manocal-go/models"
	goserial "github.com/tarm/serial"
)

// probeRecords is how many reads AutoDetectPort spends on one candidate.
const probeRecords = 4

// PortConfig builds the tarm/serial configuration: 8 data bits, 1 stop bit, no parity.
func PortConfig(ser *models.SERIAL) *goserial.Config {
	return &goserial.Config{
		Name:        ser.PORT,
		Baud:        ser.BAUDRATE,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: ser.READTIMEOUT,
	}
}

// OpenPort opens the configured serial port and wraps it into a record link.
func OpenPort(ser *models.SERIAL) (Link, error) {
	if ser == nil {
		return nil, errors.New("missing SERIAL section")
	}
	if ser.PORT == "" {
		return nil, errors.New("missing SERIAL.PORT")
	}
	port, err := goserial.OpenPort(PortConfig(ser))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ser.PORT, err)
	}
	return NewLineLink(port), nil
}

// Candidates lists the device paths worth probing on this OS.
func Candidates() []string {
	if runtime.GOOS == "windows" {
		names := make([]string, 0, 64)
		for i := 1; i <= 64; i++ {
			names = append(names, fmt.Sprintf("COM%d", i))
		}
		return names
	}
	candidates := make([]string, 0, 32)
	for _, pat := range []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*", "/dev/cu.*"} {
		matches, _ := filepath.Glob(pat)
		for _, m := range matches {
			if _, err := os.Stat(m); err == nil {
				candidates = append(candidates, m)
			}
		}
	}
	return candidates
}

// AutoDetectPort returns the first candidate port that emits a parseable record,
// or "" if none does.
func AutoDetectPort(ser *models.SERIAL) string {
	timeout := ser.READTIMEOUT
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	for _, name := range Candidates() {
		if TestPort(name, ser.BAUDRATE, timeout) {
			return name
		}
	}
	return ""
}

// TestPort opens name and reads a few records looking for one in the device format.
func TestPort(name string, baud int, timeout time.Duration) bool {
	link, err := OpenPort(&models.SERIAL{PORT: name, BAUDRATE: baud, READTIMEOUT: timeout})
	if err != nil {
		return false
	}
	defer func() { _ = link.Close() }()
	return probe(link, probeRecords)
}

func probe(link Link, reads int) bool {
	for i := 0; i < reads; i++ {
		line, err := link.ReadRecord()
		if err != nil {
			return false
		}
		if line == "" {
			continue
		}
		if _, err := ParseRecord(line); err == nil {
			return true
		}
	}
	return false
}
