package ui

import (
	"sync"

	"github.com/eiannone/keyboard"
)

const (
	KeyEsc   rune = 27
	KeyCtrlC rune = 3
)

var (
	keyCh     chan rune
	startOnce sync.Once
)

// StartKeyEvents returns a channel that emits single-key runes read without Enter.
// The terminal stays in raw mode until StopKeyEvents is called.
func StartKeyEvents() <-chan rune {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		keys, err := keyboard.GetKeys(64)
		if err != nil {
			// Keyboard not available; keep a buffered channel that will never emit.
			return
		}
		go func() {
			defer close(keyCh)
			for ev := range keys {
				if ev.Err != nil {
					return
				}
				if r, ok := toRune(ev.Rune, ev.Key); ok {
					select {
					case keyCh <- r:
					default:
					}
				}
			}
		}()
	})
	return keyCh
}

func toRune(char rune, key keyboard.Key) (rune, bool) {
	switch key {
	case 0:
		return char, true
	case keyboard.KeyEsc:
		return KeyEsc, true
	case keyboard.KeyCtrlC:
		return KeyCtrlC, true
	}
	return 0, false
}

// StopKeyEvents restores the terminal.
func StopKeyEvents() {
	_ = keyboard.Close()
}

// IsQuitKey reports whether r should end an interactive readout.
func IsQuitKey(r rune) bool {
	return r == KeyEsc || r == KeyCtrlC || r == 'q' || r == 'Q'
}
