package modern

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorWindow(t *testing.T) {
	link := &fakeLink{records: []string{"t,10", "", "junk", "t,20", "t,30", "t,40"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snaps []MonitorSnapshot
	err := Monitor(ctx, link, 3, func(s MonitorSnapshot) {
		snaps = append(snaps, s)
		if s.Received == 4 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, snaps, 5)

	last := snaps[len(snaps)-1]
	assert.Equal(t, 40, last.Last.ADC)
	assert.Equal(t, 1, last.Malformed)
	assert.Equal(t, 1, last.Timeouts)
	assert.Equal(t, 3, last.Window.N)
	assert.Equal(t, 20, last.Window.Min)
	assert.Equal(t, 40, last.Window.Max)
	assert.InDelta(t, 30.0, last.Window.Mean, 1e-9)
}

func TestMonitorLinkFailure(t *testing.T) {
	link := &fakeLink{readErr: errors.New("gone")}
	err := Monitor(context.Background(), link, 0, nil)
	assert.ErrorIs(t, err, ErrIOFailure)
}
