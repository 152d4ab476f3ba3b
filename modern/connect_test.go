package modern

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serialpkg "github.com/CK6170/Manocal-go/serial"
)

func TestAcquireLinkGivesUp(t *testing.T) {
	mock := clock.NewMock()
	start := mock.Now()
	opens := 0
	var failed []int
	open := func(context.Context) (serialpkg.Link, error) {
		opens++
		return nil, errors.New("busy")
	}

	var (
		link serialpkg.Link
		err  error
	)
	driveClock(t, mock, func() {
		link, err = AcquireLink(context.Background(), open, 5, 2*time.Second, mock, func(attempt int, _ error) {
			failed = append(failed, attempt)
		})
	})

	assert.Nil(t, link)
	assert.ErrorIs(t, err, ErrPortUnavailable)
	assert.Equal(t, 5, opens)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, failed)
	assert.GreaterOrEqual(t, mock.Now().Sub(start), 8*time.Second)
}

func TestAcquireLinkRecovers(t *testing.T) {
	mock := clock.NewMock()
	fl := &fakeLink{}
	opens := 0
	open := func(context.Context) (serialpkg.Link, error) {
		opens++
		if opens < 3 {
			return nil, errors.New("busy")
		}
		return fl, nil
	}

	var (
		link serialpkg.Link
		err  error
	)
	driveClock(t, mock, func() {
		link, err = AcquireLink(context.Background(), open, 5, 2*time.Second, mock, nil)
	})
	require.NoError(t, err)
	assert.Same(t, fl, link)
	assert.Equal(t, 3, opens)
}

func TestAcquireLinkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	open := func(context.Context) (serialpkg.Link, error) {
		cancel()
		return nil, errors.New("busy")
	}
	_, err := AcquireLink(ctx, open, 5, time.Hour, clock.NewMock(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
