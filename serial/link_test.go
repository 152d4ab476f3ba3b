package serial

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readResult struct {
	data string
	err  error
}

// scriptedPort replays reads in order, then reports timeouts forever.
type scriptedPort struct {
	reads   []readResult
	flushed int
	closed  int
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, io.EOF
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	n := copy(b, r.data)
	return n, r.err
}

func (p *scriptedPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *scriptedPort) Close() error                { p.closed++; return nil }
func (p *scriptedPort) Flush() error                { p.flushed++; return nil }

func TestLineLinkSplitsRecords(t *testing.T) {
	port := &scriptedPort{reads: []readResult{{data: "t0,100\r\nt1,1"}, {data: "01\n"}}}
	link := NewLineLink(port)

	line, err := link.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, "t0,100", line)

	line, err = link.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, "t1,101", line)
}

func TestLineLinkTimeoutYieldsNoRecord(t *testing.T) {
	port := &scriptedPort{reads: []readResult{{data: "t0,1"}, {err: io.EOF}, {data: "00\n"}}}
	link := NewLineLink(port)

	line, err := link.ReadRecord()
	require.NoError(t, err)
	assert.Empty(t, line)

	// the partial record survives the timeout
	line, err = link.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, "t0,100", line)
}

func TestLineLinkZeroReadWithoutError(t *testing.T) {
	port := &scriptedPort{reads: []readResult{{}}}
	line, err := NewLineLink(port).ReadRecord()
	require.NoError(t, err)
	assert.Empty(t, line)
}

func TestLineLinkHardError(t *testing.T) {
	boom := errors.New("device unplugged")
	port := &scriptedPort{reads: []readResult{{err: boom}}}
	_, err := NewLineLink(port).ReadRecord()
	assert.ErrorIs(t, err, boom)
}

func TestLineLinkFlushDropsPending(t *testing.T) {
	port := &scriptedPort{reads: []readResult{{data: "stale,1"}, {err: io.EOF}, {data: "t,5\n"}}}
	link := NewLineLink(port)

	line, err := link.ReadRecord()
	require.NoError(t, err)
	assert.Empty(t, line)

	require.NoError(t, link.Flush())
	assert.Equal(t, 1, port.flushed)

	line, err = link.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, "t,5", line)
}

func TestLineLinkCloseIsIdempotent(t *testing.T) {
	port := &scriptedPort{}
	link := NewLineLink(port)
	require.NoError(t, link.Close())
	require.NoError(t, link.Close())
	assert.Equal(t, 1, port.closed)

	_, err := link.ReadRecord()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestProbe(t *testing.T) {
	port := &scriptedPort{reads: []readResult{{err: io.EOF}, {data: "hello\n"}, {data: "12,345\n"}}}
	assert.True(t, probe(NewLineLink(port), probeRecords))

	silent := &scriptedPort{}
	assert.False(t, probe(NewLineLink(silent), probeRecords))
}
