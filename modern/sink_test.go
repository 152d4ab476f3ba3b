package modern

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/Manocal-go/models"
)

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)
	assert.Equal(t, "calibration_data_2024-03-07_09-05-01.csv", FileName(DefaultFilePrefix, ts))
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	ts := time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)

	sink, err := NewCSVSink(dir, DefaultFilePrefix, ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "calibration_data_2024-03-07_09-05-01.csv"), sink.Path())

	// header is on disk before any row
	b, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, CSVHeader+"\n", string(b))

	require.NoError(t, sink.Append(models.StepResult{Reference: 1.5, MinADC: 98, MaxADC: 102, AvgADC: 100}))
	b, err = os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, CSVHeader+"\n1.50,98,102,100.00\n", string(b))

	require.NoError(t, sink.Append(models.StepResult{Reference: 0.126, MinADC: -3, MaxADC: 4, AvgADC: 1.0 / 3}))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	b, err = os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, CSVHeader+"\n1.50,98,102,100.00\n0.13,-3,4,0.33\n", string(b))

	err = sink.Append(models.StepResult{})
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestCSVSinkUnwritableDir(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewCSVSink(filepath.Join(blocker, "sub"), DefaultFilePrefix, time.Now())
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestFormatRow(t *testing.T) {
	row := FormatRow(models.StepResult{Reference: 2, MinADC: 1, MaxADC: 3, AvgADC: 2.004})
	assert.Equal(t, []string{"2.00", "1", "3", "2.00"}, row)
}
