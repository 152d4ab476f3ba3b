package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/Manocal-go/models"
	"github.com/CK6170/Manocal-go/modern"
)

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(New(logrus.New()).Handler())
	defer ts.Close()

	var h HealthResponse
	assert.Equal(t, 200, getJSON(t, ts.URL+"/api/health", &h))
	assert.True(t, h.OK)
}

func TestSessionStatusAndDownload(t *testing.T) {
	s := New(logrus.New())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "calibration_data_2024-05-01_10-20-30.csv")
	require.NoError(t, os.WriteFile(path, []byte(modern.CSVHeader+"\n1.50,98,102,100.00\n"), 0o644))
	row := models.StepResult{Step: 1, Reference: 1.5, MinADC: 98, MaxADC: 102, AvgADC: 100, Samples: 5}

	s.Publish(modern.Event{Kind: modern.EventPortOpened})
	s.Publish(modern.Event{Kind: modern.EventOutputReady, Path: path})
	s.Publish(modern.Event{Kind: modern.EventPrompt, Step: 1, MaxSteps: 10})
	s.Publish(modern.Event{Kind: modern.EventSampling, Step: 1})
	s.Publish(modern.Event{Kind: modern.EventSample, Step: 1, Measurement: 3, ADC: 98})

	var st Status
	getJSON(t, ts.URL+"/api/session", &st)
	assert.Equal(t, StateSampling, st.State)
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, 3, st.Measurement)
	assert.Empty(t, st.DownloadID)

	s.Publish(modern.Event{Kind: modern.EventStepDone, Step: 1, Result: &row})
	s.Publish(modern.Event{Kind: modern.EventDone, Outcome: modern.OutcomeStopped, Path: path})

	getJSON(t, ts.URL+"/api/session", &st)
	assert.Equal(t, StateFinished, st.State)
	assert.Equal(t, modern.OutcomeStopped, st.Outcome)
	assert.Equal(t, []models.StepResult{row}, st.Results)
	require.NotEmpty(t, st.DownloadID)

	resp, err := http.Get(ts.URL + "/api/download?id=" + st.DownloadID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "calibration_data_2024-05-01_10-20-30.csv")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, modern.CSVHeader+"\n1.50,98,102,100.00\n", string(body))

	var apiErr APIError
	assert.Equal(t, 404, getJSON(t, ts.URL+"/api/download?id=nope", &apiErr))
	assert.Equal(t, 400, getJSON(t, ts.URL+"/api/download", &apiErr))
}

func TestFail(t *testing.T) {
	s := New(nil)
	s.Fail(errors.Join(modern.ErrPortUnavailable, errors.New("busy")))
	st := s.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Contains(t, st.LastError, "port unavailable")
	assert.Empty(t, st.DownloadID)
}

func TestWebSocketBroadcast(t *testing.T) {
	s := New(logrus.New())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/calibration"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first WSMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "status", first.Type)

	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, 5*time.Second, 5*time.Millisecond)
	s.Publish(modern.Event{Kind: modern.EventSample, Step: 2, Measurement: 1, ADC: 1234})

	var msg struct {
		Type string       `json:"type"`
		Data modern.Event `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "sample", msg.Type)
	assert.Equal(t, 1234, msg.Data.ADC)
	assert.Equal(t, 2, msg.Data.Step)
}

func TestStalledViewerDoesNotBlockPublish(t *testing.T) {
	s := New(logrus.New())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/calibration"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, 5*time.Second, 5*time.Millisecond)

	// the viewer never reads; large lines fill the socket buffers quickly
	line := strings.Repeat("x", 4096)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20000; i++ {
			s.Publish(modern.Event{Kind: modern.EventSampleSkipped, Step: 1, Measurement: i, Skip: modern.SkipMalformed, Input: line})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a viewer that stopped reading")
	}
	assert.Eventually(t, func() bool { return s.hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestBroadcastSkipsRemovedViewer(t *testing.T) {
	s := New(logrus.New())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/calibration"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.hub.Len() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.NotPanics(t, func() { s.Publish(modern.Event{Kind: modern.EventPrompt, Step: 1, MaxSteps: 10}) })
}
