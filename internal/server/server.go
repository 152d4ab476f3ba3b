package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CK6170/Manocal-go/models"
	"github.com/CK6170/Manocal-go/modern"
)

type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateConnecting    SessionState = "connecting"
	StateAwaitingStart SessionState = "awaitingStart"
	StateAwaitingInput SessionState = "awaitingInput"
	StateSampling      SessionState = "sampling"
	StateFinished      SessionState = "finished"
	StateFailed        SessionState = "failed"
)

// Status is the snapshot served on /api/session.
type Status struct {
	State       SessionState        `json:"state"`
	Step        int                 `json:"step,omitempty"`
	MaxSteps    int                 `json:"maxSteps,omitempty"`
	Measurement int                 `json:"measurement,omitempty"`
	Path        string              `json:"path,omitempty"`
	Results     []models.StepResult `json:"results"`
	Outcome     modern.Outcome      `json:"outcome,omitempty"`
	LastError   string              `json:"lastError,omitempty"`
	DownloadID  string              `json:"downloadId,omitempty"`
	Updated     time.Time           `json:"updated"`
}

type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

type APIError struct {
	Error string `json:"error"`
}

// Server mirrors a running session to remote viewers. It never drives the
// session; operator input stays with the local console.
type Server struct {
	mux   *http.ServeMux
	store *FileStore
	hub   *WSHub
	log   logrus.FieldLogger

	mu     sync.RWMutex
	status Status
}

func New(log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		mux:    http.NewServeMux(),
		store:  NewFileStore(),
		hub:    NewWSHub(),
		log:    log,
		status: Status{State: StateIdle, Results: []models.StepResult{}, Updated: time.Now()},
	}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/download", s.handleDownload)
	s.mux.HandleFunc("/ws/calibration", s.handleWSCal)

	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Status returns a copy of the current session snapshot.
func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Results = append([]models.StepResult(nil), s.status.Results...)
	return st
}

// Publish folds ev into the snapshot and forwards it to every WebSocket client.
// It is meant to be passed to modern.WithEvents.
func (s *Server) Publish(ev modern.Event) {
	s.mu.Lock()
	st := &s.status
	switch ev.Kind {
	case modern.EventPortAttempt:
		st.State = StateConnecting
		st.LastError = ev.Error
	case modern.EventPortOpened:
		st.State = StateConnecting
		st.LastError = ""
		st.Results = []models.StepResult{}
		st.Outcome = ""
		st.DownloadID = ""
	case modern.EventOutputReady:
		st.Path = ev.Path
	case modern.EventAwaitStart:
		st.State = StateAwaitingStart
	case modern.EventPrompt:
		st.State = StateAwaitingInput
		st.Step = ev.Step
		st.MaxSteps = ev.MaxSteps
		st.Measurement = 0
	case modern.EventInvalidInput:
		st.LastError = ev.Error
	case modern.EventSampling:
		st.State = StateSampling
	case modern.EventSample, modern.EventSampleSkipped:
		st.Measurement = ev.Measurement
	case modern.EventStepDone:
		if ev.Result != nil {
			st.Results = append(st.Results, *ev.Result)
		}
	case modern.EventDone:
		st.State = StateFinished
		st.Outcome = ev.Outcome
		if ev.Path != "" {
			st.DownloadID = s.store.Put(ev.Path).ID
		}
	}
	st.Updated = time.Now()
	s.mu.Unlock()

	s.hub.Broadcast(WSMessage{Type: string(ev.Kind), Data: ev})
}

// Fail records a fatal session error. The partial file, if any, stays
// downloadable.
func (s *Server) Fail(err error) {
	s.mu.Lock()
	s.status.State = StateFailed
	s.status.LastError = err.Error()
	if s.status.Path != "" && s.status.DownloadID == "" {
		s.status.DownloadID = s.store.Put(s.status.Path).ID
	}
	s.status.Updated = time.Now()
	s.mu.Unlock()

	s.hub.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{OK: true, Timestamp: time.Now()})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, s.Status())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSON(w, 400, APIError{Error: "missing id"})
		return
	}
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "not found"})
		return
	}
	raw, err := os.ReadFile(rec.Path)
	if err != nil {
		s.log.WithField("path", rec.Path).Warnf("failed to read session file: %v", err)
		s.writeJSON(w, 500, APIError{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(rec.Path)))
	w.WriteHeader(200)
	_, _ = w.Write(raw)
}
