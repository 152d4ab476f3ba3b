package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write one message to a viewer.
	writeWait = 10 * time.Second

	// Messages queued per viewer before it is dropped as too slow.
	sendBufferSize = 256

	maxMessageSize = 4096
)

var errViewerGone = errors.New("viewer dropped")

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// viewer is one WebSocket connection. Publishing only queues on send; the
// network write happens in writePump so a stalled viewer never blocks the
// session that emits events.
type viewer struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newViewer(conn *websocket.Conn) *viewer {
	v := &viewer{conn: conn, send: make(chan []byte, sendBufferSize)}
	go v.writePump()
	return v
}

// enqueue reports false if the viewer is closed or its queue is full.
func (v *viewer) enqueue(b []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	select {
	case v.send <- b:
		return true
	default:
		return false
	}
}

func (v *viewer) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.closed = true
		close(v.send)
	}
}

func (v *viewer) writePump() {
	defer v.conn.Close()
	for b := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
	_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = v.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "too slow"))
}

// WSHub fans session events out to every connected viewer.
type WSHub struct {
	mu      sync.RWMutex
	viewers map[*viewer]struct{}
}

func NewWSHub() *WSHub {
	return &WSHub{viewers: make(map[*viewer]struct{})}
}

func (h *WSHub) add(conn *websocket.Conn) *viewer {
	v := newViewer(conn)
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
	return v
}

// remove forgets v and stops its writer. Safe to call more than once.
func (h *WSHub) remove(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v)
	h.mu.Unlock()
	v.close()
}

func (h *WSHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// send queues msg for a single viewer.
func (h *WSHub) send(v *viewer, msg WSMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !v.enqueue(b) {
		h.remove(v)
		return errViewerGone
	}
	return nil
}

// Broadcast queues msg for every viewer and drops those that fell behind.
// It never waits on the network.
func (h *WSHub) Broadcast(msg WSMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	var slow []*viewer
	h.mu.RLock()
	for v := range h.viewers {
		if !v.enqueue(b) {
			slow = append(slow, v)
		}
	}
	h.mu.RUnlock()
	for _, v := range slow {
		h.remove(v)
	}
}
