package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// bench-local monitor; allow all
		return true
	},
}

func (s *Server) handleWSCal(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxMessageSize)
	v := s.hub.add(conn)
	defer s.hub.remove(v)

	// late joiners get the current state first
	if err := s.hub.send(v, WSMessage{Type: "status", Data: s.Status()}); err != nil {
		return
	}

	// viewers only listen; reading detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.log.WithField("remote", r.RemoteAddr).Debugf("viewer disconnected: %v", err)
			return
		}
	}
}
