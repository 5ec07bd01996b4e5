package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 5 * time.Second

// handleStream compiles every text frame and answers with the full report.
// A frame is either plain text or a CompileRequest object.
func (s *Server) handleStream(w http.ResponseWriter, req *http.Request) {
	ws, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Warn("upgrade websocket failed", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(s.cfg.MaxBodyBytes)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		in := CompileRequest{Text: string(data)}
		if strings.HasPrefix(strings.TrimSpace(in.Text), "{") {
			in = CompileRequest{}
			if err := decodeStrict(data, &in); err != nil {
				if !s.writeFrame(ws, map[string]any{"error": err.Error()}) {
					return
				}
				continue
			}
		}
		in.Explain = true

		var reply any
		out, _, err := s.compile(req.Context(), uuid.NewString(), in)
		if err != nil {
			reply = map[string]any{"error": err.Error()}
		} else {
			reply = out
		}
		if !s.writeFrame(ws, reply) {
			return
		}
	}
}

func (s *Server) writeFrame(ws *websocket.Conn, body any) bool {
	_ = ws.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := ws.WriteJSON(body); err != nil {
		s.logger.Warn("stream write failed", "error", err)
		return false
	}
	return true
}
