package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type      string `json:"type"`       // "ask"
	SessionID string `json:"session_id"` // empty for new sessions
	Query     string `json:"query"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type      string   `json:"type"` // "answer" or "error"
	SessionID string   `json:"session_id"`
	Markdown  string   `json:"markdown,omitempty"`
	HTML      string   `json:"html,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	UsedFiles []string `json:"used_files,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	caller := callerFrom(r)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendWSError(conn, "", "invalid message format")
			continue
		}
		if req.Type != "" && req.Type != "ask" {
			s.sendWSError(conn, req.SessionID, "unknown message type: "+req.Type)
			continue
		}
		if req.Query == "" {
			s.sendWSError(conn, req.SessionID, "query is required")
			continue
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		answer, err := s.deps.QA.Ask(r.Context(), sessionID, caller, req.Query)
		if err != nil {
			log.Printf("server: websocket ask: %v", err)
			s.sendWSError(conn, sessionID, "failed to answer the question")
			continue
		}

		s.sendWS(conn, chatResponse{
			Type:      "answer",
			SessionID: sessionID,
			Markdown:  answer.Markdown,
			HTML:      answer.HTML,
			Mode:      string(answer.Mode),
			UsedFiles: answer.UsedFiles,
		})
	}
}

func (s *Server) sendWS(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendWSError(conn *websocket.Conn, sessionID, msg string) {
	s.sendWS(conn, chatResponse{Type: "error", SessionID: sessionID, Error: msg})
}
