package main

import (
	"net/http"
	"strconv"
	"strings"

	"lotdesk/chat"
)

type sendMessageRequest struct {
	Body string `json:"body"`
}

// handleChat dispatches /api/chat/{conversationId}/messages and the
// websocket feed at /api/chat/{conversationId}/ws.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "validation", "invalid chat path")
		return
	}
	conversationID := parts[0]

	switch parts[1] {
	case "messages":
		switch r.Method {
		case http.MethodGet:
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			messages, err := s.chatStore.History(r.Context(), conversationID, limit)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": messages, "total": len(messages)})

		case http.MethodPost:
			var req sendMessageRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "validation", "invalid request body")
				return
			}
			msg, err := s.chatStore.Send(r.Context(), chat.SendParams{
				ConversationID: conversationID,
				SenderID:       requestUserID(r),
				Body:           req.Body,
			})
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, msg)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}

	case "ws":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		s.handleChatSocket(w, r, conversationID)

	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown chat resource")
	}
}

// handleChatSocket upgrades the connection and streams feed messages for one
// conversation until either side goes away.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request, conversationID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}

	sub := s.feed.Subscribe(conversationID)
	defer s.feed.Unsubscribe(sub)
	defer conn.Close()

	// Reader goroutine: the client never sends payloads, but reading is
	// required to observe close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
