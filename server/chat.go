package server

import (
	"net/http"
	"strings"

	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/generate"
)

// ChatRequest is a free-form question.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the generated answer.
type ChatResponse struct {
	Response string `json:"response"`
}

// handleChat forwards the message to the generator. Answers are not cached.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	const op = "server.chat"

	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeChatError(w, r, fault.Wrap(fault.KindValidation, op, "Invalid JSON in request body", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeChatError(w, r, fault.Validation(op, "Missing message in request body"))
		return
	}

	answer, err := s.generator.Generate(r.Context(), req.Message, generate.ChatOptions)
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: answer})
}
