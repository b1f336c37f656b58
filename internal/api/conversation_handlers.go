package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"parley/internal/auth"
	"parley/internal/chat"
	"parley/internal/domain"
)

// principal returns the authenticated user's ID, writing a 401 when absent.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.writeErr(r.Context(), w, http.StatusUnauthorized, "authentication required", "")
		return "", false
	}
	return user.ID, true
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req domain.CreateConversationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err.Error())
			return
		}
	}
	conv, err := s.convs.Create(r.Context(), principalID, req.Title)
	if err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	convs, err := s.convs.List(r.Context(), principalID)
	if err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	conv, err := s.convs.Get(r.Context(), id, principalID)
	if err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	messages, err := s.orch.ListMessages(r.Context(), id, principalID)
	if err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ConversationWithMessages{Conversation: conv, Messages: messages})
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req domain.UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	conv, err := s.convs.Rename(r.Context(), r.PathValue("id"), principalID, req.Title)
	if err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleDeleteConversation is idempotent: deleting a missing or foreign
// conversation reports success without revealing whether it existed.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	if err := s.convs.Delete(r.Context(), r.PathValue("id"), principalID); err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllConversations(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	if err := s.convs.DeleteAll(r.Context(), principalID); err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage appends the user's message, runs a generation, and
// returns both persisted messages. A client-initiated stop yields 204 with no
// body; the user message stays persisted either way.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req domain.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	resp, err := s.orch.SendMessage(r.Context(), r.PathValue("id"), principalID, req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrAborted) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.writeChatErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStopGeneration cancels any in-flight generation for the
// conversation. It succeeds whether or not one was running.
func (s *Server) handleStopGeneration(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r); !ok {
		return
	}
	s.orch.StopGeneration(r.Context(), r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req domain.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	msg, err := s.orch.EditMessage(r.Context(), r.PathValue("id"), principalID, req.Content)
	if err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleDeleteMessagesAfter removes the named message and everything after
// it, returning how many rows were deleted.
func (s *Server) handleDeleteMessagesAfter(w http.ResponseWriter, r *http.Request) {
	principalID, ok := s.principal(w, r)
	if !ok {
		return
	}
	deleted, err := s.orch.DeleteMessagesAfter(r.Context(), r.PathValue("id"), principalID, r.PathValue("messageID"))
	if err != nil {
		s.writeChatErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
