package handler

import (
	"log/slog"
	"net/http"

	chatSvc "parley/internal/domain/services/chat"
	"parley/internal/httputil"
)

// ChatHandler handles chat HTTP requests
// Handlers only communicate with services, never repositories
type ChatHandler struct {
	chatService       chatSvc.ChatService
	completionService chatSvc.CompletionService
	logger            *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService chatSvc.ChatService,
	completionService chatSvc.CompletionService,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		chatService:       chatService,
		completionService: completionService,
		logger:            logger,
	}
}

// CreateChat creates a new chat
// POST /api/chats
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req chatSvc.CreateChatRequest
	// An empty body is allowed: the id is optional
	if r.ContentLength > 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	chat, err := h.chatService.CreateChat(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, chat)
}

// ListChats retrieves all chats
// GET /api/chats
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.ListChats(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chats)
}

// DeleteChat deletes a chat and all its messages
// DELETE /api/chats/{id}
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := PathParam(w, r, "id", "chat id")
	if !ok {
		return
	}

	if err := h.chatService.DeleteChat(r.Context(), chatID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMessages reconstructs a chat's message history
// GET /api/chats/{id}/messages
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := PathParam(w, r, "id", "chat id")
	if !ok {
		return
	}

	messages, err := h.chatService.LoadChat(r.Context(), chatID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messages)
}

// UpsertMessage saves a full message snapshot
// PUT /api/chats/{id}/messages/{messageId}
func (h *ChatHandler) UpsertMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := PathParam(w, r, "id", "chat id")
	if !ok {
		return
	}
	messageID, ok := PathParam(w, r, "messageId", "message id")
	if !ok {
		return
	}

	var req chatSvc.UpsertMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Path wins over body for both ids
	req.ChatID = chatID
	req.MessageID = messageID

	msg, err := h.chatService.UpsertMessage(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

// GetMessage retrieves a single message
// GET /api/messages/{id}
func (h *ChatHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := PathParam(w, r, "id", "message id")
	if !ok {
		return
	}

	msg, err := h.chatService.GetMessage(r.Context(), messageID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

// DeleteMessage deletes a message and every later message in its chat
// DELETE /api/messages/{id}
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := PathParam(w, r, "id", "message id")
	if !ok {
		return
	}

	if err := h.chatService.DeleteMessage(r.Context(), messageID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartCompletion creates an assistant message and starts streaming into it
// POST /api/chats/{id}/completions
func (h *ChatHandler) StartCompletion(w http.ResponseWriter, r *http.Request) {
	chatID, ok := PathParam(w, r, "id", "chat id")
	if !ok {
		return
	}

	var req chatSvc.CompletionRequest
	if r.ContentLength > 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	req.ChatID = chatID

	resp, err := h.completionService.StartCompletion(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, resp)
}
