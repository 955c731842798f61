package completion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	chatModels "parley/internal/domain/models/chat"
	chatSvc "parley/internal/domain/services/chat"
)

// Service implements the CompletionService interface. It creates the
// assistant message, hands the conversation to a text engine, and leaves a
// registered executor behind for SSE clients to attach to.
type Service struct {
	chatService chatSvc.ChatService
	engines     *EngineSet
	registry    *ExecutorRegistry
	logger      *slog.Logger
}

// NewService creates a new completion service
func NewService(
	chatService chatSvc.ChatService,
	engines *EngineSet,
	registry *ExecutorRegistry,
	logger *slog.Logger,
) chatSvc.CompletionService {
	return &Service{
		chatService: chatService,
		engines:     engines,
		registry:    registry,
		logger:      logger,
	}
}

// StartCompletion creates an empty assistant message in the chat and starts
// streaming into it
func (s *Service) StartCompletion(ctx context.Context, req *chatSvc.CompletionRequest) (*chatSvc.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = s.engines.DefaultModel()
	}

	engine, err := s.engines.EngineFor(model)
	if err != nil {
		return nil, err
	}

	// Conversation history for the engine
	history, err := s.chatService.LoadChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}

	// The empty snapshot claims the message id and fixes created_at before
	// any delta arrives, so the message is already loadable mid-stream. It is
	// also where an unknown chat surfaces, as ErrNotFound from the FK check.
	messageID := uuid.New().String()
	msg, err := s.chatService.UpsertMessage(ctx, &chatSvc.UpsertMessageRequest{
		ChatID:    req.ChatID,
		MessageID: messageID,
		Role:      chatModels.RoleAssistant,
		Parts:     []chatModels.Part{},
	})
	if err != nil {
		return nil, err
	}

	executor := NewMessageExecutor(
		context.Background(), // outlives the HTTP request that started it
		messageID,
		req.ChatID,
		model,
		s.chatService,
		engine,
		s.logger,
	)

	if !s.registry.Register(messageID, executor) {
		return nil, fmt.Errorf("executor already registered for message %s", messageID)
	}

	executor.Start(&chatSvc.GenerateRequest{
		Messages: history,
		Model:    model,
	})

	s.logger.Info("completion started",
		"chat_id", req.ChatID,
		"message_id", messageID,
		"model", model,
		"engine", engine.Name(),
	)

	return &chatSvc.CompletionResponse{
		Message:   msg,
		StreamURL: fmt.Sprintf("/api/messages/%s/stream", messageID),
	}, nil
}
