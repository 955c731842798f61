package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"parley/internal/config"
	"parley/internal/domain"
	chatModels "parley/internal/domain/models/chat"
	"parley/internal/domain/repositories"
	chatRepo "parley/internal/domain/repositories/chat"
	chatSvc "parley/internal/domain/services/chat"
)

// Service implements the ChatService interface
type Service struct {
	chatRepo    chatRepo.ChatRepository
	messageRepo chatRepo.MessageRepository
	txManager   repositories.TransactionManager
	logger      *slog.Logger
}

// NewService creates a new chat persistence service
func NewService(
	chatRepo chatRepo.ChatRepository,
	messageRepo chatRepo.MessageRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) chatSvc.ChatService {
	return &Service{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		txManager:   txManager,
		logger:      logger,
	}
}

// CreateChat creates a new chat, generating an id when none is supplied
func (s *Service) CreateChat(ctx context.Context, req *chatSvc.CreateChatRequest) (*chatModels.Chat, error) {
	if err := s.validateCreateChatRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	c := &chatModels.Chat{ID: id}
	if err := s.chatRepo.CreateChat(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("chat created", "id", c.ID)

	return c, nil
}

// ListChats retrieves all chats
func (s *Service) ListChats(ctx context.Context) ([]chatModels.Chat, error) {
	return s.chatRepo.ListChats(ctx)
}

// DeleteChat deletes a chat. Deleting an absent chat is a no-op so retried
// deletes don't surface spurious errors.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	err := s.chatRepo.DeleteChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("delete chat: already absent", "id", chatID)
			return nil
		}
		return err
	}

	s.logger.Info("chat deleted", "id", chatID)
	return nil
}

// UpsertMessage saves one full message snapshot transactionally: message row
// upsert plus wholesale part replacement commit or roll back together, so a
// reader never observes a message with half its parts.
func (s *Service) UpsertMessage(ctx context.Context, req *chatSvc.UpsertMessageRequest) (*chatModels.Message, error) {
	if err := s.validateUpsertMessageRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	msg := &chatModels.Message{
		ID:     req.MessageID,
		ChatID: req.ChatID,
		Role:   req.Role,
		Parts:  req.Parts,
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.messageRepo.Upsert(txCtx, msg); err != nil {
			return err
		}
		return s.messageRepo.ReplaceParts(txCtx, msg.ID, msg.Parts)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("message upserted",
		"id", msg.ID,
		"chat_id", msg.ChatID,
		"role", msg.Role,
		"parts", len(msg.Parts),
	)

	return msg, nil
}

// LoadChat reconstructs a chat's message history in conversation order.
// An unknown chat yields an empty history, same as an empty one: reads never
// fail on absent ids, matching the idempotent-retry posture of the deletes.
func (s *Service) LoadChat(ctx context.Context, chatID string) ([]chatModels.Message, error) {
	return s.messageRepo.ListByChat(ctx, chatID)
}

// GetMessage retrieves a single message with its parts
func (s *Service) GetMessage(ctx context.Context, messageID string) (*chatModels.Message, error) {
	return s.messageRepo.Get(ctx, messageID)
}

// DeleteMessage deletes a message and every later message in its chat.
// Like DeleteChat, deleting an absent message is a no-op.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	err := s.messageRepo.TruncateFrom(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("delete message: already absent", "id", messageID)
			return nil
		}
		return err
	}

	s.logger.Info("message deleted with successors", "id", messageID)
	return nil
}

// Validation methods

func (s *Service) validateCreateChatRequest(req *chatSvc.CreateChatRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ID, validation.Length(0, config.MaxIDLength)),
	)
}

func (s *Service) validateUpsertMessageRequest(req *chatSvc.UpsertMessageRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ChatID,
			validation.Required,
			validation.Length(1, config.MaxIDLength),
		),
		validation.Field(&req.MessageID,
			validation.Required,
			validation.Length(1, config.MaxIDLength),
		),
		validation.Field(&req.Role,
			validation.Required,
			validation.In(chatModels.Roles...),
		),
		validation.Field(&req.Parts,
			validation.Length(0, config.MaxPartsPerMessage),
		),
	)
}
