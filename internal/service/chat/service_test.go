package chat

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"parley/internal/domain"
	chatModels "parley/internal/domain/models/chat"
	"parley/internal/domain/repositories"
	chatSvc "parley/internal/domain/services/chat"
)

// fakeChatRepo is an in-memory ChatRepository for service tests
type fakeChatRepo struct {
	chats      map[string]bool
	createErr  error
	deleteErr  error
	getChatErr error
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: map[string]bool{}}
}

func (f *fakeChatRepo) CreateChat(ctx context.Context, c *chatModels.Chat) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.chats[c.ID] {
		return &domain.ConflictError{Message: "chat exists", ResourceType: "chat", ResourceID: c.ID}
	}
	f.chats[c.ID] = true
	return nil
}

func (f *fakeChatRepo) GetChat(ctx context.Context, chatID string) (*chatModels.Chat, error) {
	if f.getChatErr != nil {
		return nil, f.getChatErr
	}
	if !f.chats[chatID] {
		return nil, &domain.NotFoundError{Message: "chat not found"}
	}
	return &chatModels.Chat{ID: chatID}, nil
}

func (f *fakeChatRepo) ListChats(ctx context.Context) ([]chatModels.Chat, error) {
	out := make([]chatModels.Chat, 0, len(f.chats))
	for id := range f.chats {
		out = append(out, chatModels.Chat{ID: id})
	}
	return out, nil
}

func (f *fakeChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !f.chats[chatID] {
		return &domain.NotFoundError{Message: "chat not found"}
	}
	delete(f.chats, chatID)
	return nil
}

// fakeMessageRepo records calls so tests can assert on transaction orchestration
type fakeMessageRepo struct {
	messages map[string]*chatModels.Message

	upsertErr       error
	replacePartsErr error
	truncateErr     error

	upsertCalls  []string
	replaceCalls []string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[string]*chatModels.Message{}}
}

func (f *fakeMessageRepo) Upsert(ctx context.Context, msg *chatModels.Message) error {
	f.upsertCalls = append(f.upsertCalls, msg.ID)
	if f.upsertErr != nil {
		return f.upsertErr
	}
	stored := *msg
	f.messages[msg.ID] = &stored
	return nil
}

func (f *fakeMessageRepo) ReplaceParts(ctx context.Context, messageID string, parts []chatModels.Part) error {
	f.replaceCalls = append(f.replaceCalls, messageID)
	if f.replacePartsErr != nil {
		return f.replacePartsErr
	}
	if m, ok := f.messages[messageID]; ok {
		m.Parts = parts
	}
	return nil
}

func (f *fakeMessageRepo) Get(ctx context.Context, messageID string) (*chatModels.Message, error) {
	m, ok := f.messages[messageID]
	if !ok {
		return nil, &domain.NotFoundError{Message: "message not found"}
	}
	return m, nil
}

func (f *fakeMessageRepo) ListByChat(ctx context.Context, chatID string) ([]chatModels.Message, error) {
	out := []chatModels.Message{}
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) TruncateFrom(ctx context.Context, messageID string) error {
	if f.truncateErr != nil {
		return f.truncateErr
	}
	if _, ok := f.messages[messageID]; !ok {
		return &domain.NotFoundError{Message: "message not found"}
	}
	delete(f.messages, messageID)
	return nil
}

// fakeTxManager runs the function directly; tests only care that repo calls
// happen inside one ExecTx invocation.
type fakeTxManager struct {
	execCount int
	execErr   error
}

func (f *fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	f.execCount++
	if f.execErr != nil {
		return f.execErr
	}
	return fn(ctx)
}

func newTestService() (chatSvc.ChatService, *fakeChatRepo, *fakeMessageRepo, *fakeTxManager) {
	chatRepo := newFakeChatRepo()
	messageRepo := newFakeMessageRepo()
	txManager := &fakeTxManager{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := NewService(chatRepo, messageRepo, txManager, logger)
	return svc, chatRepo, messageRepo, txManager
}

func TestCreateChat(t *testing.T) {
	svc, _, _, _ := newTestService()

	t.Run("generates id when empty", func(t *testing.T) {
		c, err := svc.CreateChat(context.Background(), &chatSvc.CreateChatRequest{})
		if err != nil {
			t.Fatalf("CreateChat() unexpected error: %v", err)
		}
		if c.ID == "" {
			t.Error("expected generated id, got empty")
		}
	})

	t.Run("keeps caller id", func(t *testing.T) {
		c, err := svc.CreateChat(context.Background(), &chatSvc.CreateChatRequest{ID: "my-chat"})
		if err != nil {
			t.Fatalf("CreateChat() unexpected error: %v", err)
		}
		if c.ID != "my-chat" {
			t.Errorf("chat id = %q, want %q", c.ID, "my-chat")
		}
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		_, err := svc.CreateChat(context.Background(), &chatSvc.CreateChatRequest{ID: "my-chat"})
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected conflict error, got %v", err)
		}
	})

	t.Run("rejects overlong id", func(t *testing.T) {
		_, err := svc.CreateChat(context.Background(), &chatSvc.CreateChatRequest{ID: strings.Repeat("x", 65)})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestDeleteChatIdempotent(t *testing.T) {
	svc, chatRepo, _, _ := newTestService()
	chatRepo.chats["c1"] = true

	if err := svc.DeleteChat(context.Background(), "c1"); err != nil {
		t.Fatalf("DeleteChat() unexpected error: %v", err)
	}
	// Second delete of the same chat is a no-op, not an error
	if err := svc.DeleteChat(context.Background(), "c1"); err != nil {
		t.Errorf("repeated DeleteChat() = %v, want nil", err)
	}
}

func TestDeleteChatSurfacesOtherErrors(t *testing.T) {
	svc, chatRepo, _, _ := newTestService()
	chatRepo.deleteErr = errors.New("connection refused")

	if err := svc.DeleteChat(context.Background(), "c1"); err == nil {
		t.Error("DeleteChat() expected error, got nil")
	}
}

func TestUpsertMessage(t *testing.T) {
	svc, chatRepo, messageRepo, txManager := newTestService()
	chatRepo.chats["c1"] = true

	req := &chatSvc.UpsertMessageRequest{
		ChatID:    "c1",
		MessageID: "m1",
		Role:      chatModels.RoleAssistant,
		Parts: []chatModels.Part{
			&chatModels.TextPart{Text: "hello"},
		},
	}

	msg, err := svc.UpsertMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("UpsertMessage() unexpected error: %v", err)
	}
	if msg.ID != "m1" || msg.ChatID != "c1" {
		t.Errorf("message = %q in %q, want m1 in c1", msg.ID, msg.ChatID)
	}

	// Row upsert and part replacement both run, inside one transaction
	if txManager.execCount != 1 {
		t.Errorf("ExecTx calls = %d, want 1", txManager.execCount)
	}
	if len(messageRepo.upsertCalls) != 1 || messageRepo.upsertCalls[0] != "m1" {
		t.Errorf("upsert calls = %v, want [m1]", messageRepo.upsertCalls)
	}
	if len(messageRepo.replaceCalls) != 1 || messageRepo.replaceCalls[0] != "m1" {
		t.Errorf("replace calls = %v, want [m1]", messageRepo.replaceCalls)
	}
}

func TestUpsertMessageValidation(t *testing.T) {
	svc, _, messageRepo, _ := newTestService()

	tests := []struct {
		name string
		req  *chatSvc.UpsertMessageRequest
	}{
		{
			name: "missing chat id",
			req:  &chatSvc.UpsertMessageRequest{MessageID: "m1", Role: chatModels.RoleUser},
		},
		{
			name: "missing message id",
			req:  &chatSvc.UpsertMessageRequest{ChatID: "c1", Role: chatModels.RoleUser},
		},
		{
			name: "missing role",
			req:  &chatSvc.UpsertMessageRequest{ChatID: "c1", MessageID: "m1"},
		},
		{
			name: "unknown role",
			req:  &chatSvc.UpsertMessageRequest{ChatID: "c1", MessageID: "m1", Role: "moderator"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpsertMessage(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	// Nothing must have touched the repository
	if len(messageRepo.upsertCalls) != 0 {
		t.Errorf("upsert calls after validation failures = %v, want none", messageRepo.upsertCalls)
	}
}

func TestUpsertMessagePartFailureAborts(t *testing.T) {
	svc, chatRepo, messageRepo, _ := newTestService()
	chatRepo.chats["c1"] = true
	messageRepo.replacePartsErr = errors.New("encode failed")

	_, err := svc.UpsertMessage(context.Background(), &chatSvc.UpsertMessageRequest{
		ChatID:    "c1",
		MessageID: "m1",
		Role:      chatModels.RoleUser,
	})
	if err == nil {
		t.Fatal("UpsertMessage() expected error, got nil")
	}
}

func TestLoadChat(t *testing.T) {
	svc, chatRepo, messageRepo, _ := newTestService()
	chatRepo.chats["c1"] = true
	messageRepo.messages["m1"] = &chatModels.Message{ID: "m1", ChatID: "c1", Role: chatModels.RoleUser}

	t.Run("existing chat", func(t *testing.T) {
		msgs, err := svc.LoadChat(context.Background(), "c1")
		if err != nil {
			t.Fatalf("LoadChat() unexpected error: %v", err)
		}
		if len(msgs) != 1 {
			t.Errorf("expected 1 message, got %d", len(msgs))
		}
	})

	t.Run("empty chat is not an error", func(t *testing.T) {
		chatRepo.chats["empty"] = true
		msgs, err := svc.LoadChat(context.Background(), "empty")
		if err != nil {
			t.Fatalf("LoadChat() unexpected error: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("expected no messages, got %d", len(msgs))
		}
	})

	t.Run("unknown chat yields empty history, not an error", func(t *testing.T) {
		msgs, err := svc.LoadChat(context.Background(), "nope")
		if err != nil {
			t.Fatalf("LoadChat() unexpected error: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("expected no messages, got %d", len(msgs))
		}
	})
}

func TestDeleteMessageIdempotent(t *testing.T) {
	svc, _, messageRepo, _ := newTestService()
	messageRepo.messages["m1"] = &chatModels.Message{ID: "m1", ChatID: "c1", Role: chatModels.RoleUser}

	if err := svc.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Fatalf("DeleteMessage() unexpected error: %v", err)
	}
	if err := svc.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Errorf("repeated DeleteMessage() = %v, want nil", err)
	}
}
