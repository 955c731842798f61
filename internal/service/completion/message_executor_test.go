package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"parley/internal/domain"
	chatModels "parley/internal/domain/models/chat"
	chatSvc "parley/internal/domain/services/chat"
)

// stubChatService records snapshot upserts and serves them back for catchup
type stubChatService struct {
	mu       sync.Mutex
	messages map[string]*chatModels.Message
	upserts  int
}

func newStubChatService() *stubChatService {
	return &stubChatService{messages: map[string]*chatModels.Message{}}
}

func (s *stubChatService) CreateChat(ctx context.Context, req *chatSvc.CreateChatRequest) (*chatModels.Chat, error) {
	return &chatModels.Chat{ID: req.ID}, nil
}

func (s *stubChatService) ListChats(ctx context.Context) ([]chatModels.Chat, error) {
	return nil, nil
}

func (s *stubChatService) DeleteChat(ctx context.Context, chatID string) error { return nil }

func (s *stubChatService) UpsertMessage(ctx context.Context, req *chatSvc.UpsertMessageRequest) (*chatModels.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &chatModels.Message{
		ID:     req.MessageID,
		ChatID: req.ChatID,
		Role:   req.Role,
		Parts:  req.Parts,
	}
	s.messages[req.MessageID] = msg
	s.upserts++
	return msg, nil
}

func (s *stubChatService) LoadChat(ctx context.Context, chatID string) ([]chatModels.Message, error) {
	return nil, nil
}

func (s *stubChatService) GetMessage(ctx context.Context, messageID string) (*chatModels.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[messageID]; ok {
		return msg, nil
	}
	return nil, &domain.NotFoundError{Message: "message not found"}
}

func (s *stubChatService) DeleteMessage(ctx context.Context, messageID string) error { return nil }

func (s *stubChatService) persisted(messageID string) *chatModels.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[messageID]
}

// scriptedEngine replays a fixed event sequence
type scriptedEngine struct {
	events []chatSvc.StreamEvent
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) SupportsModel(model string) bool { return true }

func (e *scriptedEngine) GenerateResponse(ctx context.Context, req *chatSvc.GenerateRequest) (*chatSvc.GenerateResponse, error) {
	return nil, errors.New("not implemented")
}

func (e *scriptedEngine) StreamResponse(ctx context.Context, req *chatSvc.GenerateRequest) (<-chan chatSvc.StreamEvent, error) {
	out := make(chan chatSvc.StreamEvent)
	go func() {
		defer close(out)
		for _, ev := range e.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func waitForStatus(t *testing.T, e *MessageExecutor, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if e.GetStatus() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("executor status = %q, want %q (timed out)", e.GetStatus(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestExecutorStreamsAndPersists(t *testing.T) {
	svc := newStubChatService()
	engine := &scriptedEngine{
		events: []chatSvc.StreamEvent{
			{Delta: &chatSvc.PartDelta{PartIndex: 0, PartType: sp(chatModels.PartTypeReasoning), TextDelta: sp("let me think")}},
			{Delta: &chatSvc.PartDelta{PartIndex: 1, PartType: sp(chatModels.PartTypeText), TextDelta: sp("the answer ")}},
			{Delta: &chatSvc.PartDelta{PartIndex: 1, TextDelta: sp("is 42")}},
			{Metadata: &chatSvc.StreamMetadata{Model: "lorem-v1", StopReason: "end_turn", OutputTokens: 7}},
		},
	}

	executor := NewMessageExecutor(context.Background(), "m1", "c1", "lorem-v1", svc, engine, testLogger())
	eventChan := executor.AddClient("client-1")

	executor.Start(&chatSvc.GenerateRequest{Model: "lorem-v1"})
	waitForStatus(t, executor, StatusComplete)

	// Final snapshot holds both parts in order
	msg := svc.persisted("m1")
	if msg == nil {
		t.Fatal("no message persisted")
	}
	if len(msg.Parts) != 2 {
		t.Fatalf("persisted parts = %d, want 2", len(msg.Parts))
	}
	if rp, ok := msg.Parts[0].(*chatModels.ReasoningPart); !ok || rp.Text != "let me think" {
		t.Errorf("parts[0] = %#v, want reasoning 'let me think'", msg.Parts[0])
	}
	if tp, ok := msg.Parts[1].(*chatModels.TextPart); !ok || tp.Text != "the answer is 42" {
		t.Errorf("parts[1] = %#v, want text 'the answer is 42'", msg.Parts[1])
	}
	if msg.Role != chatModels.RoleAssistant {
		t.Errorf("persisted role = %q, want assistant", msg.Role)
	}

	// The client saw the whole event sequence and the channel closed
	var events []string
	for ev := range eventChan {
		events = append(events, ev)
	}
	joined := strings.Join(events, "")
	for _, wantEvent := range []string{
		"event: message_start",
		"event: part_delta",
		"event: message_complete",
	} {
		if !strings.Contains(joined, wantEvent) {
			t.Errorf("client events missing %q", wantEvent)
		}
	}

	metadata := executor.GetMetadata()
	if metadata == nil || metadata.StopReason != "end_turn" {
		t.Errorf("metadata = %#v, want stop reason end_turn", metadata)
	}
}

func TestExecutorEngineErrorPersistsPartial(t *testing.T) {
	svc := newStubChatService()
	engine := &scriptedEngine{
		events: []chatSvc.StreamEvent{
			{Delta: &chatSvc.PartDelta{PartIndex: 0, PartType: sp(chatModels.PartTypeText), TextDelta: sp("partial out")}},
			{Error: errors.New("engine exploded")},
		},
	}

	executor := NewMessageExecutor(context.Background(), "m1", "c1", "lorem-v1", svc, engine, testLogger())
	eventChan := executor.AddClient("client-1")

	executor.Start(&chatSvc.GenerateRequest{Model: "lorem-v1"})
	waitForStatus(t, executor, StatusError)

	// Whatever arrived before the failure is kept
	msg := svc.persisted("m1")
	if msg == nil {
		t.Fatal("no message persisted after error")
	}
	if len(msg.Parts) != 1 {
		t.Fatalf("persisted parts = %d, want 1", len(msg.Parts))
	}
	if tp, ok := msg.Parts[0].(*chatModels.TextPart); !ok || tp.Text != "partial out" {
		t.Errorf("parts[0] = %#v, want text 'partial out'", msg.Parts[0])
	}

	var events []string
	for ev := range eventChan {
		events = append(events, ev)
	}
	if !strings.Contains(strings.Join(events, ""), "event: message_error") {
		t.Error("client events missing message_error")
	}

	if executor.GetError() == nil {
		t.Error("GetError() = nil, want the engine error")
	}
}

func TestExecutorStreamClosedWithoutMetadata(t *testing.T) {
	svc := newStubChatService()
	engine := &scriptedEngine{
		events: []chatSvc.StreamEvent{
			{Delta: &chatSvc.PartDelta{PartIndex: 0, PartType: sp(chatModels.PartTypeText), TextDelta: sp("hi")}},
		},
	}

	executor := NewMessageExecutor(context.Background(), "m1", "c1", "lorem-v1", svc, engine, testLogger())
	executor.Start(&chatSvc.GenerateRequest{Model: "lorem-v1"})

	waitForStatus(t, executor, StatusError)
}

func TestExecutorCatchupAfterCompletion(t *testing.T) {
	svc := newStubChatService()
	engine := &scriptedEngine{
		events: []chatSvc.StreamEvent{
			{Delta: &chatSvc.PartDelta{PartIndex: 0, PartType: sp(chatModels.PartTypeText), TextDelta: sp("done")}},
			{Metadata: &chatSvc.StreamMetadata{Model: "lorem-v1", StopReason: "end_turn"}},
		},
	}

	executor := NewMessageExecutor(context.Background(), "m1", "c1", "lorem-v1", svc, engine, testLogger())
	executor.Start(&chatSvc.GenerateRequest{Model: "lorem-v1"})
	waitForStatus(t, executor, StatusComplete)

	// A client connecting after the stream ended replays the stored parts and
	// the terminal event, then the channel closes. This mirrors the SSE
	// handler's sequence exactly, including its deferred RemoveClient after
	// the catchup already deregistered the client.
	eventChan := executor.AddClient("late-client")
	if err := executor.HandleReconnection(context.Background(), "late-client"); err != nil {
		t.Fatalf("HandleReconnection() unexpected error: %v", err)
	}

	var events []string
	for ev := range eventChan {
		events = append(events, ev)
	}
	joined := strings.Join(events, "")
	if !strings.Contains(joined, "event: part_catchup") {
		t.Error("catchup events missing part_catchup")
	}
	if !strings.Contains(joined, "event: message_complete") {
		t.Error("catchup events missing message_complete")
	}

	// The handler always unregisters on the way out; the channel is already
	// closed and this must stay a no-op
	executor.RemoveClient("late-client")
}

func TestExecutorCatchupUnknownClient(t *testing.T) {
	svc := newStubChatService()
	executor := NewMessageExecutor(context.Background(), "m1", "c1", "lorem-v1", svc, nil, testLogger())

	if err := executor.HandleReconnection(context.Background(), "ghost"); err == nil {
		t.Error("HandleReconnection() for an unregistered client = nil, want error")
	}
}
