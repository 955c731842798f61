package completion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	chatModels "parley/internal/domain/models/chat"
	chatSvc "parley/internal/domain/services/chat"
)

// Execution statuses
const (
	StatusStreaming = "streaming"
	StatusComplete  = "complete"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// persistTimeout bounds the final snapshot write after the stream context is
// already cancelled or errored.
const persistTimeout = 5 * time.Second

// MessageExecutor orchestrates streaming generation of a single assistant
// message.
//
// Responsibilities:
//   - Coordinate engine streaming
//   - Accumulate deltas into parts via PartAccumulator
//   - Persist a whole-message snapshot at every part boundary, so a crash or
//     reconnect mid-stream always finds a consistent prefix of the message
//   - Broadcast SSE events to all connected clients
//   - Handle interruption and reconnection catchup
//
// Thread-safety: methods are safe for concurrent use; multiple SSE clients
// can connect while the stream runs.
type MessageExecutor struct {
	messageID   string
	chatID      string
	model       string
	chatService chatSvc.ChatService
	engine      chatSvc.TextEngine
	logger      *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc

	accumulator *PartAccumulator
	accMu       sync.Mutex

	// SSE client management
	clients   map[string]chan string // clientID -> event channel
	clientsMu sync.RWMutex

	status    string
	statusErr error
	statusMu  sync.RWMutex

	// Populated when streaming completes
	metadata   *chatSvc.StreamMetadata
	metadataMu sync.RWMutex
}

// NewMessageExecutor creates an executor for one assistant message
func NewMessageExecutor(
	parentCtx context.Context,
	messageID string,
	chatID string,
	model string,
	chatService chatSvc.ChatService,
	engine chatSvc.TextEngine,
	logger *slog.Logger,
) *MessageExecutor {
	ctx, cancel := context.WithCancel(parentCtx)

	return &MessageExecutor{
		messageID:   messageID,
		chatID:      chatID,
		model:       model,
		chatService: chatService,
		engine:      engine,
		logger:      logger,
		ctx:         ctx,
		cancelFunc:  cancel,
		accumulator: NewPartAccumulator(),
		clients:     make(map[string]chan string),
		status:      StatusStreaming,
	}
}

// Start begins streaming execution (non-blocking)
func (e *MessageExecutor) Start(req *chatSvc.GenerateRequest) {
	go e.executeStreaming(req)
}

// AddClient registers a new SSE client for this message.
// Returns a channel that receives SSE-formatted event strings; the client
// should read until it closes.
func (e *MessageExecutor) AddClient(clientID string) <-chan string {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()

	// Buffered so a slow client doesn't stall the stream loop
	eventChan := make(chan string, 20)
	e.clients[clientID] = eventChan

	return eventChan
}

// RemoveClient unregisters an SSE client
func (e *MessageExecutor) RemoveClient(clientID string) {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()

	if ch, exists := e.clients[clientID]; exists {
		close(ch)
		delete(e.clients, clientID)
	}
}

// GetClientChannel returns the channel for a registered client, nil if absent.
// Used for sending catchup events during reconnection.
func (e *MessageExecutor) GetClientChannel(clientID string) chan string {
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()

	return e.clients[clientID]
}

// Interrupt cancels the stream. Safe to call multiple times.
func (e *MessageExecutor) Interrupt() {
	e.cancelFunc()

	e.statusMu.Lock()
	if e.status == StatusStreaming {
		e.status = StatusCancelled
	}
	e.statusMu.Unlock()
}

// GetStatus returns the current execution status
func (e *MessageExecutor) GetStatus() string {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// GetError returns the error if status is "error", nil otherwise
func (e *MessageExecutor) GetError() error {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.statusErr
}

// GetMetadata returns the final stream metadata (available after completion)
func (e *MessageExecutor) GetMetadata() *chatSvc.StreamMetadata {
	e.metadataMu.RLock()
	defer e.metadataMu.RUnlock()
	return e.metadata
}

// HandleReconnection sends catchup events to a registered client: every
// persisted part, then the in-progress part, then a terminal event if the
// stream already ended. After a terminal event the client is deregistered,
// which closes its channel; RemoveClient is the only closer, so the
// handler's own deferred RemoveClient stays a no-op.
func (e *MessageExecutor) HandleReconnection(ctx context.Context, clientID string) error {
	clientChan := e.GetClientChannel(clientID)
	if clientChan == nil {
		return fmt.Errorf("client %s is not registered", clientID)
	}

	msg, err := e.chatService.GetMessage(ctx, e.messageID)
	if err != nil {
		return fmt.Errorf("fetch message for catchup: %w", err)
	}

	send := func(event string) error {
		select {
		case clientChan <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for i, part := range msg.Parts {
		event, err := chatModels.NewPartCatchupEvent(i, part)
		if err != nil {
			return fmt.Errorf("create catchup event: %w", err)
		}
		if err := send(event); err != nil {
			return err
		}
	}

	switch e.GetStatus() {
	case StatusStreaming:
		e.accMu.Lock()
		current := e.accumulator.CurrentPart()
		sealedCount := len(e.accumulator.Parts())
		e.accMu.Unlock()

		if current != nil {
			event, err := chatModels.NewPartCatchupEvent(sealedCount, current)
			if err != nil {
				return fmt.Errorf("create catchup event: %w", err)
			}
			if err := send(event); err != nil {
				return err
			}
		}

	case StatusComplete:
		metadata := e.GetMetadata()
		if metadata != nil {
			event, err := chatModels.NewMessageCompleteEvent(
				e.messageID,
				metadata.StopReason,
				metadata.InputTokens,
				metadata.OutputTokens,
			)
			if err != nil {
				return fmt.Errorf("create complete event: %w", err)
			}
			if err := send(event); err != nil {
				return err
			}
		}
		e.RemoveClient(clientID)

	case StatusError:
		errorMsg := "unknown error"
		if statusErr := e.GetError(); statusErr != nil {
			errorMsg = statusErr.Error()
		}
		event, err := chatModels.NewMessageErrorEvent(e.messageID, errorMsg, false)
		if err != nil {
			return fmt.Errorf("create error event: %w", err)
		}
		if err := send(event); err != nil {
			return err
		}
		e.RemoveClient(clientID)

	case StatusCancelled:
		event, err := chatModels.NewMessageErrorEvent(e.messageID, "generation was interrupted", true)
		if err != nil {
			return fmt.Errorf("create cancellation event: %w", err)
		}
		if err := send(event); err != nil {
			return err
		}
		e.RemoveClient(clientID)
	}

	return nil
}

// executeStreaming is the main streaming loop (runs in its own goroutine)
func (e *MessageExecutor) executeStreaming(req *chatSvc.GenerateRequest) {
	startEvent, _ := chatModels.NewMessageStartEvent(e.messageID, e.chatID, e.model)
	e.broadcast(startEvent)

	streamChan, err := e.engine.StreamResponse(e.ctx, req)
	if err != nil {
		e.handleError(fmt.Errorf("start engine stream: %w", err))
		return
	}

	for streamEvent := range streamChan {
		if streamEvent.Error != nil {
			e.handleError(streamEvent.Error)
			return
		}

		if streamEvent.Delta != nil {
			if err := e.processDelta(streamEvent.Delta); err != nil {
				e.handleError(err)
				return
			}
		}

		if streamEvent.Metadata != nil {
			e.handleCompletion(streamEvent.Metadata)
			return
		}
	}

	// Channel closed without a metadata event: interrupted or engine bug
	if e.ctx.Err() != nil {
		e.handleCancellation()
		return
	}
	e.handleError(fmt.Errorf("stream closed without metadata"))
}

// processDelta broadcasts one delta and persists a snapshot when it sealed
// the previous part.
func (e *MessageExecutor) processDelta(delta *chatSvc.PartDelta) error {
	e.accMu.Lock()
	sealedPart := e.accumulator.ProcessDelta(delta)
	e.accMu.Unlock()

	deltaEvent, _ := chatModels.NewPartDeltaEvent(chatModels.PartDeltaEvent{
		PartIndex:      delta.PartIndex,
		PartType:       delta.PartType,
		TextDelta:      delta.TextDelta,
		InputJSONDelta: delta.InputJSONDelta,
		ToolCallID:     delta.ToolCallID,
	})
	e.broadcast(deltaEvent)

	if sealedPart != nil {
		if err := e.persistSnapshot(e.ctx); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
	}

	return nil
}

// handleCompletion handles successful stream completion
func (e *MessageExecutor) handleCompletion(metadata *chatSvc.StreamMetadata) {
	e.accMu.Lock()
	e.accumulator.Finalize()
	e.accMu.Unlock()

	if err := e.persistSnapshot(e.ctx); err != nil {
		e.handleError(fmt.Errorf("persist final snapshot: %w", err))
		return
	}

	e.metadataMu.Lock()
	e.metadata = metadata
	e.metadataMu.Unlock()

	e.statusMu.Lock()
	e.status = StatusComplete
	e.statusMu.Unlock()

	e.logger.Info("message stream complete",
		"message_id", e.messageID,
		"chat_id", e.chatID,
		"stop_reason", metadata.StopReason,
		"output_tokens", metadata.OutputTokens,
	)

	completeEvent, _ := chatModels.NewMessageCompleteEvent(
		e.messageID,
		metadata.StopReason,
		metadata.InputTokens,
		metadata.OutputTokens,
	)
	e.broadcast(completeEvent)

	e.closeAllClients()
}

// handleError handles streaming errors, saving whatever accumulated
func (e *MessageExecutor) handleError(err error) {
	e.accMu.Lock()
	e.accumulator.Finalize()
	e.accMu.Unlock()

	// The stream context may already be dead; persist on a fresh one
	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if persistErr := e.persistSnapshot(persistCtx); persistErr != nil {
		e.logger.Error("persist partial message after stream error",
			"message_id", e.messageID,
			"error", persistErr,
		)
	}

	e.statusMu.Lock()
	e.status = StatusError
	e.statusErr = err
	e.statusMu.Unlock()

	e.logger.Error("message stream failed",
		"message_id", e.messageID,
		"chat_id", e.chatID,
		"error", err,
	)

	errorEvent, _ := chatModels.NewMessageErrorEvent(e.messageID, err.Error(), false)
	e.broadcast(errorEvent)

	e.closeAllClients()
}

// handleCancellation persists what arrived before the interrupt
func (e *MessageExecutor) handleCancellation() {
	e.accMu.Lock()
	e.accumulator.Finalize()
	e.accMu.Unlock()

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if persistErr := e.persistSnapshot(persistCtx); persistErr != nil {
		e.logger.Error("persist partial message after interrupt",
			"message_id", e.messageID,
			"error", persistErr,
		)
	}

	e.logger.Info("message stream interrupted",
		"message_id", e.messageID,
		"chat_id", e.chatID,
	)

	cancelEvent, _ := chatModels.NewMessageErrorEvent(e.messageID, "generation was interrupted", true)
	e.broadcast(cancelEvent)

	e.closeAllClients()
}

// persistSnapshot upserts the full message with everything accumulated so far
func (e *MessageExecutor) persistSnapshot(ctx context.Context) error {
	e.accMu.Lock()
	parts := e.accumulator.Snapshot()
	e.accMu.Unlock()

	_, err := e.chatService.UpsertMessage(ctx, &chatSvc.UpsertMessageRequest{
		ChatID:    e.chatID,
		MessageID: e.messageID,
		Role:      chatModels.RoleAssistant,
		Parts:     parts,
	})
	return err
}

// broadcast sends an SSE event to all connected clients
func (e *MessageExecutor) broadcast(event string) {
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()

	for clientID, ch := range e.clients {
		select {
		case ch <- event:
		default:
			// Channel full: drop the event, the client catches up on reconnect
			e.logger.Debug("dropped SSE event for slow client",
				"message_id", e.messageID,
				"client_id", clientID,
			)
		}
	}
}

func (e *MessageExecutor) closeAllClients() {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()

	for clientID, ch := range e.clients {
		close(ch)
		delete(e.clients, clientID)
	}
}
