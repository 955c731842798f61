package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"parley/internal/domain"
	chatModels "parley/internal/domain/models/chat"
	chatRepo "parley/internal/domain/repositories/chat"
	"parley/internal/repository/postgres"
)

// partColumns is the column list shared by every part query. Order matters:
// scanPartRow and the bulk insert both follow it positionally.
const partColumns = `id, message_id, type, ord, created_at,
		text_text,
		reasoning_text, reasoning_provider_metadata,
		tool_call_id, tool_state, tool_input, tool_output, tool_error_text,
		status_id, status_fields`

const partColumnCount = 15

// PostgresMessageRepository implements the MessageRepository interface using PostgreSQL
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *postgres.RepositoryConfig) chatRepo.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Upsert inserts the message row or updates chat_id and role in place.
// created_at is deliberately absent from the update set: the original insert
// timestamp is what keeps conversation order stable across re-upserts.
func (r *PostgresMessageRepository) Upsert(ctx context.Context, msg *chatModels.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, chat_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET chat_id = EXCLUDED.chat_id, role = EXCLUDED.role
		RETURNING created_at
	`, r.tables.Messages)

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.Role,
		msg.CreatedAt,
	).Scan(&msg.CreatedAt)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("chat %s: %w", msg.ChatID, domain.ErrNotFound)
		}
		return fmt.Errorf("upsert message: %w", err)
	}

	return nil
}

// ReplaceParts deletes the message's stored parts and bulk-inserts the new
// sequence. Meant to run in the same transaction as Upsert.
func (r *PostgresMessageRepository) ReplaceParts(ctx context.Context, messageID string, parts []chatModels.Part) error {
	rows, err := chatModels.EncodeParts(messageID, parts)
	if err != nil {
		return err
	}

	executor := postgres.GetExecutor(ctx, r.pool)

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE message_id = $1`, r.tables.Parts)
	if _, err := executor.Exec(ctx, deleteQuery, messageID); err != nil {
		return fmt.Errorf("delete existing parts: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES
	`, r.tables.Parts, partColumns)

	// Build VALUES clause dynamically
	args := make([]interface{}, 0, len(rows)*partColumnCount)
	now := time.Now()
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}

		if i > 0 {
			query += ","
		}
		base := i * partColumnCount
		query += "("
		for j := 1; j <= partColumnCount; j++ {
			if j > 1 {
				query += ", "
			}
			query += fmt.Sprintf("$%d", base+j)
		}
		query += ")"

		args = append(args,
			row.ID,
			row.MessageID,
			row.Type,
			row.Order,
			row.CreatedAt,
			row.TextText,
			row.ReasoningText,
			row.ReasoningProviderMetadata, // pgx handles map -> JSONB (nil becomes NULL)
			row.ToolCallID,
			row.ToolState,
			row.ToolInput,  // pgx handles json.RawMessage -> JSONB (nil becomes NULL)
			row.ToolOutput, // same
			row.ToolErrorText,
			row.StatusID,
			row.StatusFields, // pgx handles map -> JSONB (nil becomes NULL)
		)
	}

	if _, err := executor.Exec(ctx, query, args...); err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
		}
		return fmt.Errorf("insert parts: %w", err)
	}

	return nil
}

// Get retrieves a message with its parts decoded
func (r *PostgresMessageRepository) Get(ctx context.Context, messageID string) (*chatModels.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, role, created_at
		FROM %s
		WHERE id = $1
	`, r.tables.Messages)

	var msg chatModels.Message
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, messageID).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.Role,
		&msg.CreatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	partsByMessage, err := r.loadParts(ctx, []string{messageID})
	if err != nil {
		return nil, err
	}
	msg.Parts = partsByMessage[messageID]
	if msg.Parts == nil {
		msg.Parts = []chatModels.Part{}
	}

	return &msg, nil
}

// ListByChat retrieves every message in a chat in conversation order, with
// parts decoded. Uses one query for messages and one for all their parts.
func (r *PostgresMessageRepository) ListByChat(ctx context.Context, chatID string) ([]chatModels.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, role, created_at
		FROM %s
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []chatModels.Message
	var messageIDs []string
	for rows.Next() {
		var msg chatModels.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.Role,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
		messageIDs = append(messageIDs, msg.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if len(messages) == 0 {
		return []chatModels.Message{}, nil
	}

	partsByMessage, err := r.loadParts(ctx, messageIDs)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Parts = partsByMessage[messages[i].ID]
		if messages[i].Parts == nil {
			messages[i].Parts = []chatModels.Part{}
		}
	}

	return messages, nil
}

// loadParts fetches and decodes parts for the given message ids, grouped by
// message and ordered by ord within each message.
func (r *PostgresMessageRepository) loadParts(ctx context.Context, messageIDs []string) (map[string][]chatModels.Part, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE message_id = ANY($1)
		ORDER BY message_id, ord ASC
	`, partColumns, r.tables.Parts)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("load parts: %w", err)
	}
	defer rows.Close()

	partsByMessage := make(map[string][]chatModels.Part, len(messageIDs))
	for rows.Next() {
		var row chatModels.PartRow
		err := rows.Scan(
			&row.ID,
			&row.MessageID,
			&row.Type,
			&row.Order,
			&row.CreatedAt,
			&row.TextText,
			&row.ReasoningText,
			&row.ReasoningProviderMetadata,
			&row.ToolCallID,
			&row.ToolState,
			&row.ToolInput,
			&row.ToolOutput,
			&row.ToolErrorText,
			&row.StatusID,
			&row.StatusFields,
		)
		if err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}

		part, err := chatModels.DecodePart(&row)
		if err != nil {
			return nil, err
		}
		partsByMessage[row.MessageID] = append(partsByMessage[row.MessageID], part)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parts: %w", err)
	}

	return partsByMessage, nil
}

// TruncateFrom deletes the message and everything after it in its chat. The
// row comparison matches the (created_at, id) conversation order exactly, so
// a created_at tie is broken the same way a load would order it.
func (r *PostgresMessageRepository) TruncateFrom(ctx context.Context, messageID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s m
		USING %s pivot
		WHERE pivot.id = $1
		  AND m.chat_id = pivot.chat_id
		  AND (m.created_at, m.id) >= (pivot.created_at, pivot.id)
	`, r.tables.Messages, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, messageID)
	if err != nil {
		return fmt.Errorf("truncate messages: %w", err)
	}

	// The pivot always matches itself, so zero rows means it was never there
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}

	return nil
}
