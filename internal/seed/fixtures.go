package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"parley/internal/domain"
	chatModels "parley/internal/domain/models/chat"
	chatSvc "parley/internal/domain/services/chat"
)

// Fixture is the root of a seed fixture file
type Fixture struct {
	Chats []ChatFixture `yaml:"chats"`
}

// ChatFixture describes one chat and its messages
type ChatFixture struct {
	ID       string           `yaml:"id"`
	Messages []MessageFixture `yaml:"messages"`
}

// MessageFixture describes one message. Parts use the same wire shape the
// HTTP API accepts (a "type" discriminant plus variant fields), so fixtures
// double as documentation of the part format.
type MessageFixture struct {
	ID    string                   `yaml:"id"`
	Role  string                   `yaml:"role"`
	Parts []map[string]interface{} `yaml:"parts"`
}

// LoadFixtures reads and parses a YAML fixture file
func LoadFixtures(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture file: %w", err)
	}

	return &fixture, nil
}

// Seeder applies fixtures through the regular service path, so seeded data
// passes the same validation and part encoding as API traffic
type Seeder struct {
	chatService chatSvc.ChatService
	logger      *slog.Logger
}

// NewSeeder creates a new Seeder
func NewSeeder(chatService chatSvc.ChatService, logger *slog.Logger) *Seeder {
	return &Seeder{
		chatService: chatService,
		logger:      logger,
	}
}

// Apply creates every chat and message in the fixture. Existing chats are
// left alone; existing messages are overwritten with the fixture snapshot.
func (s *Seeder) Apply(ctx context.Context, fixture *Fixture) error {
	for _, chatFixture := range fixture.Chats {
		_, err := s.chatService.CreateChat(ctx, &chatSvc.CreateChatRequest{ID: chatFixture.ID})
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("create chat %s: %w", chatFixture.ID, err)
		}

		for _, msgFixture := range chatFixture.Messages {
			parts, err := decodeFixtureParts(msgFixture.Parts)
			if err != nil {
				return fmt.Errorf("chat %s message %s: %w", chatFixture.ID, msgFixture.ID, err)
			}

			_, err = s.chatService.UpsertMessage(ctx, &chatSvc.UpsertMessageRequest{
				ChatID:    chatFixture.ID,
				MessageID: msgFixture.ID,
				Role:      msgFixture.Role,
				Parts:     parts,
			})
			if err != nil {
				return fmt.Errorf("upsert message %s: %w", msgFixture.ID, err)
			}
		}

		s.logger.Info("seeded chat",
			"chat_id", chatFixture.ID,
			"messages", len(chatFixture.Messages),
		)
	}

	return nil
}

// decodeFixtureParts converts YAML part maps to typed parts via the wire codec
func decodeFixtureParts(raw []map[string]interface{}) ([]chatModels.Part, error) {
	parts := make([]chatModels.Part, 0, len(raw))
	for i, m := range raw {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		part, err := chatModels.UnmarshalPart(data)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// DefaultFixture is the built-in demo conversation used when no fixture file
// is given. It touches every part variant and every tool lifecycle state a
// stored message can legally hold.
func DefaultFixture() *Fixture {
	return &Fixture{
		Chats: []ChatFixture{
			{
				ID: "11111111-1111-1111-1111-111111111111",
				Messages: []MessageFixture{
					{
						ID:   "22222222-2222-2222-2222-222222222221",
						Role: "user",
						Parts: []map[string]interface{}{
							{"type": "text", "text": "What's the weather like in Tokyo right now?"},
						},
					},
					{
						ID:   "22222222-2222-2222-2222-222222222222",
						Role: "assistant",
						Parts: []map[string]interface{}{
							{"type": "step-start"},
							{
								"type": "reasoning",
								"text": "The user wants current weather for Tokyo. I should call the weather tool.",
							},
							{
								"type":       "tool-call",
								"toolCallId": "toolu_01_weather_tokyo",
								"state":      "output-available",
								"input":      map[string]interface{}{"city": "Tokyo"},
								"output":     map[string]interface{}{"temperature": 18, "conditions": "light rain"},
							},
							{
								"type":     "status-data",
								"statusId": "weather-lookup",
								"fields":   map[string]interface{}{"city": "Tokyo", "status": "done"},
							},
							{"type": "text", "text": "It's currently 18°C with light rain in Tokyo."},
						},
					},
					{
						ID:   "22222222-2222-2222-2222-222222222223",
						Role: "user",
						Parts: []map[string]interface{}{
							{"type": "text", "text": "And in a city that doesn't exist?"},
						},
					},
					{
						ID:   "22222222-2222-2222-2222-222222222224",
						Role: "assistant",
						Parts: []map[string]interface{}{
							{"type": "step-start"},
							{
								"type":       "tool-call",
								"toolCallId": "toolu_02_weather_nowhere",
								"state":      "output-error",
								"input":      map[string]interface{}{"city": "Nowhereville"},
								"errorText":  "unknown city: Nowhereville",
							},
							{"type": "text", "text": "I couldn't find that city in the weather service."},
						},
					},
				},
			},
		},
	}
}
