package repository

import (
	"context"
	"net/http"
	"net/url"

	"github.com/spec-kit/talent-client/internal/api/dto"
	"github.com/spec-kit/talent-client/internal/backend"
	"github.com/spec-kit/talent-client/internal/domain"
)

// MessageRepository reads conversations and their messages.
type MessageRepository interface {
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	Send(ctx context.Context, conversationID, body string) (*domain.Message, error)
}

type messageRepository struct {
	client *backend.Client
}

// NewMessageRepository builds repository.
func NewMessageRepository(client *backend.Client) MessageRepository {
	return &messageRepository{client: client}
}

func (r *messageRepository) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	path := "/messages/conversations/" + url.PathEscape(userID)
	if err := r.client.Do(ctx, http.MethodGet, path, nil, &conversations); err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}

func (r *messageRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var messages []domain.Message
	path := "/messages/conversation/" + url.PathEscape(conversationID)
	if err := r.client.Do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

func (r *messageRepository) Send(ctx context.Context, conversationID, body string) (*domain.Message, error) {
	var msg domain.Message
	path := "/messages/conversation/" + url.PathEscape(conversationID)
	if err := r.client.Do(ctx, http.MethodPost, path, dto.SendMessageRequest{Body: body}, &msg); err != nil {
		return nil, err
	}
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	return &msg, nil
}
