package functions

import (
	"chat-functions/internal/storage"
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MessageStore is the per-user messages collection of the document store
type MessageStore interface {
	CreateMessage(ctx context.Context, userID, text string) (storage.Message, error)
	MessagesByUserID(ctx context.Context, userID string) ([]storage.Message, error)
}

type PostMessageRequest struct {
	Text   string `json:"text" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type PostMessageResult struct {
	Status    Status `json:"status"`
	MessageID string `json:"messageId"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type GetChatResult struct {
	Status   Status        `json:"status"`
	Messages []ChatMessage `json:"messages"`
}

// Messages implements the message log functions
type Messages struct {
	logger *zap.SugaredLogger
	store  MessageStore
}

func NewMessages(logger *zap.SugaredLogger, store MessageStore) *Messages {
	return &Messages{logger: logger, store: store}
}

// PostMessage appends message to the user's log.
// The user is not required to be registered.
func (m *Messages) PostMessage(ctx context.Context, req PostMessageRequest) (PostMessageResult, error) {
	m.logger.Debugw("Received message request data", "userId", req.UserID, "length", len(req.Text))

	if verr := validateRequest(req); verr != nil {
		m.logger.Debug(verr.Message)
		return PostMessageResult{}, verr
	}

	msg, err := m.store.CreateMessage(ctx, req.UserID, req.Text)
	if err != nil {
		m.logger.Errorf("Error adding message: %v", err)
		return PostMessageResult{}, unknown("An error occurred while adding the message", err)
	}

	return PostMessageResult{Status: StatusSuccess, MessageID: msg.ID}, nil
}

// GetChat returns the user's log from earliest to latest message
func (m *Messages) GetChat(ctx context.Context, req UserRequest) (GetChatResult, error) {
	m.logger.Debugw("Received chat request data", "userId", req.UserID)

	if verr := validateRequest(req); verr != nil {
		m.logger.Debug(verr.Message)
		return GetChatResult{}, verr
	}

	messages, err := m.store.MessagesByUserID(ctx, req.UserID)
	if err != nil {
		m.logger.Errorf("Error getting chat: %v", err)
		return GetChatResult{}, unknown("An error occurred while getting the chat", err)
	}

	return GetChatResult{
		Status: StatusSuccess,
		Messages: lo.Map(messages, func(msg storage.Message, _ int) ChatMessage {
			return ChatMessage(msg)
		}),
	}, nil
}
