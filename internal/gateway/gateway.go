// Package gateway is the thin typed client over the remote conversation
// API. Each operation is one network round trip; there are no retries at
// this layer. Failures are categorized into the sentinel errors of
// internal/errors so the synchronization controller can branch on them
// without seeing HTTP at all.
package gateway

import (
	"context"

	"tebnegar/client/internal/model"
)

// Gateway exposes the remote conversation store.
type Gateway interface {
	CreateSession(ctx context.Context, in model.SessionCreate) (model.NewSession, error)
	EndSession(ctx context.Context, sessionID string) error

	ListConversations(ctx context.Context, sessionID string) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, sessionID string) (model.Conversation, error)
	RenameConversation(ctx context.Context, conversationID, title string) error
	DeleteConversation(ctx context.Context, conversationID string) error

	GetMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	PostMessage(ctx context.Context, conversationID, content string) (model.Message, error)

	PostFeedback(ctx context.Context, messageID string, feedback model.Feedback) error
}
