package interfaces

import (
	"context"

	"tebnegar/client/internal/model"
)

// This file defines the contract between the synchronization controller and
// the front ends. Depending on the interface instead of the concrete
// controller keeps the REPL testable against a mock.

// ChatController is everything a front end may ask the client to do. All
// operations are no-ops while a round trip is in flight; the front end reads
// the runtime state to decide which affordances to enable.
type ChatController interface {
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context)

	SendMessage(ctx context.Context, text string) error
	NewConversation(ctx context.Context) error
	OpenConversation(ctx context.Context, conversationID string) error
	RenameConversation(ctx context.Context, conversationID, title string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	SubmitFeedback(ctx context.Context, kind, comment string) error

	Conversations() []model.Conversation
}
