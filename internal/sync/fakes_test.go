package sync_test

import (
	"context"
	"fmt"
	"sync"

	"tebnegar/client/internal/gateway"
	"tebnegar/client/internal/model"
	"tebnegar/client/internal/view"
)

// fakeGateway implements gateway.Gateway with overridable behavior and call
// counters. Unset operations succeed with zero values.
type fakeGateway struct {
	createSessionFn      func(ctx context.Context, in model.SessionCreate) (model.NewSession, error)
	listConversationsFn  func(ctx context.Context, sessionID string) ([]model.Conversation, error)
	createConversationFn func(ctx context.Context, sessionID string) (model.Conversation, error)
	getMessagesFn        func(ctx context.Context, conversationID string) ([]model.Message, error)
	postMessageFn        func(ctx context.Context, conversationID, content string) (model.Message, error)
	renameFn             func(ctx context.Context, conversationID, title string) error
	deleteFn             func(ctx context.Context, conversationID string) error
	postFeedbackFn       func(ctx context.Context, messageID string, feedback model.Feedback) error
	endSessionFn         func(ctx context.Context, sessionID string) error

	createSessionCalls int
	listCalls          int
	postMessageCalls   int
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func (f *fakeGateway) CreateSession(ctx context.Context, in model.SessionCreate) (model.NewSession, error) {
	f.createSessionCalls++
	if f.createSessionFn != nil {
		return f.createSessionFn(ctx, in)
	}
	return model.NewSession{
		SessionID:      fmt.Sprintf("session-%d", f.createSessionCalls),
		ConversationID: fmt.Sprintf("conv-%d", f.createSessionCalls),
	}, nil
}

func (f *fakeGateway) EndSession(ctx context.Context, sessionID string) error {
	if f.endSessionFn != nil {
		return f.endSessionFn(ctx, sessionID)
	}
	return nil
}

func (f *fakeGateway) ListConversations(ctx context.Context, sessionID string) ([]model.Conversation, error) {
	f.listCalls++
	if f.listConversationsFn != nil {
		return f.listConversationsFn(ctx, sessionID)
	}
	return nil, nil
}

func (f *fakeGateway) CreateConversation(ctx context.Context, sessionID string) (model.Conversation, error) {
	if f.createConversationFn != nil {
		return f.createConversationFn(ctx, sessionID)
	}
	return model.Conversation{ID: "conv-new"}, nil
}

func (f *fakeGateway) RenameConversation(ctx context.Context, conversationID, title string) error {
	if f.renameFn != nil {
		return f.renameFn(ctx, conversationID, title)
	}
	return nil
}

func (f *fakeGateway) DeleteConversation(ctx context.Context, conversationID string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, conversationID)
	}
	return nil
}

func (f *fakeGateway) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if f.getMessagesFn != nil {
		return f.getMessagesFn(ctx, conversationID)
	}
	return nil, nil
}

func (f *fakeGateway) PostMessage(ctx context.Context, conversationID, content string) (model.Message, error) {
	f.postMessageCalls++
	if f.postMessageFn != nil {
		return f.postMessageFn(ctx, conversationID, content)
	}
	return model.Message{ID: "msg-assistant", Role: model.RoleAssistant, Content: "ok"}, nil
}

func (f *fakeGateway) PostFeedback(ctx context.Context, messageID string, feedback model.Feedback) error {
	if f.postFeedbackFn != nil {
		return f.postFeedbackFn(ctx, messageID, feedback)
	}
	return nil
}

// memStore is an in-memory identity.Store.
type memStore struct {
	mu    sync.Mutex
	value string
}

func (m *memStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *memStore) Save(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = sessionID
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}

func (m *memStore) Close() error { return nil }

// recordingView captures everything the controller asks the front end to
// show.
type recordingView struct {
	transcript     []model.Message
	welcomeShown   int
	clears         int
	typingVisible  bool
	busy           bool
	history        []model.Conversation
	historyCurrent string
	notifications  []string
	degradedReason string
}

var _ view.View = (*recordingView)(nil)

func (v *recordingView) RenderMessage(msg model.Message) { v.transcript = append(v.transcript, msg) }
func (v *recordingView) RenderWelcome()                  { v.welcomeShown++ }
func (v *recordingView) ClearTranscript()                { v.transcript = nil; v.clears++ }
func (v *recordingView) ShowTyping()                     { v.typingVisible = true }
func (v *recordingView) HideTyping()                     { v.typingVisible = false }
func (v *recordingView) SetBusy(busy bool)               { v.busy = busy }
func (v *recordingView) ShowDegraded(reason string)      { v.degradedReason = reason }

func (v *recordingView) UpdateHistory(conversations []model.Conversation, currentID string) {
	v.history = conversations
	v.historyCurrent = currentID
}

func (v *recordingView) Notify(kind view.NotifyKind, message string) {
	v.notifications = append(v.notifications, string(kind)+": "+message)
}
