// Package sync keeps the local notion of "current session, current
// conversation, current transcript" consistent with the remote store, across
// restarts and transient network failures. It is the only writer of the
// runtime state; front ends observe state and call the operations here.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "tebnegar/client/internal/errors"
	"tebnegar/client/internal/gateway"
	"tebnegar/client/internal/identity"
	"tebnegar/client/internal/model"
	"tebnegar/client/internal/state"
	"tebnegar/client/internal/view"
)

// connectErrorText is rendered in place of an assistant turn that never
// arrived. The user's own message stays in the transcript.
const connectErrorText = "I'm sorry, but I'm having trouble connecting to my services right now. Please try again in a moment."

var validate = validator.New()

// Controller is the synchronization state machine plus the optimistic
// transcript reconciler. All methods are meant to be called from a single
// goroutine (the UI event loop); the busy flag is a cooperative guard
// enforced by the disabled affordances, not a lock.
type Controller struct {
	gw     gateway.Gateway
	ids    identity.Store
	view   view.View
	states *state.Store

	marketing model.SessionCreate

	// Sidebar cache, recency-ordered. Server-of-record: this is only ever
	// overwritten from ListConversations results, plus the documented
	// optimistic title edit.
	conversations []model.Conversation

	// recoveryUsed guards the one-shot invalid-session recovery. It resets
	// on the next ListConversations that the server accepts; a second
	// consecutive rejection degrades the client instead of looping.
	recoveryUsed bool
}

func New(gw gateway.Gateway, ids identity.Store, v view.View, states *state.Store, marketing model.SessionCreate) *Controller {
	return &Controller{gw: gw, ids: ids, view: v, states: states, marketing: marketing}
}

// States exposes the runtime state container for front ends to subscribe to.
func (c *Controller) States() *state.Store { return c.states }

// Conversations returns the current sidebar snapshot, most recent first.
func (c *Controller) Conversations() []model.Conversation {
	out := make([]model.Conversation, len(c.conversations))
	copy(out, c.conversations)
	return out
}

// Startup brings the controller to Ready: it resumes the stored session if
// one exists, provisions a fresh one otherwise. Calling it again once Ready
// (or Degraded) is a no-op, and a second call after a provisioning failure
// is the user-initiated retry. It never creates a second session while a
// stored identifier exists.
func (c *Controller) Startup(ctx context.Context) error {
	switch c.states.Get().Phase {
	case model.PhaseReady, model.PhaseDegraded:
		return nil
	}

	stored := c.storedSession(ctx)
	if stored == "" {
		if err := c.provision(ctx); err != nil {
			return err
		}
		if c.states.Get().Phase == model.PhaseReady {
			c.view.RenderWelcome()
		}
		return nil
	}
	return c.resume(ctx, stored)
}

// Shutdown sends the best-effort session-end beacon. Failures are logged
// only; the beacon must never block or break exit.
func (c *Controller) Shutdown(ctx context.Context) {
	sessionID := c.states.Get().SessionID
	if sessionID == "" {
		return
	}
	if err := c.gw.EndSession(ctx, sessionID); err != nil {
		slog.Debug("Session end beacon failed", "error", err)
	}
}

// provision creates a brand-new session (and its first conversation) and
// persists the identifier. On Network/ServerError the controller stays in
// Provisioning and surfaces a retryable error; there is no silent retry
// loop against a down backend.
func (c *Controller) provision(ctx context.Context) error {
	c.states.Update(func(s *model.RuntimeState) { s.Phase = model.PhaseProvisioning })

	created, err := c.gw.CreateSession(ctx, c.marketing)
	if err != nil {
		slog.Error("Session provisioning failed", "error", err)
		c.view.Notify(view.NotifyError, "Could not reach TebNegar. Please try again.")
		return fmt.Errorf("could not provision session: %w", err)
	}

	if err := c.ids.Save(ctx, created.SessionID); err != nil {
		// An unsaveable identifier degrades gracefully to fresh-visitor
		// behavior on the next run.
		slog.Warn("Could not persist session id", "error", err)
	}

	c.states.Update(func(s *model.RuntimeState) {
		s.Phase = model.PhaseReady
		s.SessionID = created.SessionID
		s.ConversationID = created.ConversationID
		s.LastAssistantMsgID = ""
	})
	c.refreshHistory(ctx)
	return nil
}

// resume loads the conversation list of a stored session and opens the most
// recent conversation. An InvalidSession answer triggers the one-shot
// recovery; a second consecutive one degrades the client.
func (c *Controller) resume(ctx context.Context, sessionID string) error {
	c.states.Update(func(s *model.RuntimeState) {
		s.Phase = model.PhaseProvisioning
		s.SessionID = sessionID
	})

	list, err := c.gw.ListConversations(ctx, sessionID)
	if errors.Is(err, apperrors.ErrInvalidSession) {
		return c.recoverSession(ctx)
	}
	if err != nil {
		slog.Error("Could not list conversations on startup", "error", err)
		c.view.Notify(view.NotifyError, "Could not reach TebNegar. Please try again.")
		return fmt.Errorf("could not resume session: %w", err)
	}
	c.recoveryUsed = false
	c.setConversations(list)

	if len(c.conversations) == 0 {
		conv, err := c.gw.CreateConversation(ctx, sessionID)
		if err != nil {
			slog.Error("Could not create conversation under existing session", "error", err)
			c.view.Notify(view.NotifyError, "Could not reach TebNegar. Please try again.")
			return fmt.Errorf("could not create conversation: %w", err)
		}
		c.states.Update(func(s *model.RuntimeState) {
			s.Phase = model.PhaseReady
			s.ConversationID = conv.ID
		})
		c.view.RenderWelcome()
		c.refreshHistory(ctx)
		return nil
	}

	current := c.conversations[0]
	c.states.Update(func(s *model.RuntimeState) {
		s.Phase = model.PhaseReady
		s.ConversationID = current.ID
	})
	c.renderTranscript(ctx, current.ID)
	c.view.UpdateHistory(c.Conversations(), current.ID)
	return nil
}

// recoverSession discards the stored identifier and re-provisions, exactly
// once. The recoveryUsed flag stays set until the server accepts a
// conversation list again, so a backend that keeps rejecting fresh sessions
// lands in Degraded instead of an infinite recreate loop.
func (c *Controller) recoverSession(ctx context.Context) error {
	if c.recoveryUsed {
		c.degrade("The server no longer recognizes this client, and a fresh start was rejected too.")
		return apperrors.ErrDegraded
	}
	c.recoveryUsed = true

	slog.Info("Stored session is no longer valid, provisioning a fresh one")
	c.states.Update(func(s *model.RuntimeState) {
		s.Phase = model.PhaseRecovering
		s.SessionID = ""
		s.ConversationID = ""
		s.LastAssistantMsgID = ""
	})
	if err := c.ids.Clear(ctx); err != nil {
		slog.Warn("Could not clear stored session id", "error", err)
	}

	if err := c.provision(ctx); err != nil {
		return err
	}
	// Provisioning itself can land in Degraded when the follow-up history
	// refresh hits the second consecutive InvalidSession.
	if c.states.Get().Phase == model.PhaseDegraded {
		return apperrors.ErrDegraded
	}
	c.view.RenderWelcome()
	return nil
}

func (c *Controller) degrade(reason string) {
	slog.Error("Client degraded", "reason", reason)
	c.states.Update(func(s *model.RuntimeState) { s.Phase = model.PhaseDegraded })
	c.view.ShowDegraded(reason)
}

// SendMessage is the optimistic submit path. The user's message is rendered
// immediately and never rolled back; the assistant turn exists only after a
// successful round trip. Empty input and calls while busy are no-ops.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	st := c.states.Get()
	if text == "" || st.Busy {
		return nil
	}
	if st.Phase == model.PhaseDegraded {
		return apperrors.ErrDegraded
	}

	c.view.RenderMessage(model.Message{
		ID:      uuid.NewString(),
		Role:    model.RoleUser,
		Content: text,
	})
	c.states.Update(func(s *model.RuntimeState) { s.Busy = true })
	c.view.SetBusy(true)
	c.view.ShowTyping()

	finish := func() {
		c.view.HideTyping()
		c.states.Update(func(s *model.RuntimeState) { s.Busy = false })
		c.view.SetBusy(false)
	}

	if err := c.ensureConversation(ctx); err != nil {
		finish()
		c.renderSendFailure()
		return err
	}

	reply, err := c.gw.PostMessage(ctx, c.states.Get().ConversationID, text)
	if err != nil {
		finish()
		c.renderSendFailure()
		return fmt.Errorf("could not send message: %w", err)
	}

	finish()
	c.view.RenderMessage(reply)
	c.states.Update(func(s *model.RuntimeState) { s.LastAssistantMsgID = reply.ID })

	// The server may have derived a title from the first message; the
	// sidebar repaint is sequenced after the transcript render.
	c.refreshHistory(ctx)
	return nil
}

func (c *Controller) renderSendFailure() {
	c.view.RenderMessage(model.Message{
		ID:      uuid.NewString(),
		Role:    model.RoleAssistant,
		Content: connectErrorText,
		Error:   true,
	})
	c.view.Notify(view.NotifyError, "Could not send your message.")
}

// ensureConversation makes sure a session and a current conversation exist,
// provisioning on demand. This covers the send-after-delete case: deleting
// the current conversation leaves the session in place with no current
// conversation, and the next send creates one under the same session.
func (c *Controller) ensureConversation(ctx context.Context) error {
	st := c.states.Get()
	if st.SessionID == "" {
		if err := c.provision(ctx); err != nil {
			return err
		}
		return nil
	}
	if st.ConversationID != "" {
		return nil
	}

	conv, err := c.gw.CreateConversation(ctx, st.SessionID)
	if err != nil {
		slog.Error("Could not create conversation", "error", err)
		return fmt.Errorf("could not create conversation: %w", err)
	}
	c.states.Update(func(s *model.RuntimeState) { s.ConversationID = conv.ID })
	return nil
}

// NewConversation opens a fresh thread under the current session.
func (c *Controller) NewConversation(ctx context.Context) error {
	st := c.states.Get()
	if st.Busy {
		return nil
	}
	if st.Phase == model.PhaseDegraded {
		return apperrors.ErrDegraded
	}

	if st.SessionID == "" {
		if err := c.provision(ctx); err != nil {
			return err
		}
		if c.states.Get().Phase == model.PhaseReady {
			c.view.ClearTranscript()
			c.view.RenderWelcome()
		}
		return nil
	}

	conv, err := c.gw.CreateConversation(ctx, st.SessionID)
	if err != nil {
		slog.Error("Could not create conversation", "error", err)
		c.view.Notify(view.NotifyError, "Could not start a new conversation.")
		return fmt.Errorf("could not create conversation: %w", err)
	}
	c.states.Update(func(s *model.RuntimeState) {
		s.ConversationID = conv.ID
		s.LastAssistantMsgID = ""
	})
	c.view.ClearTranscript()
	c.view.RenderWelcome()
	c.refreshHistory(ctx)
	return nil
}

// OpenConversation switches the transcript to another thread of the current
// session.
func (c *Controller) OpenConversation(ctx context.Context, conversationID string) error {
	st := c.states.Get()
	if st.Busy {
		return nil
	}
	if st.Phase == model.PhaseDegraded {
		return apperrors.ErrDegraded
	}

	c.states.Update(func(s *model.RuntimeState) {
		s.ConversationID = conversationID
		s.LastAssistantMsgID = ""
	})
	c.renderTranscript(ctx, conversationID)
	c.view.UpdateHistory(c.Conversations(), conversationID)
	return nil
}

// renderTranscript repaints the transcript area from the server's message
// list. After a successful reconciliation the rendered transcript is
// prefix-equal to the server's.
func (c *Controller) renderTranscript(ctx context.Context, conversationID string) {
	c.view.ClearTranscript()

	messages, err := c.gw.GetMessages(ctx, conversationID)
	if err != nil {
		slog.Error("Could not load transcript", "conversation_id", conversationID, "error", err)
		c.view.Notify(view.NotifyError, "Could not load this conversation.")
		return
	}
	if len(messages) == 0 {
		c.view.RenderWelcome()
		return
	}
	for _, msg := range messages {
		c.view.RenderMessage(msg)
	}
}

// RenameConversation applies the title optimistically and rolls it back if
// the server refuses. Unlike messages, a title is re-editable in place, so
// rollback is safe here.
func (c *Controller) RenameConversation(ctx context.Context, conversationID, title string) error {
	st := c.states.Get()
	if st.Busy {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		c.view.Notify(view.NotifyError, "Title cannot be empty.")
		return fmt.Errorf("%w: title cannot be empty", apperrors.ErrRejected)
	}

	previous, found := c.setTitle(conversationID, title)
	if found {
		c.view.UpdateHistory(c.Conversations(), st.ConversationID)
	}

	if err := c.gw.RenameConversation(ctx, conversationID, title); err != nil {
		if found {
			c.setTitle(conversationID, previous)
			c.view.UpdateHistory(c.Conversations(), st.ConversationID)
		}
		slog.Error("Could not rename conversation", "conversation_id", conversationID, "error", err)
		c.view.Notify(view.NotifyError, "Could not rename the conversation.")
		return fmt.Errorf("could not rename conversation: %w", err)
	}

	c.view.Notify(view.NotifySuccess, "Conversation renamed.")
	return nil
}

// DeleteConversation removes a thread. Deleting the current one clears the
// transcript and leaves no current conversation; the session itself always
// survives a deletion.
func (c *Controller) DeleteConversation(ctx context.Context, conversationID string) error {
	st := c.states.Get()
	if st.Busy {
		return nil
	}

	if err := c.gw.DeleteConversation(ctx, conversationID); err != nil {
		slog.Error("Could not delete conversation", "conversation_id", conversationID, "error", err)
		c.view.Notify(view.NotifyError, "Could not delete the conversation.")
		return fmt.Errorf("could not delete conversation: %w", err)
	}

	kept := c.conversations[:0]
	for _, conv := range c.conversations {
		if conv.ID != conversationID {
			kept = append(kept, conv)
		}
	}
	c.conversations = kept

	if st.ConversationID == conversationID {
		c.states.Update(func(s *model.RuntimeState) {
			s.ConversationID = ""
			s.LastAssistantMsgID = ""
		})
		c.view.ClearTranscript()
		c.view.RenderWelcome()
	}
	c.view.Notify(view.NotifySuccess, "Conversation deleted.")
	c.view.UpdateHistory(c.Conversations(), c.states.Get().ConversationID)
	return nil
}

// SubmitFeedback rates the last assistant reply of this run.
func (c *Controller) SubmitFeedback(ctx context.Context, kind, comment string) error {
	st := c.states.Get()
	if st.Busy {
		return nil
	}
	if st.LastAssistantMsgID == "" {
		c.view.Notify(view.NotifyError, "There is no assistant reply to rate yet.")
		return fmt.Errorf("%w: no assistant reply to rate", apperrors.ErrRejected)
	}

	feedback := model.Feedback{Type: kind, Comment: comment}
	if err := validate.Struct(&feedback); err != nil {
		c.view.Notify(view.NotifyError, "Feedback must be like or dislike, with a comment under 2000 characters.")
		return fmt.Errorf("%w: %v", apperrors.ErrRejected, err)
	}

	if err := c.gw.PostFeedback(ctx, st.LastAssistantMsgID, feedback); err != nil {
		slog.Error("Could not submit feedback", "message_id", st.LastAssistantMsgID, "error", err)
		c.view.Notify(view.NotifyError, "Could not submit your feedback.")
		return fmt.Errorf("could not submit feedback: %w", err)
	}
	c.view.Notify(view.NotifySuccess, "Feedback received. Thank you!")
	return nil
}

// refreshHistory repaints the sidebar. It is a background concern: failures
// are logged, never notified — except the invalid-session signal, which
// routes into the recovery transition.
func (c *Controller) refreshHistory(ctx context.Context) {
	sessionID := c.states.Get().SessionID
	if sessionID == "" {
		return
	}

	list, err := c.gw.ListConversations(ctx, sessionID)
	if errors.Is(err, apperrors.ErrInvalidSession) {
		if rErr := c.recoverSession(ctx); rErr != nil {
			slog.Error("Session recovery failed", "error", rErr)
		}
		return
	}
	if err != nil {
		slog.Warn("Could not refresh conversation list", "error", err)
		return
	}
	c.recoveryUsed = false
	c.setConversations(list)
	c.view.UpdateHistory(c.Conversations(), c.states.Get().ConversationID)
}

// setConversations stores the sidebar cache most-recent-first. The sort is
// stable: equal timestamps keep the server's order.
func (c *Controller) setConversations(list []model.Conversation) {
	c.conversations = make([]model.Conversation, len(list))
	copy(c.conversations, list)
	sort.SliceStable(c.conversations, func(i, j int) bool {
		return c.conversations[i].CreatedAt.After(c.conversations[j].CreatedAt)
	})
}

// setTitle updates a cached conversation title, returning the previous
// value for rollback.
func (c *Controller) setTitle(conversationID, title string) (previous string, found bool) {
	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			previous = c.conversations[i].Title
			c.conversations[i].Title = title
			return previous, true
		}
	}
	return "", false
}

// storedSession reads the persisted identifier, treating storage failure as
// "never had a session".
func (c *Controller) storedSession(ctx context.Context) string {
	stored, err := c.ids.Load(ctx)
	if err != nil {
		slog.Warn("Could not read stored session id", "error", err)
		return ""
	}
	return stored
}
