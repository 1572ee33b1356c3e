// End-to-end tests: the real controller and HTTP gateway against an
// in-process fake of the conversation API. The fake implements the same
// routes and payload shapes as the production backend.
package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tebnegar/client/internal/gateway"
	"tebnegar/client/internal/model"
	"tebnegar/client/internal/state"
	syncctl "tebnegar/client/internal/sync"
	"tebnegar/client/internal/view"
)

const assistantReply = "Please describe duration"

// ---------------------------------------------------------------------------
// fake backend

type wireMessage struct {
	ID         string `json:"id"`
	SenderType string `json:"sender_type"`
	Content    string `json:"content"`
}

type conversationRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []wireMessage `json:"-"`
}

type fakeBackend struct {
	mu            sync.Mutex
	sessions      map[string]bool
	conversations map[string]*conversationRecord
	feedback      map[string]model.Feedback
	endedSessions []string
	clock         time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions:      make(map[string]bool),
		conversations: make(map[string]*conversationRecord),
		feedback:      make(map[string]model.Feedback),
		clock:         time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (b *fakeBackend) tick() time.Time {
	b.clock = b.clock.Add(time.Minute)
	return b.clock
}

func (b *fakeBackend) newConversation(sessionID string) *conversationRecord {
	conv := &conversationRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		CreatedAt: b.tick(),
	}
	b.conversations[conv.ID] = conv
	return conv
}

// truncateTitle mirrors the backend's first-message title derivation: the
// first 35 runes of the user's message, with an ellipsis when cut.
func truncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= 35 {
		return content
	}
	return string(runes[:35]) + "..."
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"detail":"Not found"}`))
}

func respond(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (b *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions/", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			sessionID := uuid.NewString()
			b.sessions[sessionID] = true
			conv := b.newConversation(sessionID)
			respond(w, http.StatusCreated, map[string]string{
				"session_id":      sessionID,
				"conversation_id": conv.ID,
			})
		})

		r.Post("/sessions/{sessionID}/end", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.endedSessions = append(b.endedSessions, chi.URLParam(req, "sessionID"))
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/conversations/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			sessionID := chi.URLParam(req, "sessionID")
			if !b.sessions[sessionID] {
				notFound(w)
				return
			}
			list := make([]*conversationRecord, 0)
			for _, conv := range b.conversations {
				if conv.SessionID == sessionID {
					list = append(list, conv)
				}
			}
			sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
			respond(w, http.StatusOK, list)
		})

		r.Post("/conversations/", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			var body struct {
				SessionID string `json:"session_id"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || !b.sessions[body.SessionID] {
				notFound(w)
				return
			}
			conv := b.newConversation(body.SessionID)
			respond(w, http.StatusCreated, conv)
		})

		r.Patch("/conversations/{conversationID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			conv, ok := b.conversations[chi.URLParam(req, "conversationID")]
			if !ok {
				notFound(w)
				return
			}
			var body struct {
				Title string `json:"title"`
			}
			_ = json.NewDecoder(req.Body).Decode(&body)
			conv.Title = body.Title
			respond(w, http.StatusOK, conv)
		})

		r.Delete("/conversations/{conversationID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			id := chi.URLParam(req, "conversationID")
			if _, ok := b.conversations[id]; !ok {
				notFound(w)
				return
			}
			delete(b.conversations, id)
			respond(w, http.StatusOK, map[string]string{})
		})

		r.Get("/conversations/{conversationID}/messages", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			conv, ok := b.conversations[chi.URLParam(req, "conversationID")]
			if !ok {
				notFound(w)
				return
			}
			respond(w, http.StatusOK, map[string]any{"messages": conv.Messages})
		})

		r.Post("/messages/{conversationID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			conv, ok := b.conversations[chi.URLParam(req, "conversationID")]
			if !ok {
				notFound(w)
				return
			}
			var body struct {
				Content string `json:"content"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				notFound(w)
				return
			}
			if conv.Title == "" {
				conv.Title = truncateTitle(body.Content)
			}
			conv.Messages = append(conv.Messages, wireMessage{
				ID:         uuid.NewString(),
				SenderType: "USER",
				Content:    body.Content,
			})
			reply := wireMessage{
				ID:         uuid.NewString(),
				SenderType: "AI",
				Content:    assistantReply,
			}
			conv.Messages = append(conv.Messages, reply)
			respond(w, http.StatusOK, map[string]string{"id": reply.ID, "content": reply.Content})
		})

		r.Post("/response-feedback/{messageID}", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			var body model.Feedback
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				notFound(w)
				return
			}
			b.feedback[chi.URLParam(req, "messageID")] = body
			respond(w, http.StatusOK, map[string]string{"message": "Feedback received. Thank you!"})
		})
	})
	return r
}

// ---------------------------------------------------------------------------
// client-side test doubles

type memStore struct {
	value string
}

func (m *memStore) Load(context.Context) (string, error)       { return m.value, nil }
func (m *memStore) Save(_ context.Context, id string) error    { m.value = id; return nil }
func (m *memStore) Clear(context.Context) error                { m.value = ""; return nil }
func (m *memStore) Close() error                               { return nil }

type recordingView struct {
	transcript     []model.Message
	welcomeShown   int
	history        []model.Conversation
	notifications  []string
	degradedReason string
}

func (v *recordingView) RenderMessage(msg model.Message) { v.transcript = append(v.transcript, msg) }
func (v *recordingView) RenderWelcome()                  { v.welcomeShown++ }
func (v *recordingView) ClearTranscript()                { v.transcript = nil }
func (v *recordingView) ShowTyping()                     {}
func (v *recordingView) HideTyping()                     {}
func (v *recordingView) SetBusy(bool)                    {}
func (v *recordingView) ShowDegraded(reason string)      { v.degradedReason = reason }
func (v *recordingView) UpdateHistory(conversations []model.Conversation, _ string) {
	v.history = conversations
}
func (v *recordingView) Notify(kind view.NotifyKind, message string) {
	v.notifications = append(v.notifications, string(kind)+": "+message)
}

func newClient(t *testing.T, backend *fakeBackend, ids *memStore) (*syncctl.Controller, *recordingView, *state.Store) {
	srv := httptest.NewServer(backend.router())
	t.Cleanup(srv.Close)

	gw := gateway.NewHTTP(srv.URL+"/api/v1", 5*time.Second)
	v := &recordingView{}
	states := state.New()
	controller := syncctl.New(gw, ids, v, states, model.SessionCreate{
		LandingPageURL: "app://tebnegar/chat",
		UTMSource:      "e2e",
	})
	return controller, v, states
}

// ---------------------------------------------------------------------------
// scenarios

func TestE2E_FullConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	ids := &memStore{}
	controller, v, states := newClient(t, backend, ids)

	// Empty storage: startup provisions session S1 with conversation C1.
	require.NoError(t, controller.Startup(ctx))
	st := states.Get()
	require.NotEmpty(t, st.SessionID)
	require.NotEmpty(t, st.ConversationID)
	sessionS1 := st.SessionID
	conversationC1 := st.ConversationID
	stored, _ := ids.Load(ctx)
	assert.Equal(t, sessionS1, stored)
	assert.Equal(t, 1, v.welcomeShown)

	// First message round trip.
	require.NoError(t, controller.SendMessage(ctx, "I have a fever"))
	require.Len(t, v.transcript, 2)
	assert.Equal(t, model.RoleUser, v.transcript[0].Role)
	assert.Equal(t, "I have a fever", v.transcript[0].Content)
	assert.Equal(t, model.RoleAssistant, v.transcript[1].Role)
	assert.Equal(t, assistantReply, v.transcript[1].Content)

	// Sidebar shows one entry titled from the first user message.
	require.Len(t, v.history, 1)
	assert.Equal(t, "I have a fever", v.history[0].Title)

	// Feedback lands on the assistant reply.
	require.NoError(t, controller.SubmitFeedback(ctx, model.FeedbackDislike, "too vague"))
	assert.Len(t, backend.feedback, 1)

	// Deleting C1 empties the sidebar but keeps the session.
	require.NoError(t, controller.DeleteConversation(ctx, conversationC1))
	assert.Empty(t, v.history)
	assert.Empty(t, states.Get().ConversationID)

	// The next send creates a fresh conversation under S1.
	require.NoError(t, controller.SendMessage(ctx, "still feverish"))
	st = states.Get()
	assert.Equal(t, sessionS1, st.SessionID, "session preserved across conversation deletion")
	assert.NotEmpty(t, st.ConversationID)
	assert.NotEqual(t, conversationC1, st.ConversationID)
	assert.Len(t, backend.sessions, 1, "no second session was ever created")

	// Shutdown sends the end beacon.
	controller.Shutdown(ctx)
	assert.Equal(t, []string{sessionS1}, backend.endedSessions)
}

func TestE2E_LongFirstMessageTitleIsTruncated(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	controller, v, _ := newClient(t, backend, &memStore{})

	require.NoError(t, controller.Startup(ctx))
	long := "I have been coughing for two weeks and my chest hurts when I breathe"
	require.NoError(t, controller.SendMessage(ctx, long))

	require.Len(t, v.history, 1)
	assert.Equal(t, string([]rune(long)[:35])+"...", v.history[0].Title)
	assert.Len(t, []rune(v.history[0].Title), 38)
}

func TestE2E_RestartResumesLatestConversation(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	ids := &memStore{}

	first, _, firstStates := newClient(t, backend, ids)
	require.NoError(t, first.Startup(ctx))
	require.NoError(t, first.SendMessage(ctx, "I have a fever"))
	require.NoError(t, first.NewConversation(ctx))
	require.NoError(t, first.SendMessage(ctx, "My back aches"))
	latest := firstStates.Get().ConversationID

	// A new process over the same storage resumes the latest thread and
	// replays its transcript.
	second, v, states := newClient(t, backend, ids)
	require.NoError(t, second.Startup(ctx))
	assert.Equal(t, firstStates.Get().SessionID, states.Get().SessionID)
	assert.Equal(t, latest, states.Get().ConversationID)
	require.Len(t, v.transcript, 2)
	assert.Equal(t, "My back aches", v.transcript[0].Content)
	assert.Equal(t, assistantReply, v.transcript[1].Content)
	assert.Len(t, backend.sessions, 1)
}

func TestE2E_StaleStoredSessionRecovers(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	ids := &memStore{value: uuid.NewString()} // never provisioned server-side

	controller, v, states := newClient(t, backend, ids)
	require.NoError(t, controller.Startup(ctx))

	st := states.Get()
	assert.Equal(t, model.PhaseReady, st.Phase)
	assert.True(t, backend.sessions[st.SessionID], "a real session replaced the stale one")
	stored, _ := ids.Load(ctx)
	assert.Equal(t, st.SessionID, stored)
	assert.Empty(t, v.degradedReason)
	assert.Len(t, backend.sessions, 1)
}

func TestE2E_RenameIsVisibleOnNextList(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	controller, v, states := newClient(t, backend, &memStore{})

	require.NoError(t, controller.Startup(ctx))
	require.NoError(t, controller.SendMessage(ctx, "I have a fever"))
	conversationID := states.Get().ConversationID

	require.NoError(t, controller.RenameConversation(ctx, conversationID, "Fever, day one"))
	require.Len(t, v.history, 1)
	assert.Equal(t, "Fever, day one", v.history[0].Title)
	assert.Equal(t, "Fever, day one", backend.conversations[conversationID].Title)
}
