package model

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionCreate carries the marketing attribution captured once, when a
// session is provisioned. All fields are optional on the wire.
type SessionCreate struct {
	LandingPageURL string          `json:"landing_page_url,omitempty"`
	ReferrerURL    string          `json:"referrer_url,omitempty"`
	UTMSource      string          `json:"utm_source,omitempty"`
	UTMMedium      string          `json:"utm_medium,omitempty"`
	UTMCampaign    string          `json:"utm_campaign,omitempty"`
	UTMTerm        string          `json:"utm_term,omitempty"`
	UTMContent     string          `json:"utm_content,omitempty"`
	ClientMetadata json.RawMessage `json:"client_metadata,omitempty"`
}

// NewSession is the server's answer to session provisioning. The backend
// creates the first conversation together with the session, so the client
// never follows up with a separate create call on first run.
type NewSession struct {
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
}

// Conversation stores metadata about one chat thread. A conversation belongs
// to exactly one session; its ID is immutable once the server assigned it.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single turn in a conversation.
//
// Messages created locally (the optimistic user turn, error placeholders)
// carry a client-generated ID until a server round trip supplies the
// authoritative one. Error marks the placeholder rendered in place of an
// assistant turn that never arrived. Preformatted content (the welcome
// banner) bypasses the Markdown render strategy.
type Message struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	Error        bool   `json:"-"`
	Preformatted bool   `json:"-"`
}

// Feedback kinds accepted by the backend.
const (
	FeedbackLike    = "like"
	FeedbackDislike = "dislike"
)

// Feedback rates a single assistant message.
type Feedback struct {
	Type    string `json:"feedback_type" validate:"required,oneof=like dislike"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

// Phase of the synchronization controller's lifecycle.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseProvisioning  Phase = "provisioning"
	PhaseReady         Phase = "ready"
	PhaseRecovering    Phase = "recovering"
	PhaseDegraded      Phase = "degraded"
)

// RuntimeState is the process-wide client state. Only the synchronization
// controller mutates it; front ends read it to decide what to enable.
type RuntimeState struct {
	Phase              Phase
	SessionID          string
	ConversationID     string
	LastAssistantMsgID string
	Busy               bool
}
