// Package view defines the rendering surface the synchronization controller
// talks to. The controller never touches a terminal (or any other output)
// directly; it drives this interface, which makes the whole state machine
// testable against a recording fake.
package view

import "tebnegar/client/internal/model"

// NotifyKind distinguishes the two notification styles.
type NotifyKind string

const (
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
)

// View is the capability set a front end must provide.
type View interface {
	// RenderMessage appends one message bubble to the transcript.
	RenderMessage(msg model.Message)
	// RenderWelcome shows the preformatted welcome card on an empty
	// transcript.
	RenderWelcome()
	// ClearTranscript empties the transcript area.
	ClearTranscript()

	ShowTyping()
	HideTyping()

	// UpdateHistory repaints the conversation sidebar. currentID may be
	// empty when no conversation is open.
	UpdateHistory(conversations []model.Conversation, currentID string)

	// SetBusy toggles the input affordances while a round trip is in
	// flight.
	SetBusy(busy bool)

	// Notify surfaces the outcome of a user-triggered action.
	Notify(kind NotifyKind, message string)

	// ShowDegraded permanently disables input and explains why. There is
	// no way back short of restarting the client.
	ShowDegraded(reason string)
}

// RenderStrategy turns assistant content into displayable text. Variants of
// the product differ only in this capability: one renders Markdown, one
// passes text through untouched.
type RenderStrategy interface {
	Render(content string) string
}

// PlainStrategy displays content exactly as received.
type PlainStrategy struct{}

func (PlainStrategy) Render(content string) string { return content }
