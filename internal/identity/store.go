// Package identity persists the anonymous session identifier across runs.
// It is the only client-side persistence in the application: conversations
// and messages live in the remote store.
package identity

import "context"

// Store is the durable home of the session identifier. Load returns an
// empty string when no identifier has ever been saved.
//
// Storage failure must be indistinguishable from "never had a session":
// callers treat a Load error as empty and a Save/Clear error as a logged
// no-op, so an unavailable store degrades the client to fresh-visitor
// behavior instead of breaking it.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, sessionID string) error
	Clear(ctx context.Context) error
	Close() error
}

// Discard returns a Store that remembers nothing. It is the fallback used
// when the on-disk store cannot be opened.
func Discard() Store {
	return discardStore{}
}

type discardStore struct{}

func (discardStore) Load(context.Context) (string, error)    { return "", nil }
func (discardStore) Save(context.Context, string) error      { return nil }
func (discardStore) Clear(context.Context) error             { return nil }
func (discardStore) Close() error                            { return nil }
