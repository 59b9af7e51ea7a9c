// Package llm provides thin clients for the hosted language-model
// providers used by the command interpreter. Both providers are plain
// JSON-over-REST; the clients share the Completer interface so the
// interpreter stays independent of which provider is configured.
package llm

import "context"

// Completer produces a text completion for a prompt. Implementations are
// black-box network calls; callers own timeout and retry policy via ctx.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Configured reports whether the client has credentials. Callers use
	// this to return 503 before attempting a doomed network call.
	Configured() bool
	// Provider names the backing service for status reporting.
	Provider() string
}
