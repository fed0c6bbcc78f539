package llm

import "context"

// Completer answers one user message under a system instruction. It keeps
// no conversation state between calls.
type Completer interface {
	Complete(ctx context.Context, system string, message string) (string, error)
}
