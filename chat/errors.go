// errors.go defines the error kinds the pipeline can surface.
//
// ValidationError is a client fault and carries the full sandbox
// violation list. AIError covers everything the caller cannot act on
// precisely: unusable model output and statement-timeout executions.
// Its Error() text is safe to show to users; the underlying cause is
// logged, never echoed, since it may leak schema or prompt internals.
package chat

import (
	"strings"
)

// ValidationError reports bad input shape: an empty question, a
// malformed store id, or AI SQL that failed the sandbox rules.
type ValidationError struct {
	Message    string
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Violations, "; ")
}

// AIError wraps a collaborator failure behind a generic, user-safe
// message.
type AIError struct {
	Cause error
}

func (e *AIError) Error() string {
	return "the assistant could not answer this question; please rephrase or try a simpler question"
}

func (e *AIError) Unwrap() error {
	return e.Cause
}
