package service

import (
	"errors"
	"fmt"
)

// Error taxonomy. Synchronous callers classify on these with errors.Is
// and errors.As; background work logs and persists instead of raising.
var (
	// ErrNotFound marks an unknown article, translation or profile entry.
	ErrNotFound = errors.New("not found")

	// ErrContentNotReady marks a pipeline invoked before the canonical
	// content exists.
	ErrContentNotReady = errors.New("content not ready")

	// ErrExternalUnavailable marks that no provider or backend was
	// reachable at all.
	ErrExternalUnavailable = errors.New("external service unavailable")

	// ErrExternalFailure marks a reachable provider that returned an
	// error or a malformed result.
	ErrExternalFailure = errors.New("external service failure")

	// ErrTimeout marks an exceeded bounded wait.
	ErrTimeout = errors.New("timed out")
)

// InvalidTransitionError reports an action not permitted from the
// article's current status.
type InvalidTransitionError struct {
	ArticleID uint
	Status    string
	Action    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("article %d: cannot %s from status %q", e.ArticleID, e.Action, e.Status)
}

// DuplicateContentError reports a creation request whose fingerprint
// matches an article that is not in a terminal-failure state.
type DuplicateContentError struct {
	ExistingID  uint
	Fingerprint string
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("duplicate content: article %d already has fingerprint %s", e.ExistingID, e.Fingerprint)
}
