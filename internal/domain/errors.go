package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no attempt has been started for a slug.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUnknownQuestion indicates an answer targets a question id outside the
	// loaded quiz. Callers log and skip; it is never fatal to the session.
	ErrUnknownQuestion = errors.New("unknown question id")
	// ErrInvalidTransition indicates an operation was invoked in a session
	// status that does not permit it.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSnapshotMismatch indicates a restored snapshot belongs to a different
	// quiz than the live session.
	ErrSnapshotMismatch = errors.New("snapshot does not match session quiz")
	// ErrResultNotFound indicates no persisted result exists for a slug.
	ErrResultNotFound = errors.New("result not found")
)
