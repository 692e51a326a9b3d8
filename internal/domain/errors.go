package domain

import "fmt"

// Error is a typed error with the wire code the REST surface exposes.
// Codes M102/M110/M111 are fixed by the consuming clients.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	// ErrInvalidCode is returned when the access code is malformed or does not match.
	ErrInvalidCode = &Error{Code: "M102", Message: "invalid access code"}
	// ErrAlreadyJoined signals an idempotent rejoin; callers treat it as success.
	ErrAlreadyJoined = &Error{Code: "M110", Message: "already joined"}
	// ErrSessionActive is returned when a new user tries to join a running exam.
	ErrSessionActive = &Error{Code: "M111", Message: "session already active, new joins blocked"}

	// ErrInvalidTransition is returned for lifecycle moves the state machine forbids.
	ErrInvalidTransition = &Error{Code: "M120", Message: "invalid session state transition"}
	// ErrSessionCompleted is returned when a session has ended and rejects further calls.
	ErrSessionCompleted = &Error{Code: "M121", Message: "session completed"}
	// ErrNotOwner is returned when a non-owning caller triggers a lifecycle transition.
	ErrNotOwner = &Error{Code: "M122", Message: "only the owning teacher may control the session"}
	// ErrAlreadySubmitted is returned on repeat submissions; the stored score accompanies it.
	ErrAlreadySubmitted = &Error{Code: "M130", Message: "submission already accepted"}
	// ErrSessionNotPaused guards resume.
	ErrSessionNotPaused = &Error{Code: "M123", Message: "session is not paused"}
	// ErrSubmissionClosed is returned when submitting outside the ACTIVE state.
	ErrSubmissionClosed = &Error{Code: "M131", Message: "session is not accepting submissions"}

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = &Error{Code: "M140", Message: "quiz session not found"}
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = &Error{Code: "M141", Message: "participant not found in session"}
	// ErrQuizNotFound indicates the answer key content could not be loaded.
	ErrQuizNotFound = &Error{Code: "M142", Message: "quiz not found"}
	// ErrAnswerKeyNotFound indicates a submitted question id has no canonical key.
	// This is an invariant violation, not an expected client error.
	ErrAnswerKeyNotFound = &Error{Code: "M143", Message: "answer key not found for question"}
)
