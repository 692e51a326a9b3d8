package domain

import "time"

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	StatusLobby     SessionStatus = "LOBBY"
	StatusActive    SessionStatus = "ACTIVE"
	StatusPaused    SessionStatus = "PAUSED"
	StatusCompleted SessionStatus = "COMPLETED"
)

// AccessCodeLength is the fixed length of session access codes.
const AccessCodeLength = 6

// Role of a validated caller, supplied by the auth gateway.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Identity is the validated (user, role) pair every operation receives.
// It is always passed explicitly; the core never reads ambient user state.
type Identity struct {
	UserID string
	Role   Role
}

// Session holds the authoritative lifecycle record of one quiz session.
type Session struct {
	ID          string        `json:"id"`
	QuizID      string        `json:"quizId"`
	ClassroomID string        `json:"classroomId"`
	TeacherID   string        `json:"teacherId"`
	AccessCode  string        `json:"accessCode"`
	Status      SessionStatus `json:"status"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	EndedAt     *time.Time    `json:"endedAt,omitempty"`
}

// Participant is a user who has joined a session. At most one record exists
// per (session, user); rejoin is idempotent, not an error.
type Participant struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	JoinedAt  time.Time `json:"joinedAt"`
	Submitted bool      `json:"submitted"`
}

// QuestionKind distinguishes the two gradable question types.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindMatching       QuestionKind = "matching"
)

// MatchPair is one association in a matching question. Canonical pairs are
// authored with the quiz and never mutated by grading.
type MatchPair struct {
	ID        string `json:"id,omitempty"`
	LeftText  string `json:"leftText"`
	LeftType  string `json:"leftType,omitempty"`
	RightText string `json:"rightText"`
	RightType string `json:"rightType,omitempty"`
	Points    int    `json:"points"`
}

// AnswerKey is the canonical grading record for a single question.
// Correct/AllowMultiple apply to multiple_choice, Pairs to matching.
type AnswerKey struct {
	QuestionID    string       `json:"questionId"`
	Kind          QuestionKind `json:"kind"`
	Points        int          `json:"points"`
	Correct       []string     `json:"correct,omitempty"`
	AllowMultiple bool         `json:"allowMultiple,omitempty"`
	Pairs         []MatchPair  `json:"pairs,omitempty"`
}

// QuizKey is the full answer key set for one quiz.
type QuizKey struct {
	QuizID string      `json:"quizId"`
	Keys   []AnswerKey `json:"keys"`
}

// Selection is one pre-submit interaction on a multiple-choice question.
// For single-answer questions the temporally last selection is effective.
type Selection struct {
	Value string    `json:"value"`
	At    time.Time `json:"at"`
}

// QuestionAnswer is the submitted payload for one question.
type QuestionAnswer struct {
	QuestionID string      `json:"questionId"`
	Selections []Selection `json:"selections,omitempty"`
	Pairs      []MatchPair `json:"pairs,omitempty"`
}

// Submission is the graded record for one participant. Exactly one accepted
// Submission exists per (session, user); retries return the stored summary.
type Submission struct {
	SessionID   string           `json:"sessionId"`
	UserID      string           `json:"userId"`
	Answers     []QuestionAnswer `json:"answers"`
	Results     []QuestionResult `json:"results"`
	Summary     ScoreSummary     `json:"summary"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// QuestionResult is the per-question grading outcome.
type QuestionResult struct {
	QuestionID    string       `json:"questionId"`
	Kind          QuestionKind `json:"kind"`
	IsCorrect     bool         `json:"isCorrect"`
	PointsAwarded int          `json:"pointsAwarded"`
}

// CategoryStat counts correct/total questions of one kind.
type CategoryStat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// ScoreSummary aggregates a graded submission.
type ScoreSummary struct {
	TotalScore int                           `json:"totalScore"`
	MaxScore   int                           `json:"maxScore"`
	Percentage float64                       `json:"percentage"`
	Breakdown  map[QuestionKind]CategoryStat `json:"breakdown"`
}

// ScoreboardEntry is a ranked view of one participant. Always derived from
// accepted submissions, never stored as a source of truth.
type ScoreboardEntry struct {
	UserID      string    `json:"userId"`
	TotalScore  int       `json:"totalScore"`
	Rank        int       `json:"rank"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// EventKind tags the envelope carried on a session's event stream.
type EventKind string

const (
	EventJoin   EventKind = "JOIN"
	EventStart  EventKind = "START"
	EventSubmit EventKind = "SUBMIT"
	EventEnd    EventKind = "END"
	// EventSnapshot is the initial frame sent to each new subscriber so a
	// reconnecting observer converges without event replay.
	EventSnapshot EventKind = "SNAPSHOT"
)

// Envelope is the typed message published on a session topic.
type Envelope struct {
	Kind    EventKind   `json:"kind"`
	Payload interface{} `json:"payload"`
}

// JoinEvent is the payload broadcast when a participant joins.
type JoinEvent struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	JoinedAt  time.Time `json:"joinedAt"`
	Count     int       `json:"count"`
}

// LifecycleEvent is the payload broadcast on start/pause/resume/end.
type LifecycleEvent struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	At        time.Time     `json:"at"`
}

// SubmitEvent summarizes an accepted submission for teacher-side observers.
type SubmitEvent struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	TotalScore  int       `json:"totalScore"`
	MaxScore    int       `json:"maxScore"`
	Percentage  float64   `json:"percentage"`
	SubmittedAt time.Time `json:"submittedAt"`
	Submitted   int       `json:"submitted"`
	Expected    int       `json:"expected"`
}

// SnapshotEvent carries the current scoreboard to a new subscriber.
type SnapshotEvent struct {
	SessionID  string            `json:"sessionId"`
	Status     SessionStatus     `json:"status"`
	Scoreboard []ScoreboardEntry `json:"scoreboard"`
}
