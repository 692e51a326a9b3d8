package app

import (
	"sync"
	"time"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/scoring"
)

// LiveSession is the in-memory authority for one quiz session: lifecycle
// status, participants, and accepted submissions. All mutation goes through
// its mutex so concurrent joins, transitions, and submissions serialize
// deterministically.
type LiveSession struct {
	mu      sync.Mutex
	session domain.Session
	now     func() time.Time

	participants map[string]*domain.Participant
	submissions  map[string]*domain.Submission
}

// NewLiveSession is exported for infrastructure layers that seed sessions.
func NewLiveSession(session domain.Session) *LiveSession {
	return NewLiveSessionWithClock(session, time.Now)
}

// NewLiveSessionWithClock allows deterministic timestamps in tests.
func NewLiveSessionWithClock(session domain.Session, now func() time.Time) *LiveSession {
	if session.Status == "" {
		session.Status = domain.StatusLobby
	}
	return &LiveSession{
		session:      session,
		now:          now,
		participants: make(map[string]*domain.Participant),
		submissions:  make(map[string]*domain.Submission),
	}
}

// ID returns the session id.
func (s *LiveSession) ID() string {
	return s.session.ID
}

// Snapshot returns a copy of the session record.
func (s *LiveSession) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// join admits the user under the lifecycle rules. The returned rejoined flag
// distinguishes the idempotent reconnect case from a fresh admission.
func (s *LiveSession) join(userID string) (domain.Participant, bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.participants[userID]; ok {
		// Rejoin is idempotent in every state, including ACTIVE.
		return *existing, true, len(s.participants), nil
	}

	switch s.session.Status {
	case domain.StatusCompleted:
		return domain.Participant{}, false, 0, domain.ErrSessionCompleted
	case domain.StatusActive:
		// New joins are blocked once the exam has started.
		return domain.Participant{}, false, 0, domain.ErrSessionActive
	}

	participant := &domain.Participant{
		SessionID: s.session.ID,
		UserID:    userID,
		JoinedAt:  s.now(),
	}
	s.participants[userID] = participant
	return *participant, false, len(s.participants), nil
}

func (s *LiveSession) start(callerID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(callerID); err != nil {
		return domain.Session{}, err
	}
	switch s.session.Status {
	case domain.StatusLobby, domain.StatusPaused:
		s.session.Status = domain.StatusActive
		if s.session.StartedAt == nil {
			at := s.now()
			s.session.StartedAt = &at
		}
		return s.session, nil
	default:
		return domain.Session{}, domain.ErrInvalidTransition
	}
}

func (s *LiveSession) pause(callerID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(callerID); err != nil {
		return domain.Session{}, err
	}
	if s.session.Status != domain.StatusActive {
		return domain.Session{}, domain.ErrInvalidTransition
	}
	s.session.Status = domain.StatusPaused
	return s.session, nil
}

func (s *LiveSession) resume(callerID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(callerID); err != nil {
		return domain.Session{}, err
	}
	if s.session.Status != domain.StatusPaused {
		return domain.Session{}, domain.ErrSessionNotPaused
	}
	s.session.Status = domain.StatusActive
	return s.session, nil
}

// end moves to COMPLETED from any state. Ending an already completed session
// is a no-op; the second return reports whether this call made the transition.
func (s *LiveSession) end(callerID string) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(callerID); err != nil {
		return domain.Session{}, false, err
	}
	if s.session.Status == domain.StatusCompleted {
		return s.session, false, nil
	}
	s.session.Status = domain.StatusCompleted
	at := s.now()
	s.session.EndedAt = &at
	return s.session, true, nil
}

// submit grades and stores the first submission for the user. The lock spans
// the status check, the duplicate check, and the store, so a submission
// racing an end transition resolves one way or the other, never half-graded.
func (s *LiveSession) submit(userID string, answers []domain.QuestionAnswer, keys []domain.AnswerKey) (domain.Submission, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.submissions[userID]; ok {
		return *existing, len(s.submissions), domain.ErrAlreadySubmitted
	}

	switch s.session.Status {
	case domain.StatusCompleted:
		return domain.Submission{}, 0, domain.ErrSessionCompleted
	case domain.StatusActive:
	default:
		return domain.Submission{}, 0, domain.ErrSubmissionClosed
	}

	participant, ok := s.participants[userID]
	if !ok {
		return domain.Submission{}, 0, domain.ErrParticipantNotFound
	}

	results, err := scoring.Reconcile(answers, keys)
	if err != nil {
		return domain.Submission{}, 0, err
	}

	submission := &domain.Submission{
		SessionID:   s.session.ID,
		UserID:      userID,
		Answers:     answers,
		Results:     results,
		Summary:     scoring.Summarize(results, keys),
		SubmittedAt: s.now(),
	}
	s.submissions[userID] = submission
	participant.Submitted = true
	return *submission, len(s.submissions), nil
}

// scoreboard ranks the accepted submissions.
func (s *LiveSession) scoreboard() []domain.ScoreboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreboardLocked()
}

func (s *LiveSession) scoreboardLocked() []domain.ScoreboardEntry {
	subs := make([]domain.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		subs = append(subs, *sub)
	}
	return scoring.Rank(subs)
}

// snapshotEvent builds the initial frame for a new subscriber.
func (s *LiveSession) snapshotEvent() domain.SnapshotEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SnapshotEvent{
		SessionID:  s.session.ID,
		Status:     s.session.Status,
		Scoreboard: s.scoreboardLocked(),
	}
}

func (s *LiveSession) participantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

func (s *LiveSession) requireOwnerLocked(callerID string) error {
	if callerID != s.session.TeacherID {
		return domain.ErrNotOwner
	}
	return nil
}
