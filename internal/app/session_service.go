package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"quiz-session-service/internal/domain"
)

// SessionStore abstracts how live sessions are tracked (in-memory, Redis, etc).
type SessionStore interface {
	Put(session *LiveSession)
	Get(sessionID string) (*LiveSession, bool)
	FindByCode(accessCode string) (*LiveSession, bool)
	Delete(sessionID string)
}

// AnswerKeyRepository loads canonical answer keys (from cache/backing store).
type AnswerKeyRepository interface {
	GetQuizKey(ctx context.Context, quizID string) (domain.QuizKey, error)
}

// EventBus fans envelopes out to session subscribers.
type EventBus interface {
	Publish(sessionID string, env domain.Envelope)
	Subscribe(sessionID string, initial ...domain.Envelope) (<-chan domain.Envelope, func())
}

// SubmissionArchive persists accepted submissions for grading disputes.
// Archival is best-effort and never blocks the submission path.
type SubmissionArchive interface {
	Archive(ctx context.Context, submission domain.Submission) error
}

// SessionService contains the session coordination use cases.
type SessionService struct {
	sessions SessionStore
	keys     AnswerKeyRepository
	bus      EventBus
	archive  SubmissionArchive
	now      func() time.Time
}

func NewSessionService(store SessionStore, keys AnswerKeyRepository, bus EventBus) *SessionService {
	return &SessionService{
		sessions: store,
		keys:     keys,
		bus:      bus,
		now:      time.Now,
	}
}

// WithArchive attaches a submission archive.
func (s *SessionService) WithArchive(archive SubmissionArchive) *SessionService {
	s.archive = archive
	return s
}

// CreateSession initiates a session in LOBBY with a fresh access code.
func (s *SessionService) CreateSession(ctx context.Context, teacher domain.Identity, quizID, classroomID string) (domain.Session, error) {
	if teacher.Role != domain.RoleTeacher {
		return domain.Session{}, domain.ErrNotOwner
	}
	// Sessions cannot be opened over unknown quizzes.
	if _, err := s.keys.GetQuizKey(ctx, quizID); err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		ID:          newSessionID(),
		QuizID:      quizID,
		ClassroomID: classroomID,
		TeacherID:   teacher.UserID,
		AccessCode:  GenerateAccessCode(),
		Status:      domain.StatusLobby,
	}
	s.sessions.Put(NewLiveSessionWithClock(session, s.now))
	log.Printf("session %s created by teacher %s for quiz %s", session.ID, teacher.UserID, quizID)
	return session, nil
}

// JoinByCode resolves the access code to its session and joins it. This backs
// the student-facing join endpoint, which carries only the code.
func (s *SessionService) JoinByCode(ctx context.Context, user domain.Identity, accessCode string) (domain.Participant, error) {
	code, err := NormalizeAccessCode(accessCode)
	if err != nil {
		return domain.Participant{}, err
	}
	live, ok := s.sessions.FindByCode(code)
	if !ok {
		return domain.Participant{}, domain.ErrInvalidCode
	}
	return s.Join(ctx, live.ID(), user, code)
}

// Join admits a user by access code. A user who is already a participant
// rejoins idempotently in any state and gets ErrAlreadyJoined, which callers
// treat as success. New joins are blocked while the session is ACTIVE.
func (s *SessionService) Join(ctx context.Context, sessionID string, user domain.Identity, accessCode string) (domain.Participant, error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Participant{}, domain.ErrSessionNotFound
	}

	code, err := NormalizeAccessCode(accessCode)
	if err != nil {
		return domain.Participant{}, err
	}
	if code != live.Snapshot().AccessCode {
		return domain.Participant{}, domain.ErrInvalidCode
	}

	participant, rejoined, count, err := live.join(user.UserID)
	if err != nil {
		return domain.Participant{}, err
	}
	if rejoined {
		return participant, domain.ErrAlreadyJoined
	}

	log.Printf("session %s: user %s joined at %s", sessionID, user.UserID, participant.JoinedAt.Format(time.RFC3339))
	s.bus.Publish(sessionID, domain.Envelope{Kind: domain.EventJoin, Payload: domain.JoinEvent{
		SessionID: sessionID,
		UserID:    user.UserID,
		JoinedAt:  participant.JoinedAt,
		Count:     count,
	}})
	return participant, nil
}

// Start transitions LOBBY or PAUSED to ACTIVE.
func (s *SessionService) Start(ctx context.Context, sessionID string, caller domain.Identity) (domain.Session, error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, err := live.start(caller.UserID)
	if err != nil {
		return domain.Session{}, err
	}
	log.Printf("session %s: started by %s at %s", sessionID, caller.UserID, s.now().Format(time.RFC3339))
	s.publishLifecycle(sessionID, domain.EventStart, session.Status)
	return session, nil
}

// Pause suspends an ACTIVE session. No event is broadcast; the pausing
// teacher is the only observer who acts on it.
func (s *SessionService) Pause(ctx context.Context, sessionID string, caller domain.Identity) (domain.Session, error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, err := live.pause(caller.UserID)
	if err != nil {
		return domain.Session{}, err
	}
	log.Printf("session %s: paused by %s at %s", sessionID, caller.UserID, s.now().Format(time.RFC3339))
	return session, nil
}

// Resume is the named PAUSED→ACTIVE edge.
func (s *SessionService) Resume(ctx context.Context, sessionID string, caller domain.Identity) (domain.Session, error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, err := live.resume(caller.UserID)
	if err != nil {
		return domain.Session{}, err
	}
	log.Printf("session %s: resumed by %s at %s", sessionID, caller.UserID, s.now().Format(time.RFC3339))
	s.publishLifecycle(sessionID, domain.EventStart, session.Status)
	return session, nil
}

// End completes the session; idempotent when already COMPLETED. After End,
// join and submit fail fast with the completed error.
func (s *SessionService) End(ctx context.Context, sessionID string, caller domain.Identity) (domain.Session, error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, transitioned, err := live.end(caller.UserID)
	if err != nil {
		return domain.Session{}, err
	}
	if transitioned {
		log.Printf("session %s: ended by %s at %s", sessionID, caller.UserID, session.EndedAt.Format(time.RFC3339))
		s.publishLifecycle(sessionID, domain.EventEnd, session.Status)
	}
	return session, nil
}

// Submit grades the participant's answers. The first accepted submission is
// final: retries return the stored record with ErrAlreadySubmitted so clients
// can re-display the score without double-counting.
func (s *SessionService) Submit(ctx context.Context, sessionID string, user domain.Identity, answers []domain.QuestionAnswer) (domain.Submission, error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Submission{}, domain.ErrSessionNotFound
	}

	quizKey, err := s.keys.GetQuizKey(ctx, live.Snapshot().QuizID)
	if err != nil {
		return domain.Submission{}, err
	}

	submission, submittedCount, err := live.submit(user.UserID, answers, quizKey.Keys)
	if err != nil {
		return submission, err
	}

	log.Printf("session %s: user %s submitted at %s (score %d/%d)",
		sessionID, user.UserID, submission.SubmittedAt.Format(time.RFC3339),
		submission.Summary.TotalScore, submission.Summary.MaxScore)

	s.bus.Publish(sessionID, domain.Envelope{Kind: domain.EventSubmit, Payload: domain.SubmitEvent{
		SessionID:   sessionID,
		UserID:      user.UserID,
		TotalScore:  submission.Summary.TotalScore,
		MaxScore:    submission.Summary.MaxScore,
		Percentage:  submission.Summary.Percentage,
		SubmittedAt: submission.SubmittedAt,
		Submitted:   submittedCount,
		Expected:    live.participantCount(),
	}})

	if s.archive != nil {
		// Fire-and-forget: the broadcast means "the event happened", not
		// "the record is durably stored".
		go func(sub domain.Submission) {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.archive.Archive(archiveCtx, sub); err != nil {
				log.Printf("session %s: archive submission for %s: %v", sub.SessionID, sub.UserID, err)
			}
		}(submission)
	}
	return submission, nil
}

// Scoreboard returns the ranked entries derived from accepted submissions.
func (s *SessionService) Scoreboard(ctx context.Context, sessionID string) ([]domain.ScoreboardEntry, error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return live.scoreboard(), nil
}

// Subscribe opens an event stream for the session. The first frame is a
// SNAPSHOT of the current scoreboard so reconnecting observers converge
// without replaying missed events. The caller must invoke cancel.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Envelope, func(), error) {
	live, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	snapshot := domain.Envelope{Kind: domain.EventSnapshot, Payload: live.snapshotEvent()}
	ch, cancel := s.bus.Subscribe(sessionID, snapshot)
	return ch, cancel, nil
}

func (s *SessionService) publishLifecycle(sessionID string, kind domain.EventKind, status domain.SessionStatus) {
	s.bus.Publish(sessionID, domain.Envelope{Kind: kind, Payload: domain.LifecycleEvent{
		SessionID: sessionID,
		Status:    status,
		At:        s.now(),
	}})
}

const accessCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateAccessCode returns a fresh 6-character uppercase alphanumeric code.
func GenerateAccessCode() string {
	buf := make([]byte, domain.AccessCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("access code entropy unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = accessCodeCharset[int(b)%len(accessCodeCharset)]
	}
	return string(buf)
}

// NormalizeAccessCode uppercases and validates the shape of a submitted code.
func NormalizeAccessCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != domain.AccessCodeLength {
		return "", domain.ErrInvalidCode
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", domain.ErrInvalidCode
		}
	}
	return code, nil
}

func newSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("session id entropy unavailable: " + err.Error())
	}
	return "qs-" + hex.EncodeToString(buf)
}
