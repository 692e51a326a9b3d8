package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-session-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionStore.
// Notes:
//   - It keeps a local in-memory map of live sessions to reuse the in-process
//     state machine and broadcast logic.
//   - Redis marks session liveness and stores the access code so a sibling
//     instance (or an ops query) can resolve code→session without this
//     process.
//   - For true multi-instance routing you'd pair this with a cross-instance
//     pub/sub projector.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.LiveSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.LiveSession),
	}
}

func (s *SessionStore) Put(session *app.LiveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	// best-effort liveness marker keyed by session, plus code lookup
	snap := session.Snapshot()
	_ = s.client.Set(context.Background(), s.key(snap.ID), snap.AccessCode, s.ttl).Err()
	_ = s.client.Set(context.Background(), s.codeKey(snap.AccessCode), snap.ID, s.ttl).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.LiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

// FindByCode resolves an access code against the local session map. The Redis
// code index is not consulted here: it can name a session id, but the live
// state machine behind that id only exists in this process, so a local miss is
// a miss. ResolveCode stays available for ops queries against the index.
func (s *SessionStore) FindByCode(accessCode string) (*app.LiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.Snapshot().AccessCode == accessCode {
			return session, true
		}
	}
	return nil, false
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	snap := session.Snapshot()
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID), s.codeKey(snap.AccessCode)).Err()
}

// ResolveCode maps an access code to a session id via Redis.
func (s *SessionStore) ResolveCode(ctx context.Context, accessCode string) (string, bool) {
	id, err := s.client.Get(ctx, s.codeKey(accessCode)).Result()
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func (s *SessionStore) codeKey(accessCode string) string {
	return "quiz:session:code:" + accessCode
}
