package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	store.Put(app.NewLiveSession(domain.Session{
		ID:         "qs-1",
		TeacherID:  "t1",
		AccessCode: "AB12CD",
	}))
	if !mr.Exists("quiz:session:qs-1") {
		t.Fatalf("expected liveness key to be set")
	}
	if !mr.Exists("quiz:session:code:AB12CD") {
		t.Fatalf("expected code index to be set")
	}

	if found, ok := store.FindByCode("AB12CD"); !ok || found.ID() != "qs-1" {
		t.Fatalf("expected code lookup to find qs-1")
	}

	store.Delete("qs-1")
	if mr.Exists("quiz:session:qs-1") || mr.Exists("quiz:session:code:AB12CD") {
		t.Fatalf("expected redis keys removed")
	}
}

func TestFindByCodeIsLocalOnly(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)
	store.Put(app.NewLiveSession(domain.Session{
		ID:         "qs-1",
		TeacherID:  "t1",
		AccessCode: "AB12CD",
	}))

	// A fresh store on the same Redis models a process restart: the code
	// index survives, the live session does not.
	restarted := NewSessionStore(client, time.Minute)
	if _, ok := restarted.FindByCode("AB12CD"); ok {
		t.Fatalf("expected no live session after restart")
	}
	if id, ok := restarted.ResolveCode(context.Background(), "AB12CD"); !ok || id != "qs-1" {
		t.Fatalf("expected code index to still resolve qs-1, got %q %v", id, ok)
	}
}
