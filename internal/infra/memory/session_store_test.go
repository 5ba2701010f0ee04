package memory

import (
	"testing"

	"boardquiz-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	build := func() *app.GameSession { return app.NewGameSession("room-1", app.DefaultSessionConfig(), nil) }

	session, created := store.GetOrCreate("room-1", build)
	if session == nil || !created {
		t.Fatalf("expected a new session")
	}
	again, created := store.GetOrCreate("room-1", build)
	if again != session || created {
		t.Fatalf("expected the existing session to be reused")
	}

	_, cancel := session.Subscribe()
	store.DeleteIfIdle("room-1")
	if _, ok := store.Get("room-1"); !ok {
		t.Fatalf("session with a subscriber must be kept")
	}

	cancel()
	store.DeleteIfIdle("room-1")
	if _, ok := store.Get("room-1"); ok {
		t.Fatalf("expected session removed when idle")
	}
}
