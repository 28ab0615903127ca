package testutil

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/session"
	logsvc "github.com/trezcool/barakah/services/logger"
	navsvc "github.com/trezcool/barakah/services/navigator"
)

// NewLogger returns a disabled Rollbar logger writing nowhere.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), &core.Config{Env: "TEST", TestMode: true})
	logger.Enable(false)
	return logger
}

// NewNavigator returns a console navigator recording the routes it is sent to.
func NewNavigator() *navsvc.Console {
	return navsvc.NewConsole(io.Discard)
}

// NewSessions returns a session manager over a memory store.
// The session is signed in when `token` is not empty.
func NewSessions(t *testing.T, token string, usr session.User) (*session.Manager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	sessions := session.NewManager(store, NewLogger())
	if token != "" {
		if err := sessions.Begin(context.Background(), token, usr); err != nil {
			t.Fatalf("NewSessions() failed: %v", err)
		}
	}
	return sessions, store
}

func Admin() session.User {
	return session.User{ID: "1", Role: session.RoleAdmin, Email: "admin@barakah.test"}
}

func Employee() session.User {
	return session.User{ID: "7", Role: session.RoleEmployee, Email: "employee@barakah.test"}
}
