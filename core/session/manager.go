package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/barakah/core"
)

var ErrNoToken = errors.New("session token is required")

// Store is a durable key-value storage for the session.
// Deleting a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Manager owns the session persisted in a Store. It reads the store on every call
// so that a session changed by another process is picked up.
type Manager struct {
	store  Store
	logger core.Logger
	mu     sync.Mutex
}

func NewManager(store Store, logger core.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Current returns the persisted session.
// An unreadable user profile is dropped; the token alone keeps the session authenticated.
func (m *Manager) Current(ctx context.Context) (Session, error) {
	token, ok, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return Session{}, errors.Wrap(err, "reading session token")
	}
	if !ok || token == "" {
		return Session{}, nil
	}

	sess := Session{Token: token}
	raw, ok, err := m.store.Get(ctx, KeyUser)
	if err != nil {
		return Session{}, errors.Wrap(err, "reading session user")
	}
	if ok && raw != "" {
		var usr User
		if err := json.Unmarshal([]byte(raw), &usr); err != nil {
			m.logger.Warn(fmt.Sprintf("failed to parse session user: %v", err), err)
		} else {
			sess.User = &usr
		}
	}
	return sess, nil
}

// Token returns the persisted token, "" when anonymous.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, ok, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return "", errors.Wrap(err, "reading session token")
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (m *Manager) State(ctx context.Context) (State, error) {
	token, err := m.Token(ctx)
	if err != nil {
		return Anonymous, err
	}
	return Session{Token: token}.State(), nil
}

// Restore loads the session persisted by a previous run. The token is not validated here,
// an invalid one is only discovered on the first 401.
func (m *Manager) Restore(ctx context.Context) (Session, error) {
	sess, err := m.Current(ctx)
	if err != nil {
		return Session{}, err
	}
	if sess.IsAuthenticated() {
		if sess.User != nil {
			m.logger.Debug("session restored", *sess.User)
		} else {
			m.logger.Debug("session restored without user profile")
		}
	}
	return sess, nil
}

// Begin persists a new session: Anonymous -> Authenticated.
func (m *Manager) Begin(ctx context.Context, token string, usr User) error {
	if token == "" {
		return ErrNoToken
	}
	data, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding session user")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, KeyToken, token); err != nil {
		return errors.Wrap(err, "writing session token")
	}
	if err := m.store.Set(ctx, KeyUser, string(data)); err != nil {
		return errors.Wrap(err, "writing session user")
	}
	return nil
}

// Clear destroys the session: Authenticated -> Anonymous. Clearing an anonymous session is a no-op.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return errors.Wrap(err, "clearing session")
	}
	return nil
}

// Expire clears the session only while it still holds `token`, so that a late 401 on a
// request sent with a replaced token leaves the newer session alone.
// It reports whether the session was cleared.
func (m *Manager) Expire(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return false, errors.Wrap(err, "reading session token")
	}
	if ok && current != token {
		return false, nil
	}
	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return false, errors.Wrap(err, "clearing session")
	}
	return true, nil
}
