package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/barakah/core/session"
)

// SessionStore keeps the session in the `session_kv` table.
type SessionStore struct {
	db *sqlx.DB
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	q := s.db.Rebind(`SELECT value FROM session_kv WHERE name = ?`)
	if err := s.db.GetContext(ctx, &value, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "getting %q", key)
	}
	return value, true, nil
}

func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	q := s.db.Rebind(`INSERT INTO session_kv (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`)
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return errors.Wrapf(err, "setting %q", key)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM session_kv WHERE name IN (?)`, keys)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting session keys")
	}
	return nil
}
