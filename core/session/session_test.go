package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/barakah/core/session"
	testutil "github.com/trezcool/barakah/tests"
)

type failingStore struct {
	session.Store
}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (failingStore) Delete(context.Context, ...string) error {
	return errors.New("disk on fire")
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	sessions := session.NewManager(store, testutil.NewLogger())

	state, err := sessions.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Anonymous, state)

	usr := testutil.Admin()
	require.NoError(t, sessions.Begin(ctx, "tok-1", usr))

	sess, err := sessions.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, usr, *sess.User)
	assert.True(t, sess.User.IsAdmin())
	assert.Equal(t, session.Authenticated, sess.State())

	raw, ok, _ := store.Get(ctx, session.KeyUser)
	require.True(t, ok)
	assert.JSONEq(t, `{"id": 1, "role": "admin", "email": "admin@barakah.test"}`, raw)

	// clearing twice is a no-op
	for i := 0; i < 2; i++ {
		require.NoError(t, sessions.Clear(ctx))
		state, err = sessions.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.Anonymous, state)
		assert.Equal(t, 0, store.Len())
	}
}

func TestManager_Begin_requiresToken(t *testing.T) {
	sessions := session.NewManager(session.NewMemoryStore(), testutil.NewLogger())
	assert.Equal(t, session.ErrNoToken, sessions.Begin(context.Background(), "", testutil.Admin()))
}

func TestManager_Restore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		data      map[string]string
		wantState session.State
		wantUser  *session.User
	}{
		{
			name:      "nothing persisted",
			wantState: session.Anonymous,
		},
		{
			name:      "token and user",
			data:      map[string]string{"token": "abc", "user": `{"id":"7","role":"employee","email":"e@x.io"}`},
			wantState: session.Authenticated,
			wantUser:  &session.User{ID: "7", Role: session.RoleEmployee, Email: "e@x.io"},
		},
		{
			name:      "corrupt user",
			data:      map[string]string{"token": "abc", "user": `{"id":`},
			wantState: session.Authenticated,
		},
		{
			name:      "token only",
			data:      map[string]string{"token": "abc"},
			wantState: session.Authenticated,
		},
		{
			name:      "user without token",
			data:      map[string]string{"user": `{"id":1,"role":"admin","email":"a@x.io"}`},
			wantState: session.Anonymous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewMemoryStore()
			for k, v := range tt.data {
				require.NoError(t, store.Set(ctx, k, v))
			}
			sess, err := session.NewManager(store, testutil.NewLogger()).Restore(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, sess.State())
			assert.Equal(t, tt.wantUser, sess.User)
		})
	}
}

func TestManager_storeErrors(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewManager(failingStore{}, testutil.NewLogger())

	_, err := sessions.Current(ctx)
	assert.EqualError(t, err, "reading session token: disk on fire")

	_, err = sessions.Token(ctx)
	assert.Error(t, err)

	assert.EqualError(t, sessions.Clear(ctx), "clearing session: disk on fire")
}

func TestManager_Expire(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		token       string // persisted before the call, "" when anonymous
		expire      string
		wantCleared bool
		wantToken   string
	}{
		{name: "same token", token: "tok", expire: "tok", wantCleared: true},
		{name: "replaced token", token: "fresh", expire: "stale", wantToken: "fresh"},
		{name: "already anonymous", expire: "stale", wantCleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, _ := testutil.NewSessions(t, tt.token, testutil.Admin())

			cleared, err := sessions.Expire(ctx, tt.expire)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCleared, cleared)
			token, err := sessions.Token(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}

	t.Run("store error", func(t *testing.T) {
		_, err := session.NewManager(failingStore{}, testutil.NewLogger()).Expire(ctx, "tok")
		assert.EqualError(t, err, "reading session token: disk on fire")
	})
}

func TestUser_roles(t *testing.T) {
	var nilUser *session.User
	assert.False(t, nilUser.IsAdmin())

	tests := []struct {
		role                      string
		admin, teacher, org, empl bool
	}{
		{session.RoleAdmin, true, false, false, false},
		{session.RoleTeacher, false, true, false, false},
		{session.RoleOrganization, false, false, true, false},
		{session.RoleEmployee, false, false, false, true},
		{"janitor", false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			usr := &session.User{Role: tt.role}
			assert.Equal(t, tt.admin, usr.IsAdmin())
			assert.Equal(t, tt.teacher, usr.IsTeacher())
			assert.Equal(t, tt.org, usr.IsOrganization())
			assert.Equal(t, tt.empl, usr.IsEmployee())
		})
	}
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "42",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: exp,
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)

	claims, err := session.ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, exp, claims.ExpiresAt.Unix())
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(time.Now().Add(2*time.Hour)))

	_, err = session.ParseClaims("not-a-jwt")
	assert.Error(t, err)

	assert.False(t, session.Claims{}.Expired(time.Now()))
}
