package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
	"github.com/trezcool/barakah/core/session"
	navsvc "github.com/trezcool/barakah/services/navigator"
	testutil "github.com/trezcool/barakah/tests"
)

type fixture struct {
	svc      *Service
	sessions *session.Manager
	store    *session.MemoryStore
	nav      *navsvc.Console
}

func newFixture(t *testing.T, handler http.HandlerFunc, token string) fixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions, store := testutil.NewSessions(t, token, testutil.Admin())
	nav := testutil.NewNavigator()
	logger := testutil.NewLogger()
	client, err := apiclient.New(srv.URL+"/api", sessions, nav, apiclient.WithLogger(logger))
	require.NoError(t, err)

	validate, _ := core.NewValidator()
	return fixture{
		svc:      NewService(client, sessions, nav, logger, validate),
		sessions: sessions,
		store:    store,
		nav:      nav,
	}
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestService_Login(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantRoute string
		wantUser  session.User
	}{
		{
			name:      "admin goes home",
			body:      `{"token":"tok-admin","user_id":1,"role":"admin"}`,
			wantRoute: core.RouteHome,
			wantUser:  session.User{ID: "1", Role: session.RoleAdmin, Email: "amina@barakah.test"},
		},
		{
			name:      "employee goes to complaints",
			body:      `{"token":"tok-empl","user_id":"7","role":"employee"}`,
			wantRoute: core.RouteComplaints,
			wantUser:  session.User{ID: "7", Role: session.RoleEmployee, Email: "amina@barakah.test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq map[string]string
			var gotAuth string
			fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/login", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				gotAuth = r.Header.Get("Authorization")
				_ = json.NewDecoder(r.Body).Decode(&gotReq)
				respond(http.StatusOK, tt.body)(w, r)
			}, "")
			ctx := context.Background()

			usr, err := fx.svc.Login(ctx, Credentials{Email: "  amina@barakah.test ", Password: "s3cret"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, *usr)
			assert.Equal(t, map[string]string{"email": "amina@barakah.test", "password": "s3cret"}, gotReq)
			assert.Empty(t, gotAuth)

			// Anonymous -> Authenticated, persisted, one navigation
			sess, err := fx.sessions.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, session.Authenticated, sess.State())
			assert.Equal(t, tt.wantUser, *sess.User)
			_, ok, _ := fx.store.Get(ctx, session.KeyToken)
			assert.True(t, ok)
			_, ok, _ = fx.store.Get(ctx, session.KeyUser)
			assert.True(t, ok)
			assert.Equal(t, []string{tt.wantRoute}, fx.nav.History())
		})
	}
}

func TestService_Login_failures(t *testing.T) {
	tests := []struct {
		name        string
		creds       Credentials
		status      int
		body        string
		wantKind    apiclient.Kind
		wantMessage string
	}{
		{
			name:        "bad credentials",
			creds:       Credentials{Email: "a@b.io", Password: "nope"},
			status:      http.StatusUnauthorized,
			body:        `{"message":"Invalid credentials"}`,
			wantKind:    apiclient.KindHTTP,
			wantMessage: "Invalid credentials",
		},
		{
			name:        "unprocessable with error key",
			creds:       Credentials{Email: "a@b.io", Password: "nope"},
			status:      http.StatusUnprocessableEntity,
			body:        `{"error":"account disabled"}`,
			wantKind:    apiclient.KindHTTP,
			wantMessage: "account disabled",
		},
		{
			name:        "no message",
			creds:       Credentials{Email: "a@b.io", Password: "nope"},
			status:      http.StatusUnauthorized,
			body:        ``,
			wantKind:    apiclient.KindHTTP,
			wantMessage: msgLoginFailed,
		},
		{
			name:        "missing token",
			creds:       Credentials{Email: "a@b.io", Password: "pwd"},
			status:      http.StatusOK,
			body:        `{"user_id":1,"role":"admin"}`,
			wantKind:    apiclient.KindMalformed,
			wantMessage: msgInvalidResponse,
		},
		{
			name:        "not an object",
			creds:       Credentials{Email: "a@b.io", Password: "pwd"},
			status:      http.StatusOK,
			body:        `["tok"]`,
			wantKind:    apiclient.KindMalformed,
			wantMessage: msgInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, respond(tt.status, tt.body), "")

			usr, err := fx.svc.Login(context.Background(), tt.creds)
			assert.Nil(t, usr)
			f, ok := apiclient.AsFailure(err)
			require.True(t, ok, "want a *Failure, got %v", err)
			assert.Equal(t, tt.wantKind, f.Kind)
			assert.Equal(t, tt.wantMessage, f.Message)

			state, err := fx.sessions.State(context.Background())
			require.NoError(t, err)
			assert.Equal(t, session.Anonymous, state)
			assert.Empty(t, fx.nav.History(), "a failed login never navigates")
		})
	}
}

func TestService_Login_validation(t *testing.T) {
	var calls int
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) { calls++ }, "")
	validate, translator := core.NewValidator()
	fx.svc.validate = validate

	_, err := fx.svc.Login(context.Background(), Credentials{Email: "not-an-email"})
	require.Error(t, err)
	assert.IsType(t, validator.ValidationErrors{}, err)
	assert.Equal(t, map[string]string{
		"email":    "email must be a valid email address",
		"password": "this field is required",
	}, core.FieldErrors(err, translator))
	assert.Equal(t, 0, calls)
}

func TestService_Logout(t *testing.T) {
	fx := newFixture(t, respond(http.StatusOK, `{}`), "tok")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, fx.svc.Logout(ctx))
		state, err := fx.sessions.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.Anonymous, state)
		assert.Equal(t, 0, fx.store.Len())
	}
	assert.Equal(t, 2, fx.nav.Count(core.RouteLogin))
}

func TestService_Init(t *testing.T) {
	fx := newFixture(t, respond(http.StatusOK, `{}`), "")
	ctx := context.Background()
	require.NoError(t, fx.store.Set(ctx, session.KeyToken, "persisted"))
	require.NoError(t, fx.store.Set(ctx, session.KeyUser, `not json`))

	sess, err := fx.svc.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Authenticated, sess.State())
	assert.Nil(t, sess.User)

	usr, err := fx.svc.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, usr)
}
