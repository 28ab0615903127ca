package auth

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
	"github.com/trezcool/barakah/core/session"
)

const (
	msgLoginFailed     = "Login failed. Please check your credentials."
	msgInvalidResponse = "invalid response from server"
)

type (
	Credentials struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	loginResponse struct {
		Token  string  `json:"token"`
		UserID core.ID `json:"user_id"`
		Role   string  `json:"role"`
	}
)

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email)
	return validate.Struct(c)
}

// Service drives the login and logout flows against the complaints API.
type Service struct {
	client   *apiclient.Client
	sessions *session.Manager
	nav      core.Navigator
	logger   core.Logger
	validate *validator.Validate
}

func NewService(
	client *apiclient.Client,
	sessions *session.Manager,
	nav core.Navigator,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{client: client, sessions: sessions, nav: nav, logger: logger, validate: validate}
}

// Init restores the session persisted by a previous run.
func (svc *Service) Init(ctx context.Context) (session.Session, error) {
	return svc.sessions.Restore(ctx)
}

// Login exchanges credentials for a session token, persists the session and navigates
// employees to the complaints and everybody else home.
func (svc *Service) Login(ctx context.Context, creds Credentials) (*session.User, error) {
	if err := creds.Validate(svc.validate); err != nil {
		return nil, err
	}

	res, err := svc.client.Execute(ctx, apiclient.Post("/login", creds).AsPublic(), apiclient.Raw())
	if err != nil {
		if f, ok := apiclient.AsFailure(err); ok && f.Kind == apiclient.KindHTTP && f.Message == apiclient.GenericMessage(f.Status) {
			f.Message = msgLoginFailed
		}
		return nil, err
	}

	var data loginResponse
	if err := res.Decode(&data); err != nil || data.Token == "" {
		return nil, &apiclient.Failure{Kind: apiclient.KindMalformed, Message: msgInvalidResponse, Err: err}
	}

	usr := session.User{ID: data.UserID, Role: data.Role, Email: creds.Email}
	if err := svc.sessions.Begin(ctx, data.Token, usr); err != nil {
		return nil, err
	}
	svc.logger.Info("user logged in", usr)

	if usr.IsEmployee() {
		svc.nav.Goto(core.RouteComplaints)
	} else {
		svc.nav.GotoHome()
	}
	return &usr, nil
}

// Logout clears the session and navigates to login. Logging out twice is harmless.
func (svc *Service) Logout(ctx context.Context) error {
	if err := svc.sessions.Clear(ctx); err != nil {
		return err
	}
	svc.logger.Info("user logged out")
	svc.nav.GotoLogin()
	return nil
}

// Current returns the signed in user, nil when anonymous or when the cached profile is unreadable.
func (svc *Service) Current(ctx context.Context) (*session.User, error) {
	sess, err := svc.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	return sess.User, nil
}
