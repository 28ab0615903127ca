package echoapi

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/barakah/core"
)

type (
	Options struct {
		Address        string
		AppName        string
		Debug          bool
		DisableReqLogs bool
		SecretKey      string
		TokenTTL       time.Duration
		Data           *Data
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
	}

	// Server emulates the complaints API under /api and the school API under /school.
	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
		auth auth
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Validate == nil {
		opts.Validate, opts.Translator = core.NewValidator()
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
		auth: auth{appName: opts.AppName, key: []byte(opts.SecretKey), ttl: opts.TokenTTL},
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV mode
	if !s.opts.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)

	jwt := middleware.JWTWithConfig(s.auth.jwtConfig())
	registerComplaintsAPI(s.app.Group("/api"), jwt, s.auth, s.opts)
	registerSchoolAPI(s.app.Group("/school", jwt), s.opts.Data)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Barakah mock API")
}
