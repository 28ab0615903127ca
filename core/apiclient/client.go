package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/session"
)

const HeaderRequestID = "X-Request-ID"

var errTokenInPath = errors.New("request path must not carry the session token")

// Client is the session-guarded client of one upstream API.
// It attaches the session token, tears the session down on 401 and normalizes responses.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *session.Manager
	nav      core.Navigator
	logger   core.Logger
	validate *validator.Validate
	reg      prometheus.Registerer
	metrics  *metrics
	perPage  int
}

type Option func(*Client)

// WithHTTPClient sets the transport. No timeout is added by the client itself.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRegisterer enables the request metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.reg = reg }
}

// WithPerPage sets the page size assumed when a list response carries no pagination.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

func WithValidator(validate *validator.Validate) Option {
	return func(c *Client) { c.validate = validate }
}

// New returns a client of the API served at `baseURL`, eg. http://localhost:8000/api.
func New(baseURL string, sessions *session.Manager, nav core.Navigator, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing base URL %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     http.DefaultClient,
		sessions: sessions,
		nav:      nav,
		logger:   nopLogger{},
		perPage:  DefaultPerPage,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.validate == nil {
		c.validate, _ = core.NewValidator()
	}
	if c.reg != nil {
		c.metrics = newMetrics(c.reg, u.Host+strings.TrimRight(u.Path, "/"))
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) PerPage() int { return c.perPage }

// Execute issues the request described by `d` and unwraps the response following `s`.
//
// Protocol conditions are returned as a *Failure: NetworkError when no response was received,
// Unauthorized on 401 (after the session was cleared and the navigator sent to login),
// ValidationConflict on 409 when `d` declares it, HttpError for any other non-2xx status and
// MalformedResponse for an unparsable body. An invalid descriptor or an unavailable session
// store yields a plain error.
func (c *Client) Execute(ctx context.Context, d Descriptor, s Strategy) (*Result, error) {
	if err := c.validate.Struct(d); err != nil {
		return nil, errors.Wrap(err, "invalid request descriptor")
	}

	var token string
	if !d.Public {
		var err error
		if token, err = c.sessions.Token(ctx); err != nil {
			return nil, err
		}
	}
	if token != "" && carriesToken(d, token) {
		return nil, errTokenInPath
	}

	req, err := c.newRequest(ctx, d, token)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(d.Method, KindNetwork, start)
		c.logger.Error(fmt.Sprintf("%s %s: no response", d.Method, d.Path), err)
		return nil, &Failure{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	// 401 is handled before anything is read from the body.
	if resp.StatusCode == http.StatusUnauthorized && !d.Public {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.metrics.observe(d.Method, KindUnauthorized, start)
		return nil, c.expire(ctx, d, token)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.observe(d.Method, KindNetwork, start)
		c.logger.Error(fmt.Sprintf("%s %s: reading response", d.Method, d.Path), err)
		return nil, &Failure{Kind: KindNetwork, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f := httpFailure(d, resp.StatusCode, body)
		c.metrics.observe(d.Method, f.Kind, start)
		c.logger.Info(fmt.Sprintf("%s %s: %s", d.Method, d.Path, f.Error()))
		return nil, f
	}

	res, err := unwrap(body, s, c.pageDefaults(d))
	if err != nil {
		c.metrics.observe(d.Method, KindMalformed, start)
		c.logger.Error(fmt.Sprintf("%s %s: malformed response", d.Method, d.Path), err)
		return nil, err
	}
	c.metrics.observe(d.Method, 0, start)
	return res, nil
}

func (c *Client) newRequest(ctx context.Context, d Descriptor, token string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + d.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing request path %q", d.Path)
	}
	if len(d.Query) > 0 {
		q := u.Query()
		for key, values := range d.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if d.Body != nil {
		data, err := json.Marshal(d.Body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.New().String())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// expire tears down the session the request was sent with and sends the user to login.
// A session begun since then is kept.
func (c *Client) expire(ctx context.Context, d Descriptor, token string) error {
	c.logger.Warn(fmt.Sprintf("%s %s: unauthorized, clearing session", d.Method, d.Path))
	cleared, err := c.sessions.Expire(ctx, token)
	c.nav.GotoLogin()
	if err != nil {
		c.logger.Error("failed to clear session", err)
		return err
	}
	if !cleared {
		c.logger.Info(fmt.Sprintf("%s %s: session replaced since the request, kept", d.Method, d.Path))
	}
	return &Failure{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: msgSessionExpired}
}

// pageDefaults is the pagination assumed for what a response leaves out: the page and
// per_page asked for in the query, else the first page of the client default size.
func (c *Client) pageDefaults(d Descriptor) Pagination {
	perPage := c.perPage
	if n, ok := Int(d.Query.Get(keyPerPage)); ok && n > 0 {
		perPage = n
	}
	p := DefaultPagination(perPage)
	if n, ok := Int(d.Query.Get(keyPage)); ok && n > 0 {
		p.CurrentPage = n
	}
	return p
}

func httpFailure(d Descriptor, status int, body []byte) *Failure {
	kind := KindHTTP
	if status == http.StatusConflict && d.Conflict {
		kind = KindConflict
	}
	return &Failure{Kind: kind, Status: status, Message: errorMessage(status, body)}
}

// errorMessage reads `message`, then `error`, from a JSON error body.
func errorMessage(status int, body []byte) string {
	var data struct {
		Message interface{} `json:"message"`
		Error   interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &data); err == nil {
		for _, v := range []interface{}{data.Message, data.Error} {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return GenericMessage(status)
}

// GenericMessage is the message of a non-2xx response whose body says nothing.
func GenericMessage(status int) string {
	return fmt.Sprintf("HTTP error %d", status)
}

func carriesToken(d Descriptor, token string) bool {
	if strings.Contains(d.Path, token) {
		return true
	}
	for _, values := range d.Query {
		for _, v := range values {
			if strings.Contains(v, token) {
				return true
			}
		}
	}
	return false
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
