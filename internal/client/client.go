// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	commonhttp "loan-origination/internal/common/http"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/models"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultBasePath = "/api/v1"
	DefaultTimeout  = 2 * time.Minute
	RefreshTimeout  = 30 * time.Second
)

// ErrNotAuthenticated is returned when a 401 cannot be recovered because no
// refresh token is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client talks to the loan API on behalf of one user. A 401 triggers a
// single shared token refresh and one replay of the request.
type Client struct {
	baseURL string
	http    *commonhttp.Client
	store   TokenStore
	logger  logger.Logger
	refresh singleflight.Group

	refreshTimeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client and its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = commonhttp.NewClientFrom(hc) }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithRefreshTimeout bounds the shared token refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// New builds a client for host. When host carries no path the default API
// base path is appended.
func New(host string, store TokenStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api host: %w", err)
	}
	if u.Path == "" {
		u.Path = DefaultBasePath
	}
	if store == nil {
		store = NewMemoryStore()
	}

	c := &Client{
		baseURL: u.String(),
		http:    commonhttp.NewClient(DefaultTimeout),
		store:   store,
		logger:  logger.NewNoOpLogger(),

		refreshTimeout: RefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// request is replayable: body builds a fresh reader for every attempt.
type request struct {
	method      string
	path        string
	contentType string
	payload     []byte
}

func jsonRequest(method, path string, body interface{}) (request, error) {
	r := request{method: method, path: path}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return r, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		r.payload = raw
		r.contentType = "application/json"
	}
	return r, nil
}

func (c *Client) build(ctx context.Context, r request, token string) (*http.Request, error) {
	var body io.Reader
	if r.payload != nil {
		body = bytes.NewReader(r.payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	token, _ := c.store.Get(KeyAuthToken)
	err := c.send(ctx, r, token, out)

	var statusErr *commonhttp.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	fresh, refreshErr := c.refreshAccess(ctx, token)
	if refreshErr != nil {
		if errors.Is(refreshErr, ErrNotAuthenticated) {
			return err
		}
		return refreshErr
	}
	return c.send(ctx, r, fresh, out)
}

func (c *Client) send(ctx context.Context, r request, token string, out interface{}) error {
	req, err := c.build(ctx, r, token)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	return commonhttp.DecodeJSON(resp, out)
}

// refreshAccess returns a usable access token after a 401 with stale.
// Concurrent callers share one refresh. If another caller already replaced
// stale, its token is reused without a new refresh. The refresh runs detached
// from ctx under its own timeout; ctx only bounds how long this caller waits.
func (c *Client) refreshAccess(ctx context.Context, stale string) (string, error) {
	if current, ok := c.store.Get(KeyAuthToken); ok && current != "" && current != stale {
		return current, nil
	}

	ch := c.refresh.DoChan("refresh", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		refreshToken, ok := c.store.Get(KeyRefreshToken)
		if !ok || refreshToken == "" {
			c.ClearAuth()
			return "", ErrNotAuthenticated
		}

		r, err := jsonRequest(http.MethodPost, "/auth/refresh-tokens", models.RefreshRequest{RefreshToken: refreshToken})
		if err != nil {
			return "", err
		}
		var resp models.AuthResponse
		if err := c.send(ctx, r, "", &resp); err != nil {
			c.logger.Warn("token refresh failed", map[string]interface{}{"error": err.Error()})
			c.ClearAuth()
			return "", fmt.Errorf("refresh tokens: %w", err)
		}
		c.SetAuth(&resp)
		return resp.Tokens.Access.Token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SetAuth stores the tokens and user of an auth response.
func (c *Client) SetAuth(resp *models.AuthResponse) {
	if resp == nil || resp.Tokens.Access.Token == "" {
		return
	}
	c.store.Set(KeyAuthToken, resp.Tokens.Access.Token)
	c.store.Set(KeyRefreshToken, resp.Tokens.Refresh.Token)
	if raw, err := json.Marshal(resp.User); err == nil {
		c.store.Set(KeyUserData, string(raw))
	}
}

func (c *Client) ClearAuth() {
	c.store.Delete(KeyAuthToken)
	c.store.Delete(KeyRefreshToken)
	c.store.Delete(KeyUserData)
}

// CurrentUser returns the stored user, if any.
func (c *Client) CurrentUser() (*models.User, bool) {
	raw, ok := c.store.Get(KeyUserData)
	if !ok || raw == "" {
		return nil, false
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	return &u, true
}

// IsAuthenticated reports whether both a token and a user are stored.
func (c *Client) IsAuthenticated() bool {
	token, _ := c.store.Get(KeyAuthToken)
	_, hasUser := c.CurrentUser()
	return token != "" && hasUser
}

func (c *Client) IsAdmin() bool {
	u, ok := c.CurrentUser()
	return ok && u.Role == models.RoleAdmin
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", models.LoginRequest{Email: email, Password: password})
}

func (c *Client) Register(ctx context.Context, in models.RegisterRequest) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", in)
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*models.AuthResponse, error) {
	r, err := jsonRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	var resp models.AuthResponse
	if err := c.send(ctx, r, "", &resp); err != nil {
		return nil, err
	}
	c.SetAuth(&resp)
	return &resp, nil
}

// Logout revokes the refresh token remotely and always clears local state.
func (c *Client) Logout(ctx context.Context) error {
	defer c.ClearAuth()

	refreshToken, ok := c.store.Get(KeyRefreshToken)
	if !ok || refreshToken == "" {
		return nil
	}
	r, err := jsonRequest(http.MethodPost, "/auth/logout", models.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return c.do(ctx, r, nil)
}

type createApplicationBody struct {
	Data models.ApplicationData `json:"data"`
}

// CreateApplication submits a complete application.
func (c *Client) CreateApplication(ctx context.Context, data models.ApplicationData) (*models.LoanApplication, error) {
	r, err := jsonRequest(http.MethodPost, "/applications", createApplicationBody{Data: data})
	if err != nil {
		return nil, err
	}
	var app models.LoanApplication
	if err := c.do(ctx, r, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *Client) GetApplication(ctx context.Context, id string) (*models.LoanApplication, error) {
	r, _ := jsonRequest(http.MethodGet, "/applications/"+url.PathEscape(id), nil)
	var app models.LoanApplication
	if err := c.do(ctx, r, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *Client) ListApplications(ctx context.Context, page, limit int) (*models.PaginatedResponse[models.LoanApplication], error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	r, _ := jsonRequest(http.MethodGet, "/applications?"+q.Encode(), nil)

	var out models.PaginatedResponse[models.LoanApplication]
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument sends the file as multipart form data. The body is buffered
// so the request can be replayed after a token refresh.
func (c *Client) UploadDocument(ctx context.Context, up models.DocumentUpload) (*models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("type", string(up.Type)); err != nil {
		return nil, err
	}
	if up.ApplicationID != "" {
		if err := mw.WriteField("applicationId", up.ApplicationID); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", up.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	r := request{method: http.MethodPost, path: "/upload", contentType: mw.FormDataContentType(), payload: buf.Bytes()}
	var res models.UploadResult
	if err := c.do(ctx, r, &res); err != nil {
		return nil, err
	}
	return &res.Document, nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	r, _ := jsonRequest(http.MethodDelete, "/upload/"+url.PathEscape(documentID), nil)
	return c.do(ctx, r, nil)
}

// DocumentURL returns a signed download URL for the document.
func (c *Client) DocumentURL(ctx context.Context, documentID string) (string, error) {
	r, _ := jsonRequest(http.MethodGet, "/upload/"+url.PathEscape(documentID)+"/url", nil)
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, r, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
