// Package credentials defines the gPortalApi and socketIOApi credential types
package credentials

import (
	"context"
	"net/http"
	"strings"
	"time"

	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/validator"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	TypeGPortalAPI  = "gPortalApi"
	TypeSocketIOAPI = "socketIOApi"

	DefaultGPortalDomain    = "http://103.124.95.129:8080/api/v1"
	DefaultSocketServerURL  = "ws://localhost:3000"
	DefaultSocketNamespace  = "/"
	DefaultSocketQueryParam = "token"
)

// Credential injects authentication into outgoing requests
type Credential interface {
	Type() string
	Authenticate(req *http.Request)
	// TestRequest builds the request used to check the credential works.
	TestRequest(ctx context.Context) (*http.Request, error)
}

// GPortalAPI is a bearer token for the GPortal REST API
type GPortalAPI struct {
	Token  string `json:"token" validate:"required"`
	Domain string `json:"domain" validate:"required,http_url"`
}

// ParseGPortalAPI reads a gPortalApi credential from its stored properties
func ParseGPortalAPI(data map[string]any) (*GPortalAPI, error) {
	c := &GPortalAPI{
		Token:  nodes.ToString(data["token"]),
		Domain: stringOr(data["domain"], DefaultGPortalDomain),
	}
	if err := validator.Validate(c); err != nil {
		return nil, errors.NewCredentialError(errors.CodeInvalidCredentials, "invalid gPortalApi credential").
			WithCause(err).WithDetails(err.Error())
	}
	return c, nil
}

func (c *GPortalAPI) Type() string { return TypeGPortalAPI }

// BaseURL returns the domain without a trailing slash
func (c *GPortalAPI) BaseURL() string {
	return strings.TrimRight(c.Domain, "/")
}

func (c *GPortalAPI) Authenticate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
}

// TokenSource exposes the token to oauth2-aware clients
func (c *GPortalAPI) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token, TokenType: "Bearer"})
}

// HTTPClient returns a client that sends the bearer token on every request.
// base supplies the transport and timeout; nil uses http.DefaultClient.
func (c *GPortalAPI) HTTPClient(ctx context.Context, base *http.Client) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	client := oauth2.NewClient(ctx, c.TokenSource())
	if base != nil {
		client.Timeout = base.Timeout
	}
	return client
}

func (c *GPortalAPI) TestRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/auth/profile", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCredential, errors.CodeInvalidCredentials, "invalid gPortalApi domain")
	}
	c.Authenticate(req)
	return req, nil
}

// SocketIOAPI authenticates against a Socket.IO server with a JWT
type SocketIOAPI struct {
	JWTToken       string `json:"jwtToken" validate:"required"`
	ServerURL      string `json:"serverUrl" validate:"required,socket_url"`
	Namespace      string `json:"namespace" validate:"required,startswith=/"`
	AuthQueryParam string `json:"authQueryParam" validate:"required"`
}

// ParseSocketIOAPI reads a socketIOApi credential from its stored properties
func ParseSocketIOAPI(data map[string]any) (*SocketIOAPI, error) {
	c := &SocketIOAPI{
		JWTToken:       nodes.ToString(data["jwtToken"]),
		ServerURL:      stringOr(data["serverUrl"], DefaultSocketServerURL),
		Namespace:      stringOr(data["namespace"], DefaultSocketNamespace),
		AuthQueryParam: stringOr(data["authQueryParam"], DefaultSocketQueryParam),
	}
	if err := validator.Validate(c); err != nil {
		return nil, errors.NewCredentialError(errors.CodeInvalidCredentials, "invalid socketIOApi credential").
			WithCause(err).WithDetails(err.Error())
	}
	return c, nil
}

func (c *SocketIOAPI) Type() string { return TypeSocketIOAPI }

// Authenticate sends the token both as a bearer header and as a query parameter
func (c *SocketIOAPI) Authenticate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.JWTToken)
	q := req.URL.Query()
	q.Set(c.AuthQueryParam, c.JWTToken)
	req.URL.RawQuery = q.Encode()
}

// HTTPBaseURL maps ws and wss server URLs to their http equivalents
func (c *SocketIOAPI) HTTPBaseURL() string {
	u := strings.TrimRight(c.ServerURL, "/")
	switch {
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	}
	return u
}

func (c *SocketIOAPI) TestRequest(ctx context.Context) (*http.Request, error) {
	if err := c.CheckToken(time.Now()); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.HTTPBaseURL()+"/socket.io/", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCredential, errors.CodeInvalidCredentials, "invalid socketIOApi server URL")
	}
	c.Authenticate(req)
	return req, nil
}

// CheckToken verifies the JWT is well formed and not expired at now.
// The signature is not checked; the socket server owns the key.
func (c *SocketIOAPI) CheckToken(now time.Time) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.JWTToken, claims); err != nil {
		return errors.NewCredentialError(errors.CodeInvalidCredentials, "socketIOApi token is not a valid JWT").
			WithCause(err).WithDetails(err.Error())
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return errors.NewCredentialError(errors.CodeInvalidCredentials, "socketIOApi token has a malformed exp claim").
			WithCause(err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return errors.NewCredentialError(errors.CodeTokenExpired, "socketIOApi token has expired").
			WithContext("expired_at", exp.Time.UTC().Format(time.RFC3339))
	}
	return nil
}

func stringOr(v any, fallback string) string {
	s := strings.TrimSpace(nodes.ToString(v))
	if s == "" {
		return fallback
	}
	return s
}
