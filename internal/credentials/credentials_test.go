package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"n8n-gportal/internal/config"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestParseGPortalAPI(t *testing.T) {
	t.Run("applies default domain", func(t *testing.T) {
		c, err := ParseGPortalAPI(map[string]any{"token": "abc"})
		require.NoError(t, err)
		assert.Equal(t, DefaultGPortalDomain, c.Domain)
		assert.Equal(t, TypeGPortalAPI, c.Type())
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := ParseGPortalAPI(map[string]any{"domain": "http://localhost"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeInvalidCredentials))
		assert.Contains(t, err.Error(), "token is required")
	})

	t.Run("invalid domain", func(t *testing.T) {
		_, err := ParseGPortalAPI(map[string]any{"token": "abc", "domain": "not a url"})
		assert.True(t, errors.IsCode(err, errors.CodeInvalidCredentials))
	})
}

func TestGPortalAPIAuthenticate(t *testing.T) {
	c := &GPortalAPI{Token: "abc", Domain: "http://localhost/api/v1/"}
	req := httptest.NewRequest(http.MethodGet, "http://localhost/api/v1/generic-entities", nil)
	c.Authenticate(req)

	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
	assert.Equal(t, "http://localhost/api/v1", c.BaseURL())
}

func TestGPortalAPIHTTPClient(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := &GPortalAPI{Token: "secret", Domain: srv.URL}
	client := c.HTTPClient(context.Background(), &http.Client{Timeout: time.Second})

	resp, err := client.Get(srv.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, time.Second, client.Timeout)
}

func TestSocketIOAPI(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))

	t.Run("defaults", func(t *testing.T) {
		c, err := ParseSocketIOAPI(map[string]any{"jwtToken": token})
		require.NoError(t, err)
		assert.Equal(t, DefaultSocketServerURL, c.ServerURL)
		assert.Equal(t, "/", c.Namespace)
		assert.Equal(t, "token", c.AuthQueryParam)
	})

	t.Run("rejects non socket URL", func(t *testing.T) {
		_, err := ParseSocketIOAPI(map[string]any{"jwtToken": token, "serverUrl": "ftp://host"})
		assert.True(t, errors.IsCode(err, errors.CodeInvalidCredentials))
	})

	t.Run("authenticate sets header and query", func(t *testing.T) {
		c := &SocketIOAPI{JWTToken: token, ServerURL: "ws://localhost:3000", Namespace: "/", AuthQueryParam: "auth"}
		req := httptest.NewRequest(http.MethodGet, "http://localhost:3000/socket.io/?EIO=4", nil)
		c.Authenticate(req)

		assert.Equal(t, "Bearer "+token, req.Header.Get("Authorization"))
		assert.Equal(t, token, req.URL.Query().Get("auth"))
		assert.Equal(t, "4", req.URL.Query().Get("EIO"))
	})

	t.Run("http base url", func(t *testing.T) {
		assert.Equal(t, "http://localhost:3000", (&SocketIOAPI{ServerURL: "ws://localhost:3000/"}).HTTPBaseURL())
		assert.Equal(t, "https://io.example.com", (&SocketIOAPI{ServerURL: "wss://io.example.com"}).HTTPBaseURL())
		assert.Equal(t, "https://io.example.com", (&SocketIOAPI{ServerURL: "https://io.example.com"}).HTTPBaseURL())
	})
}

func TestSocketIOAPICheckToken(t *testing.T) {
	now := time.Now()

	valid := &SocketIOAPI{JWTToken: signedToken(t, now.Add(time.Minute))}
	assert.NoError(t, valid.CheckToken(now))

	expired := &SocketIOAPI{JWTToken: signedToken(t, now.Add(-time.Minute))}
	assert.True(t, errors.IsCode(expired.CheckToken(now), errors.CodeTokenExpired))

	garbage := &SocketIOAPI{JWTToken: "not-a-jwt"}
	assert.True(t, errors.IsCode(garbage.CheckToken(now), errors.CodeInvalidCredentials))
}

func TestManagerTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/auth/profile" && r.Header.Get("Authorization") == "Bearer good":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/socket.io/" && r.URL.Query().Get("token") != "":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	m := NewManager(NewMemoryStore(), logger.Nop()).WithHTTPClient(srv.Client())
	ctx := context.Background()

	good, err := m.Parse(TypeGPortalAPI, map[string]any{"token": "good", "domain": srv.URL + "/api/v1"})
	require.NoError(t, err)
	assert.Equal(t, TestResult{Status: TestStatusOK, Message: "Connection successful"}, m.Test(ctx, good))

	bad, err := m.Parse(TypeGPortalAPI, map[string]any{"token": "bad", "domain": srv.URL + "/api/v1"})
	require.NoError(t, err)
	assert.Equal(t, TestResult{Status: TestStatusError, Message: "Request failed with status code 401"}, m.Test(ctx, bad))

	socket, err := m.Parse(TypeSocketIOAPI, map[string]any{"jwtToken": signedToken(t, time.Now().Add(time.Hour)), "serverUrl": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, TestStatusOK, m.Test(ctx, socket).Status)

	expired, err := m.Parse(TypeSocketIOAPI, map[string]any{"jwtToken": signedToken(t, time.Now().Add(-time.Hour)), "serverUrl": srv.URL})
	require.NoError(t, err)
	result := m.Test(ctx, expired)
	assert.Equal(t, TestStatusError, result.Status)
	assert.Equal(t, "socketIOApi token has expired", result.Message)
}

func TestManagerResolve(t *testing.T) {
	store := NewMemoryStore()
	store.Put(TypeGPortalAPI, map[string]any{"token": "abc"})
	m := NewManager(store, logger.Nop())
	ctx := context.Background()

	cred, err := m.Resolve(ctx, TypeGPortalAPI)
	require.NoError(t, err)
	assert.Equal(t, "abc", cred.(*GPortalAPI).Token)

	_, err = m.Resolve(ctx, TypeSocketIOAPI)
	assert.True(t, errors.IsCode(err, errors.CodeResourceNotFound))

	_, err = m.Resolve(ctx, "slackApi")
	assert.True(t, errors.IsCode(err, errors.CodeResourceNotFound))

	defs := m.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, TypeGPortalAPI, defs[0].Name)
	assert.Equal(t, TypeSocketIOAPI, defs[1].Name)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	store.Put(TypeGPortalAPI, map[string]any{"token": "abc"})

	data, err := store.Get(context.Background(), TypeGPortalAPI)
	require.NoError(t, err)
	data["token"] = "changed"

	again, err := store.Get(context.Background(), TypeGPortalAPI)
	require.NoError(t, err)
	assert.Equal(t, "abc", again["token"])
}

func TestStoreFromConfig(t *testing.T) {
	cfg := config.FromEnv()
	cfg.GPortal.Token = "env-token"
	cfg.Socket.JWTToken = ""

	store := StoreFromConfig(cfg)
	data, err := store.Get(context.Background(), TypeGPortalAPI)
	require.NoError(t, err)
	assert.Equal(t, "env-token", data["token"])
	assert.Equal(t, cfg.GPortal.BaseURL, data["domain"])

	_, err = store.Get(context.Background(), TypeSocketIOAPI)
	assert.Error(t, err)
}
