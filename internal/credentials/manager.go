package credentials

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
)

// Parser turns stored properties into a usable credential
type Parser func(data map[string]any) (Credential, error)

// TypeDefinition describes a credential type to editors and the CLI
type TypeDefinition struct {
	Name             string            `json:"name"`
	DisplayName      string            `json:"displayName"`
	DocumentationURL string            `json:"documentationUrl,omitempty"`
	Properties       []nodes.Parameter `json:"properties"`
	parse            Parser
}

// Types returns the built-in credential types
func Types() []TypeDefinition {
	return []TypeDefinition{
		{
			Name:        TypeGPortalAPI,
			DisplayName: "GPortal API",
			Properties: []nodes.Parameter{
				{
					Name:        "token",
					DisplayName: "Bearer Token",
					Type:        nodes.ParameterTypeString,
					Default:     "",
					Password:    true,
					Description: "The bearer token for authentication",
				},
				{
					Name:        "domain",
					DisplayName: "Base URL",
					Type:        nodes.ParameterTypeString,
					Default:     DefaultGPortalDomain,
					Description: "The base URL of the GPortal API",
				},
			},
			parse: func(data map[string]any) (Credential, error) { return ParseGPortalAPI(data) },
		},
		{
			Name:             TypeSocketIOAPI,
			DisplayName:      "SocketIO API",
			DocumentationURL: "https://socket.io/docs/v4/",
			Properties: []nodes.Parameter{
				{
					Name:        "jwtToken",
					DisplayName: "JWT Token",
					Type:        nodes.ParameterTypeString,
					Default:     "",
					Password:    true,
					Description: "The JWT token for SocketIO authentication",
				},
				{
					Name:        "serverUrl",
					DisplayName: "SocketIO Server URL",
					Type:        nodes.ParameterTypeString,
					Default:     DefaultSocketServerURL,
					Description: "The URL of the SocketIO server",
				},
				{
					Name:        "namespace",
					DisplayName: "Namespace",
					Type:        nodes.ParameterTypeString,
					Default:     DefaultSocketNamespace,
					Description: "The SocketIO namespace to connect to",
				},
				{
					Name:        "authQueryParam",
					DisplayName: "Auth Query Parameter",
					Type:        nodes.ParameterTypeString,
					Default:     DefaultSocketQueryParam,
					Description: "The query parameter name for JWT token (default: token)",
				},
			},
			parse: func(data map[string]any) (Credential, error) { return ParseSocketIOAPI(data) },
		},
	}
}

// TestStatus is the outcome of a credential test
type TestStatus string

const (
	TestStatusOK    TestStatus = "OK"
	TestStatusError TestStatus = "Error"
)

// TestResult reports whether a credential was accepted by its service
type TestResult struct {
	Status  TestStatus `json:"status"`
	Message string     `json:"message"`
}

// Manager resolves stored credential properties into typed credentials
type Manager struct {
	types  map[string]TypeDefinition
	store  Store
	client *http.Client
	logger logger.Logger
	mu     sync.RWMutex
}

// NewManager creates a manager over store with the built-in types registered
func NewManager(store Store, log logger.Logger) *Manager {
	m := &Manager{
		types:  make(map[string]TypeDefinition),
		store:  store,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log,
	}
	for _, t := range Types() {
		m.types[t.Name] = t
	}
	return m
}

// WithHTTPClient replaces the client used for credential tests
func (m *Manager) WithHTTPClient(client *http.Client) *Manager {
	m.client = client
	return m
}

// Definitions lists the registered types sorted by name
func (m *Manager) Definitions() []TypeDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := make([]TypeDefinition, 0, len(m.types))
	for _, t := range m.types {
		defs = append(defs, t)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Data returns the stored properties of credential type name
func (m *Manager) Data(ctx context.Context, name string) (map[string]any, error) {
	if _, err := m.definition(name); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, name)
}

// Resolve loads and parses the credential of type name
func (m *Manager) Resolve(ctx context.Context, name string) (Credential, error) {
	def, err := m.definition(name)
	if err != nil {
		return nil, err
	}
	data, err := m.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return def.parse(data)
}

// Parse validates data as a credential of type name without touching the store
func (m *Manager) Parse(name string, data map[string]any) (Credential, error) {
	def, err := m.definition(name)
	if err != nil {
		return nil, err
	}
	return def.parse(data)
}

// Test sends the credential's test request. Failures are reported in the
// result rather than returned, mirroring how editors display them.
func (m *Manager) Test(ctx context.Context, cred Credential) TestResult {
	req, err := cred.TestRequest(ctx)
	if err != nil {
		return TestResult{Status: TestStatusError, Message: errors.Message(err)}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("Credential test request failed", "type", cred.Type(), "error", err)
		return TestResult{Status: TestStatusError, Message: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TestResult{
			Status:  TestStatusError,
			Message: fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
		}
	}

	m.logger.Info("Credential test succeeded", "type", cred.Type())
	return TestResult{Status: TestStatusOK, Message: "Connection successful"}
}

func (m *Manager) definition(name string) (TypeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.types[name]
	if !ok {
		return TypeDefinition{}, errors.NewNotFoundError(fmt.Sprintf("credential type %q is not registered", name))
	}
	return def, nil
}
