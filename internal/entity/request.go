// Package entity builds and dispatches requests against the generic entity API
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"n8n-gportal/pkg/errors"
)

// Operation selects the HTTP verb and path shape of a request
type Operation string

const (
	OperationCreate Operation = "create"
	OperationGet    Operation = "get"
	OperationGetAll Operation = "getAll"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Resource selects the base path of a request
type Resource string

const ResourceEntity Resource = "entity"

type route struct {
	method          string
	requiresID      bool
	requiresPayload bool
}

var routes = map[Operation]route{
	OperationCreate: {method: http.MethodPost, requiresPayload: true},
	OperationGet:    {method: http.MethodGet, requiresID: true},
	OperationGetAll: {method: http.MethodGet},
	OperationUpdate: {method: http.MethodPatch, requiresID: true, requiresPayload: true},
	OperationDelete: {method: http.MethodDelete, requiresID: true},
}

var basePaths = map[Resource]string{
	ResourceEntity: "/generic-entities",
}

// ParseOperation validates an operation name
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if _, ok := routes[op]; !ok {
		return "", errors.NewUnsupportedOperationError(s)
	}
	return op, nil
}

// ParseResource validates a resource name
func ParseResource(s string) (Resource, error) {
	res := Resource(s)
	if _, ok := basePaths[res]; !ok {
		return "", errors.NewUnsupportedResourceError(s)
	}
	return res, nil
}

// RequiresID reports whether op addresses a single entity
func (op Operation) RequiresID() bool {
	return routes[op].requiresID
}

// RequiresPayload reports whether op sends an entity body
func (op Operation) RequiresPayload() bool {
	return routes[op].requiresPayload
}

// QueryParameter is one user-supplied name/value pair
type QueryParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FoldQuery flattens ordered pairs into a map. Later duplicates win.
func FoldQuery(params []QueryParameter) map[string]string {
	query := make(map[string]string, len(params))
	for _, p := range params {
		query[p.Name] = p.Value
	}
	return query
}

// Input is everything needed to build one request
type Input struct {
	Operation string
	Resource  string
	EntityID  string
	// Payload is a JSON string, raw JSON bytes, or an already decoded value.
	Payload any
	Query   []QueryParameter
}

// Request is an immutable description of one entity API call
type Request struct {
	operation Operation
	method    string
	path      string
	query     map[string]string
	body      json.RawMessage
}

func (r *Request) Operation() Operation { return r.operation }
func (r *Request) Method() string       { return r.method }
func (r *Request) Path() string         { return r.path }

// Query returns a copy of the folded query parameters
func (r *Request) Query() map[string]string {
	return maps.Clone(r.query)
}

// Body returns the JSON body, or nil for GET and DELETE
func (r *Request) Body() json.RawMessage {
	if r.body == nil {
		return nil
	}
	return bytes.Clone(r.body)
}

// HasBody reports whether the request carries a body
func (r *Request) HasBody() bool {
	return r.body != nil
}

// ResolveURL joins path and query onto baseURL, e.g. "http://host/api/v1"
func ResolveURL(baseURL, path string, query map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeConfiguration, errors.CodeInvalidFormat, "invalid base URL %q", baseURL)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.method, r.path)
}

// Build validates in and produces the request it describes
func Build(in Input) (*Request, error) {
	resource, err := ParseResource(in.Resource)
	if err != nil {
		return nil, err
	}
	op, err := ParseOperation(in.Operation)
	if err != nil {
		return nil, err
	}
	rt := routes[op]

	path := basePaths[resource]
	if rt.requiresID {
		id := strings.TrimSpace(in.EntityID)
		if id == "" {
			return nil, errors.NewParameterResolutionError("entityId", 0).
				WithDetails(fmt.Sprintf("an entity ID is required for %s", op))
		}
		path += "/" + url.PathEscape(id)
	}

	req := &Request{
		operation: op,
		method:    rt.method,
		path:      path,
		query:     FoldQuery(in.Query),
	}

	if rt.method != http.MethodGet && rt.method != http.MethodDelete {
		body, err := marshalPayload(in.Payload)
		if err != nil {
			return nil, err
		}
		req.body = body
	}

	return req, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, missingPayload()
	case string:
		return validJSON([]byte(p))
	case json.RawMessage:
		return validJSON(p)
	case []byte:
		return validJSON(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, errors.NewInvalidPayloadError(err)
		}
		if string(b) == "null" {
			return nil, missingPayload()
		}
		return b, nil
	}
}

// missingPayload also covers payloads that decode to JSON null.
func missingPayload() error {
	return errors.NewParameterResolutionError("entityData", 0).
		WithDetails("entity data is required")
}

func validJSON(b []byte) (json.RawMessage, error) {
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, errors.NewInvalidPayloadError(err)
	}
	if decoded == nil {
		return nil, missingPayload()
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, errors.NewInvalidPayloadError(err)
	}
	return buf.Bytes(), nil
}
