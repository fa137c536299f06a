// Package webhooks serves the inbound endpoints declared by webhook nodes
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"n8n-gportal/internal/config"
	"n8n-gportal/internal/execution/wait"
	"n8n-gportal/internal/host"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/internal/nodes/createentity"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
	"n8n-gportal/pkg/tracing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// Binding configures one node instance served by the server
type Binding struct {
	NodeType   string
	NodeName   string
	Parameters map[string]any
}

// Run is the workflow data a webhook produced for one execution
type Run struct {
	ExecutionID string
	NodeType    string
	NodeName    string
	// Resumed is set when a restart webhook continued a waiting execution.
	Resumed bool
	Data    [][]nodes.Item
}

// WorkflowStarter continues the workflow with a webhook's output
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, run Run) error
}

// Endpoint is a mounted webhook route
type Endpoint struct {
	Method       string
	Route        string
	NodeType     string
	NodeName     string
	WebhookName  string
	Restart      bool
	ResponseMode nodes.ResponseMode

	response   createentity.WebhookParameters
	node       nodes.WebhookNode
	definition *nodes.NodeDefinition
	parameters map[string]any
}

// Server routes inbound requests to webhook nodes
type Server struct {
	config    *config.WebhookConfig
	registry  *nodes.Registry
	waits     *wait.Registry
	starter   WorkflowStarter
	logger    logger.Logger
	metrics   *metrics.Metrics
	router    chi.Router
	endpoints []Endpoint
}

// Options wire the server's collaborators. Waits, Starter and Metrics may be nil.
type Options struct {
	Config   *config.WebhookConfig
	Registry *nodes.Registry
	// Bindings select the nodes to serve; empty serves every webhook node
	// with its default parameters.
	Bindings []Binding
	Waits    *wait.Registry
	Starter  WorkflowStarter
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

// NewServer resolves every endpoint and builds the router
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Registry == nil {
		return nil, errors.NewConfigurationError("webhook server needs a config and a node registry")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	s := &Server{
		config:   opts.Config,
		registry: opts.Registry,
		waits:    opts.Waits,
		starter:  opts.Starter,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}

	bindings := opts.Bindings
	if len(bindings) == 0 {
		for _, n := range opts.Registry.WebhookNodes() {
			bindings = append(bindings, Binding{NodeType: n.Definition().Name})
		}
	}

	seen := make(map[string]string)
	for _, b := range bindings {
		eps, err := s.resolve(b)
		if err != nil {
			return nil, err
		}
		for _, ep := range eps {
			key := ep.Method + " " + ep.Route
			if other, ok := seen[key]; ok {
				return nil, errors.Newf(errors.ErrorTypeConflict, errors.CodeResourceExists,
					"%s is declared by both %q and %q", key, other, ep.NodeName)
			}
			seen[key] = ep.NodeName
			s.endpoints = append(s.endpoints, ep)
		}
	}

	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) resolve(b Binding) ([]Endpoint, error) {
	node, err := s.registry.Create(b.NodeType)
	if err != nil {
		return nil, err
	}
	wn, ok := node.(nodes.WebhookNode)
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("node '%s' does not serve webhooks", b.NodeType))
	}
	def := wn.Definition()
	name := b.NodeName
	if name == "" {
		name = def.DisplayName
	}

	var eps []Endpoint
	for _, wh := range def.Webhooks {
		path := wh.Path
		if wh.PathParameter != "" {
			call := host.NewWebhookCall(host.WebhookOptions{Definition: def, Parameters: b.Parameters})
			v, err := call.Parameter(wh.PathParameter)
			if err != nil {
				return nil, err
			}
			path = nodes.ToString(v)
		}
		mode := wh.ResponseMode
		if wh.ResponseModeOf != "" {
			if v, ok := nodes.Lookup(b.Parameters, wh.ResponseModeOf); ok && nodes.ToString(v) != "" {
				mode = nodes.ResponseMode(nodes.ToString(v))
			}
		}
		eps = append(eps, Endpoint{
			Method:       strings.ToUpper(wh.HTTPMethod),
			Route:        s.route(path, wh.IsFullPath),
			NodeType:     def.Name,
			NodeName:     name,
			WebhookName:  wh.Name,
			Restart:      wh.RestartWebhook,
			ResponseMode: mode,
			response:     createentity.ParseWebhookParameters(b.Parameters, mode),
			node:         wn,
			definition:   def,
			parameters:   b.Parameters,
		})
	}
	return eps, nil
}

// route mounts full paths at the root and everything else under the base path
func (s *Server) route(path string, fullPath bool) string {
	path = strings.Trim(path, "/")
	if fullPath {
		return "/" + path
	}
	base := strings.TrimRight(s.config.BasePath, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.metrics.Enabled() {
		r.Handle(s.metrics.Path(), s.metrics.Handler())
	}

	for i := range s.endpoints {
		ep := s.endpoints[i]
		r.Method(ep.Method, ep.Route, s.handler(ep))
		s.logger.Info("Webhook registered",
			"method", ep.Method,
			"route", ep.Route,
			"node", ep.NodeName,
			"restart", ep.Restart,
		)
	}
	return r
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.router
}

// Endpoints lists the mounted webhook routes
func (s *Server) Endpoints() []Endpoint {
	return append([]Endpoint(nil), s.endpoints...)
}

func (s *Server) handler(ep Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracing.TraceWebhook(r.Context(), ep.NodeType, ep.Method, ep.Route)
		defer span.End()
		log := s.logger.With("request_id", middleware.GetReqID(ctx), "trace_id", tracing.GetTraceID(ctx))

		status, body, err := s.serve(ctx, ep, w, r)
		if err != nil {
			tracing.AddSpanError(span, err)
			status, body = errorResponse(err)
			log.ErrorContext(ctx, "Webhook failed",
				"node", ep.NodeName,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"error", err,
			)
		} else {
			log.InfoContext(ctx, "Webhook processed",
				"node", ep.NodeName,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		}

		writeJSON(w, status, body)
		s.metrics.RecordHTTPRequest(ep.Method, ep.Route, status, time.Since(start))
	}
}

func (s *Server) serve(ctx context.Context, ep Endpoint, w http.ResponseWriter, r *http.Request) (int, any, error) {
	req, err := s.readRequest(w, r)
	if err != nil {
		return 0, nil, err
	}

	executionID := r.URL.Query().Get("executionId")
	resumed := false
	if ep.Restart && executionID != "" {
		if s.waits == nil {
			return 0, nil, errors.NewConfigurationError("restart webhooks need a wait registry")
		}
		if _, err := s.waits.Waiting(ctx, executionID); err != nil {
			return 0, nil, err
		}
		resumed = true
	}
	if executionID == "" {
		executionID = uuid.NewString()
	}

	call := host.NewWebhookCall(host.WebhookOptions{
		Definition:  ep.definition,
		NodeName:    ep.NodeName,
		ExecutionID: executionID,
		WebhookName: ep.WebhookName,
		Parameters:  ep.parameters,
		Request:     req,
		Logger:      s.logger.With("node", ep.NodeName, "execution_id", executionID),
	})
	resp, err := ep.node.Webhook(ctx, call)
	if err != nil {
		return 0, nil, err
	}

	if s.starter != nil && len(resp.WorkflowData) > 0 {
		run := Run{
			ExecutionID: executionID,
			NodeType:    ep.NodeType,
			NodeName:    ep.NodeName,
			Resumed:     resumed,
			Data:        resp.WorkflowData,
		}
		if err := s.starter.StartWorkflow(ctx, run); err != nil {
			return 0, nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeNodeExecution, "failed to start workflow")
		}
	}

	// The wait is only consumed once the continuation was handed off, so a
	// failed call can be retried.
	if resumed {
		if _, err := s.waits.Resume(ctx, executionID, wait.TriggerWebhook); err != nil {
			return 0, nil, err
		}
	}

	status, body := respond(ep.response, resp)
	return status, body, nil
}

// allEntries answers with every item of the first output
const allEntries = "allEntries"

// respond shapes the answer from the endpoint's response settings. A nil
// body means the response has none.
func respond(settings createentity.WebhookParameters, resp *nodes.WebhookResponse) (int, any) {
	status := createentity.ResponseCode(settings)
	if status < 100 || status > 599 {
		status = http.StatusOK
	}

	started := map[string]any{"message": "Workflow was started"}
	switch createentity.ResponseData(settings) {
	case createentity.NoData:
		return status, nil
	case allEntries:
		if len(resp.WorkflowData) == 0 {
			return status, []map[string]any{}
		}
		entries := make([]map[string]any, 0, len(resp.WorkflowData[0]))
		for _, item := range resp.WorkflowData[0] {
			entries = append(entries, item.JSON)
		}
		return status, entries
	}

	if resp.NoWebhookResponse {
		return status, started
	}
	if len(resp.WorkflowData) > 0 && len(resp.WorkflowData[0]) > 0 {
		return status, resp.WorkflowData[0][0].JSON
	}
	return status, started
}

// readRequest converts r into the node-facing request. Bodies that parse as
// JSON are decoded; anything else is passed on as a string.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (*nodes.WebhookRequest, error) {
	reader := r.Body
	if s.config.MaxBodySize > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.Newf(errors.ErrorTypeValidation, errors.CodeInvalidInput,
				"request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "failed to read request body")
	}
	defer r.Body.Close()

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(key)] = values[0]
		}
	}

	query := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			query[key] = values[0]
		} else {
			query[key] = values
		}
	}

	params := make(map[string]string)
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key != "*" {
				params[key] = rctx.URLParams.Values[i]
			}
		}
	}

	return &nodes.WebhookRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: headers,
		Params:  params,
		Query:   query,
		Body:    decodeBody(raw),
	}, nil
}

func decodeBody(raw []byte) any {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func errorResponse(err error) (int, map[string]any) {
	appErr := errors.GetAppError(err)
	if appErr == nil {
		return http.StatusInternalServerError, map[string]any{"error": err.Error()}
	}
	return appErr.HTTPStatus(), map[string]any{
		"error": errors.Message(err),
		"code":  appErr.Code,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting webhook server", "addr", server.Addr, "endpoints", len(s.endpoints))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Stopping webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
