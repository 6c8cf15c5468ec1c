package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/jacentio/cloudbridge/bridge"
)

// Session performs HTTP calls against a REST backend and returns decoded payloads.
// A nil payload means the response had no body.
type Session interface {
	Get(ctx context.Context, path string, params url.Values) (any, error)
	Post(ctx context.Context, path string, body any) (any, error)
	Put(ctx context.Context, path string, body any) (any, error)
	Delete(ctx context.Context, path string, body any) (any, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("cloudbridge: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is reports 404 responses as bridge.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == bridge.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// HTTPSession is a Session over net/http.
type HTTPSession struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	logger     *slog.Logger
}

var _ Session = (*HTTPSession)(nil)

// SessionOption configures an HTTPSession.
type SessionOption func(*HTTPSession)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) SessionOption {
	return func(s *HTTPSession) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) SessionOption {
	return func(s *HTTPSession) {
		s.headers.Add(key, value)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *HTTPSession) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHTTPSession creates a session for the backend described by cfg.
func NewHTTPSession(cfg Config, opts ...SessionOption) *HTTPSession {
	cfg.validate()
	s := &HTTPSession{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers:    http.Header{},
		logger:     slog.Default(),
	}
	s.headers.Set("User-Agent", cfg.UserAgent)
	for k, v := range cfg.Headers {
		s.headers.Set(k, v)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get sends a GET request with params as the query string.
func (s *HTTPSession) Get(ctx context.Context, path string, params url.Values) (any, error) {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + params.Encode()
	}
	return s.do(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON with a POST request.
func (s *HTTPSession) Post(ctx context.Context, path string, body any) (any, error) {
	return s.do(ctx, http.MethodPost, path, body)
}

// Put sends body as JSON with a PUT request.
func (s *HTTPSession) Put(ctx context.Context, path string, body any) (any, error) {
	return s.do(ctx, http.MethodPut, path, body)
}

// Delete sends a DELETE request, with body as JSON when non-nil.
func (s *HTTPSession) Delete(ctx context.Context, path string, body any) (any, error) {
	return s.do(ctx, http.MethodDelete, path, body)
}

func (s *HTTPSession) do(ctx context.Context, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for k, values := range s.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	s.logger.Debug("http request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(data),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	payload, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", bridge.ErrMalformedPayload, method, path, err)
	}
	return payload, nil
}
