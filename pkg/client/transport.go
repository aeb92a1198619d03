package client

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

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// Transport executes one HTTP exchange against the remote service. The
// client never constructs raw socket or TLS state itself; everything above
// this interface is testable without a network.
type Transport interface {
	Execute(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error)
}

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request) error
}

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	Username string
	Password string
}

// Apply sets the basic Authorization header.
func (a BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(a.Username, a.Password)
	return nil
}

// TokenAuth authenticates with OAuth2 bearer tokens from a token source.
// The source owns refresh; cache it with oauth2.ReuseTokenSource.
type TokenAuth struct {
	Source oauth2.TokenSource
}

// Apply sets the bearer Authorization header from the token source.
func (a TokenAuth) Apply(req *http.Request) error {
	token, err := a.Source.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

// TransportConfig holds configuration for the default HTTP transport.
type TransportConfig struct {
	BaseURL    string        // e.g. https://tenant.example.com
	Auth       Authenticator // optional
	HTTPClient *http.Client  // optional, timeout applied when constructed here
	Timeout    time.Duration // request timeout (default: 60s)
	MaxRetries uint64        // connection-error retries (default: 3)
	Logger     hclog.Logger  // optional
}

// httpTransport is the production Transport: JSON in and out, basic or
// bearer auth, and exponential backoff on connection-level failures.
// HTTP-level failures (any status) are never retried here; error-status
// policy belongs to the client layer.
type httpTransport struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
	maxRetries uint64
	logger     hclog.Logger
}

// NewTransport creates the default HTTP transport.
func NewTransport(cfg TransportConfig) (Transport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &httpTransport{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		auth:       cfg.Auth,
		httpClient: cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger.Named("transport"),
	}, nil
}

// Execute performs the request and returns the response status and body.
// A non-2xx status is not an error at this layer; connection failures are
// retried with exponential backoff and surface as ConnectionError.
func (t *httpTransport) Execute(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	requestURL := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	correlationID := uuid.NewString()

	t.logger.Debug("request", "method", method, "path", path, "correlation_id", correlationID)

	var (
		status   int
		respBody []byte
	)
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Correlation-Id", correlationID)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if t.auth != nil {
			if err := t.auth.Apply(req); err != nil {
				return backoff.Permanent(err)
			}
			t.warnExpiringToken(req)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			t.logger.Warn("connection failed, retrying", "method", method, "path", path, "error", err)
			return err
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		status = resp.StatusCode
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return 0, nil, &ConnectionError{Err: err}
	}

	t.logger.Debug("response", "method", method, "path", path,
		"status", status, "correlation_id", correlationID)
	return status, respBody, nil
}

// warnExpiringToken surfaces bearer tokens close to expiry so operators see
// why a long reconciliation might start failing midway. The token is parsed
// without signature verification; only the exp claim is read.
func (t *httpTransport) warnExpiringToken(req *http.Request) {
	header := req.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if remaining := time.Until(exp.Time); remaining < 5*time.Minute {
		t.logger.Warn("bearer token close to expiry", "expires_in", remaining.Round(time.Second))
	}
}
