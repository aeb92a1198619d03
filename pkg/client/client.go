// Package client is the typed HTTP client for the commissions-management
// REST service: generic CRUD and listing over schema-described resources,
// versioned-resource operations, and pipeline job submission.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/tallyware/tally/pkg/filter"
	"github.com/tallyware/tally/pkg/resource"
	"github.com/tallyware/tally/pkg/schema"
)

// Listing page bounds enforced by the remote service.
const (
	MinPageSize = 1
	MaxPageSize = 100

	defaultPageSize = 50
)

// Query parameter names of the remote API.
const (
	paramFilter      = "$filter"
	paramOrderBy     = "orderBy"
	paramTop         = "top"
	paramExpand      = "expand"
	paramInlineCount = "inlineCount"
	paramStartDate   = "startDate"
	paramEndDate     = "endDate"
)

const wireDateLayout = "2006-01-02"

// Statuses accepted per method; anything else (bar 400-class payloads) is a
// ResponseError.
var requiredStatus = map[string][]int{
	http.MethodGet:    {http.StatusOK},
	http.MethodPost:   {http.StatusOK, http.StatusCreated, http.StatusNotModified},
	http.MethodPut:    {http.StatusOK, http.StatusNotModified},
	http.MethodDelete: {http.StatusOK},
}

// Config holds client configuration.
type Config struct {
	// Tenant is the tenant identifier; the host becomes
	// https://<tenant>.<Domain>. Ignored when BaseURL is set.
	Tenant string

	// Domain is the service domain appended to the tenant
	// (default: callidusondemand.com).
	Domain string

	// BaseURL overrides tenant-based host construction.
	BaseURL string

	// Auth supplies request credentials.
	Auth Authenticator

	// Timeout bounds each HTTP exchange (default: 60s).
	Timeout time.Duration

	// MaxRetries bounds transport-level connection retries (default: 3).
	// HTTP error statuses are never retried.
	MaxRetries uint64

	// HTTPClient optionally replaces the default HTTP client.
	HTTPClient *http.Client

	// Transport optionally replaces the whole HTTP layer; tests use this.
	Transport Transport

	// Registry supplies resource descriptors (default: schema.Builtin()).
	Registry *schema.Registry

	// Logger (optional).
	Logger hclog.Logger
}

// Client talks to one tenant of the remote service. It is safe for
// concurrent use; it holds no per-call state.
type Client struct {
	transport Transport
	registry  *schema.Registry
	codec     *resource.Codec
	logger    hclog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Registry == nil {
		cfg.Registry = schema.Builtin()
	}

	transport := cfg.Transport
	if transport == nil {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			if cfg.Tenant == "" {
				return nil, fmt.Errorf("either tenant or base URL is required")
			}
			domain := cfg.Domain
			if domain == "" {
				domain = "callidusondemand.com"
			}
			baseURL = fmt.Sprintf("https://%s.%s", cfg.Tenant, domain)
		}
		var err error
		transport, err = NewTransport(TransportConfig{
			BaseURL:    baseURL,
			Auth:       cfg.Auth,
			HTTPClient: cfg.HTTPClient,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Logger:     cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger.Named("client")
	return &Client{
		transport: transport,
		registry:  cfg.Registry,
		codec:     resource.NewCodec(cfg.Registry, logger),
		logger:    logger,
	}, nil
}

// Registry returns the schema registry the client resolves types against.
func (c *Client) Registry() *schema.Registry { return c.registry }

// Codec returns the wire codec, shared with callers that decode stored
// payloads offline.
func (c *Client) Codec() *resource.Codec { return c.codec }

// request performs one exchange and applies the status policy: expected
// statuses pass, 304 on writes maps to ErrNotModified, 400-class payloads
// decode into RequestError, everything else is a ResponseError.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any) (map[string]any, error) {
	status, raw, err := c.transport.Execute(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotModified &&
		(method == http.MethodPost || method == http.MethodPut) {
		return nil, ErrNotModified
	}

	if !statusAllowed(method, status) && status != http.StatusBadRequest {
		return nil, &ResponseError{Status: status, Message: strings.TrimSpace(string(raw))}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ResponseError{Status: status,
			Message: fmt.Sprintf("undecodable payload: %v", err)}
	}

	if status == http.StatusBadRequest {
		return nil, &RequestError{Status: status, Data: payload}
	}
	return payload, nil
}

func statusAllowed(method string, status int) bool {
	for _, allowed := range requiredStatus[method] {
		if status == allowed {
			return true
		}
	}
	return false
}

// Create creates a new resource. Required fields are checked locally before
// any remote call; the remote already-exists and missing-field rejections
// map to AlreadyExistsError and MissingFieldError.
func (c *Client) Create(ctx context.Context, rec *resource.Record) (*resource.Record, error) {
	desc := rec.Descriptor()
	c.logger.Debug("create", "resource", desc.Name)

	if err := c.checkRequired(rec); err != nil {
		return nil, err
	}

	payload := c.codec.Encode(rec, false)
	response, err := c.request(ctx, http.MethodPost, desc.Endpoint, nil, []any{payload})
	if err != nil {
		return nil, c.mapWriteError(desc, err)
	}
	return c.firstItem(desc, response)
}

// Update updates an existing resource. A not-modified response returns the
// submitted record unchanged.
func (c *Client) Update(ctx context.Context, rec *resource.Record) (*resource.Record, error) {
	desc := rec.Descriptor()
	c.logger.Debug("update", "resource", desc.Name, "seq", rec.Seq)

	payload := c.codec.Encode(rec, true)
	response, err := c.request(ctx, http.MethodPut, desc.Endpoint, nil, []any{payload})
	if err != nil {
		if errors.Is(err, ErrNotModified) {
			return rec, nil
		}
		return nil, c.mapWriteError(desc, err)
	}
	return c.firstItem(desc, response)
}

// Delete deletes the resource with the given sequence identifier.
func (c *Client) Delete(ctx context.Context, desc *schema.Descriptor, seq string) error {
	if seq == "" {
		return fmt.Errorf("%s has no sequence identifier", desc.Name)
	}
	c.logger.Debug("delete", "resource", desc.Name, "seq", seq)

	path := fmt.Sprintf("%s(%s)", desc.Endpoint, seq)
	response, err := c.request(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			if message := deleteErrorMessage(reqErr, desc, seq); message != "" {
				return &ResponseError{Status: reqErr.Status, Message: message}
			}
		}
		return err
	}

	envelope, ok := response[desc.Name].(map[string]any)
	if !ok {
		return &ResponseError{Message: fmt.Sprintf("unexpected payload: %v", response)}
	}
	if _, ok := envelope[seq]; !ok {
		return &ResponseError{Message: fmt.Sprintf("unexpected payload: %v", envelope)}
	}
	return nil
}

// Get reads the resource with the given sequence identifier.
func (c *Client) Get(ctx context.Context, desc *schema.Descriptor, seq string) (*resource.Record, error) {
	if seq == "" {
		return nil, fmt.Errorf("%s has no sequence identifier", desc.Name)
	}
	c.logger.Debug("get", "resource", desc.Name, "seq", seq)

	query := url.Values{}
	if expands := desc.Expands(); len(expands) > 0 {
		query.Set(paramExpand, strings.Join(expands, ","))
	}
	path := fmt.Sprintf("%s(%s)", desc.Endpoint, seq)
	response, err := c.request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(desc, response)
}

// GetByID looks a resource up by its user-facing identifier. An absent
// resource is an absent result, not an error.
func (c *Client) GetByID(ctx context.Context, desc *schema.Descriptor, id string) (*resource.Record, error) {
	if desc.IDField == "" {
		return nil, fmt.Errorf("%s has no user-facing identifier field", desc.Name)
	}
	c.logger.Debug("get by id", "resource", desc.Name, "id", id)

	records, err := c.List(ctx, desc, ListOptions{
		Filter: filter.Eq(desc.IDField, id).String(),
		Limit:  2,
	})
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		c.logger.Warn("identifier is not unique", "resource", desc.Name, "id", id)
		return records[0], nil
	}
}

// ListOptions narrow a listing.
type ListOptions struct {
	// Filter is a pre-built filter expression; see pkg/filter.
	Filter string

	// OrderBy lists fields to order by.
	OrderBy []string

	// StartDate and EndDate bound the effective window for versioned types.
	StartDate time.Time
	EndDate   time.Time

	// PageSize is the page size requested from the remote service
	// (default 50, bounds 1..100).
	PageSize int

	// Limit caps the total number of records returned; 0 means all.
	Limit int
}

// List returns all resources matching the options, following pagination
// until exhausted or the limit is reached.
func (c *Client) List(ctx context.Context, desc *schema.Descriptor, opts ListOptions) ([]*resource.Record, error) {
	var records []*resource.Record
	err := c.Each(ctx, desc, opts, func(rec *resource.Record) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Each streams resources matching the options to fn, page by page.
// Returning an error from fn stops the walk.
func (c *Client) Each(ctx context.Context, desc *schema.Descriptor, opts ListOptions, fn func(*resource.Record) error) error {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return fmt.Errorf("page size %d out of bounds [%d, %d]", pageSize, MinPageSize, MaxPageSize)
	}
	if opts.Limit > 0 && opts.Limit < pageSize {
		pageSize = opts.Limit
	}
	c.logger.Debug("list", "resource", desc.Name, "filter", opts.Filter, "page_size", pageSize)

	query := url.Values{}
	query.Set(paramTop, fmt.Sprintf("%d", pageSize))
	if opts.Filter != "" {
		query.Set(paramFilter, opts.Filter)
	}
	if len(opts.OrderBy) > 0 {
		query.Set(paramOrderBy, strings.Join(opts.OrderBy, ","))
	}
	if expands := desc.Expands(); len(expands) > 0 {
		query.Set(paramExpand, strings.Join(expands, ","))
	}
	// The listing endpoint wants slash-separated dates, unlike everything
	// else on the API.
	if !opts.StartDate.IsZero() {
		query.Set(paramStartDate, opts.StartDate.Format("2006/01/02"))
	}
	if !opts.EndDate.IsZero() {
		query.Set(paramEndDate, opts.EndDate.Format("2006/01/02"))
	}

	path := desc.Endpoint
	seen := 0
	for {
		response, err := c.request(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return err
		}

		items, err := envelopeItems(response, desc.Name)
		if err != nil {
			return err
		}
		for _, item := range items {
			rec, err := c.codec.Decode(desc, item)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
			seen++
			if opts.Limit > 0 && seen >= opts.Limit {
				return nil
			}
		}

		next, _ := response["next"].(string)
		if next == "" {
			return nil
		}
		// The next URI is rooted below the api prefix.
		path = "api" + next
		query = nil
	}
}

// First returns the first resource matching the options, or nil when
// nothing matches.
func (c *Client) First(ctx context.Context, desc *schema.Descriptor, opts ListOptions) (*resource.Record, error) {
	opts.Limit = 1
	opts.PageSize = 1
	records, err := c.List(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Count returns the number of resources matching the filter.
func (c *Client) Count(ctx context.Context, desc *schema.Descriptor, filterExpr string) (int, error) {
	query := url.Values{}
	query.Set(paramTop, "1")
	query.Set(paramInlineCount, "true")
	if filterExpr != "" {
		query.Set(paramFilter, filterExpr)
	}
	response, err := c.request(ctx, http.MethodGet, desc.Endpoint, query, nil)
	if err != nil {
		return 0, err
	}
	total, ok := response["total"].(float64)
	if !ok {
		return 0, &ResponseError{Message: fmt.Sprintf("unexpected payload: %v", response)}
	}
	return int(total), nil
}

// checkRequired verifies the record carries every field its schema marks
// required, aggregating all misses.
func (c *Client) checkRequired(rec *resource.Record) error {
	var result *multierror.Error
	for _, name := range rec.Descriptor().RequiredFields() {
		if value, ok := rec.Fields[name]; !ok || value == nil {
			result = multierror.Append(result,
				fmt.Errorf("required field %s is not set", name))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid %s: %w", rec.Descriptor().Name, err)
	}
	return nil
}

// firstItem decodes the first item of a write-response envelope.
func (c *Client) firstItem(desc *schema.Descriptor, response map[string]any) (*resource.Record, error) {
	items, err := envelopeItems(response, desc.Name)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ResponseError{Message: fmt.Sprintf("empty %s envelope", desc.Name)}
	}
	return c.codec.Decode(desc, items[0])
}

// mapWriteError refines a bad-request payload on create/update into the
// already-exists and missing-field errors callers branch on.
func (c *Client) mapWriteError(desc *schema.Descriptor, err error) error {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return err
	}
	rawItems, ok := reqErr.Data[desc.Name].([]any)
	if !ok {
		return &ResponseError{Status: reqErr.Status,
			Message: fmt.Sprintf("unexpected payload: %v", reqErr.Data)}
	}
	for _, rawItem := range rawItems {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		message, fieldErrors := itemErrors(item)
		if message != "" && strings.Contains(message, codeAlreadyExists) {
			return &AlreadyExistsError{Message: message}
		}
		missing := make(map[string]string)
		for field, text := range fieldErrors {
			if strings.Contains(text, codeMissingField) {
				missing[field] = text
			}
		}
		if len(missing) > 0 {
			return &MissingFieldError{Fields: missing}
		}
		if message != "" {
			return &ResponseError{Status: reqErr.Status, Message: message}
		}
	}
	return &ResponseError{Status: reqErr.Status,
		Message: fmt.Sprintf("unexpected error: %v", reqErr.Data)}
}

func deleteErrorMessage(reqErr *RequestError, desc *schema.Descriptor, seq string) string {
	envelope, ok := reqErr.Data[desc.Name].(map[string]any)
	if !ok {
		return ""
	}
	message, _ := envelope[seq].(string)
	return message
}

// envelopeItems unwraps a {name: [items]} response envelope.
func envelopeItems(response map[string]any, name string) ([]map[string]any, error) {
	raw, ok := response[name]
	if !ok {
		return nil, &ResponseError{Message: fmt.Sprintf("unexpected payload: %v", response)}
	}
	rawItems, ok := raw.([]any)
	if !ok {
		return nil, &ResponseError{Message: fmt.Sprintf("unexpected %s envelope: %v", name, raw)}
	}
	items := make([]map[string]any, 0, len(rawItems))
	for _, rawItem := range rawItems {
		item, ok := rawItem.(map[string]any)
		if !ok {
			return nil, &ResponseError{Message: fmt.Sprintf("unexpected %s item: %v", name, rawItem)}
		}
		items = append(items, item)
	}
	return items, nil
}
