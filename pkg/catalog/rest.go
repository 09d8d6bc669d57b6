package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/filesetfs/filesetfs/internal/logger"
	"github.com/filesetfs/filesetfs/internal/ratelimiter"
)

// restClient talks JSON over HTTP to the metadata service.
//
// The wire protocol is intentionally small: one GET to load a catalog,
// one POST per operation to resolve a fileset context. Authentication is
// a header applied per request according to the configured strategy; the
// credential handshake itself is owned by the service.
type restClient struct {
	base    *url.URL
	tenant  string
	http    *http.Client
	apply   func(*http.Request)
	limiter *ratelimiter.RateLimiter
}

// errorResponse is the service's error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// contextRequest is the body of a fileset context resolution call.
type contextRequest struct {
	Operation  Operation `json:"operation"`
	SubPath    string    `json:"subPath"`
	ClientType string    `json:"clientType"`
}

func newRESTClient(cfg ClientConfig) (*restClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.ServerURI, "/"))
	if err != nil {
		return nil, &ClientError{
			Code:    ErrConfiguration,
			Message: fmt.Sprintf("invalid metadata server URI %q: %v", cfg.ServerURI, err),
		}
	}

	apply, err := newAuthorizer(cfg)
	if err != nil {
		return nil, err
	}

	return &restClient{
		base:    base,
		tenant:  cfg.Tenant,
		http:    &http.Client{Timeout: 30 * time.Second},
		apply:   apply,
		limiter: ratelimiter.New(cfg.RequestsPerSecond, cfg.RequestBurst),
	}, nil
}

// newAuthorizer builds the per-request header function for the strategy.
// Strategy parameter problems surface here, at connect time.
func newAuthorizer(cfg ClientConfig) (func(*http.Request), error) {
	switch cfg.Auth {
	case "", AuthSimple:
		return func(r *http.Request) {}, nil
	case AuthToken:
		header := "Bearer " + cfg.Token
		return func(r *http.Request) {
			r.Header.Set("Authorization", header)
		}, nil
	case AuthKeytab:
		if cfg.KeytabPath != "" {
			if _, err := os.Stat(cfg.KeytabPath); err != nil {
				return nil, &ClientError{
					Code:    ErrConfiguration,
					Message: fmt.Sprintf("keytab file %q is not readable: %v", cfg.KeytabPath, err),
				}
			}
		}
		principal := cfg.Principal
		return func(r *http.Request) {
			r.Header.Set("X-Fileset-Principal", principal)
		}, nil
	default:
		return nil, &ClientError{
			Code:    ErrConfiguration,
			Message: fmt.Sprintf("unsupported auth type: %q", cfg.Auth),
		}
	}
}

// LoadCatalog fetches the named catalog and returns a handle bound to it.
func (c *restClient) LoadCatalog(ctx context.Context, name string) (CatalogHandle, error) {
	endpoint := fmt.Sprintf("%s/api/tenants/%s/catalogs/%s",
		c.base, url.PathEscape(c.tenant), url.PathEscape(name))

	var payload struct {
		Catalog struct {
			Name     string `json:"name"`
			Provider string `json:"provider"`
		} `json:"catalog"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Catalog.Name == "" {
		return nil, &ClientError{Code: ErrNotFound, Message: "catalog not found", Resource: name}
	}

	logger.Debug("Loaded catalog %q (provider=%s)", payload.Catalog.Name, payload.Catalog.Provider)
	return &restCatalogHandle{client: c, name: payload.Catalog.Name}, nil
}

// Close releases the idle connection pool. Safe to call more than once.
func (c *restClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// restCatalogHandle resolves fileset contexts within one catalog.
type restCatalogHandle struct {
	client *restClient
	name   string
}

func (h *restCatalogHandle) ResolveContext(ctx context.Context, ident ResourceIdentifier, op Operation, subPath string) (*FilesetContext, error) {
	endpoint := fmt.Sprintf("%s/api/tenants/%s/catalogs/%s/schemas/%s/filesets/%s/context",
		h.client.base,
		url.PathEscape(ident.Tenant),
		url.PathEscape(ident.Catalog),
		url.PathEscape(ident.Schema),
		url.PathEscape(ident.Fileset))

	request := contextRequest{
		Operation:  op,
		SubPath:    subPath,
		ClientType: "filesetfs",
	}

	var fsCtx FilesetContext
	if err := h.client.do(ctx, http.MethodPost, endpoint, &request, &fsCtx); err != nil {
		return nil, err
	}
	if fsCtx.ActualPath == "" {
		return nil, &ClientError{
			Code:     ErrUnavailable,
			Message:  "metadata service returned an empty actual path",
			Resource: ident.String(),
		}
	}

	return &fsCtx, nil
}

// do performs one request/response cycle, mapping HTTP status codes onto
// the client error taxonomy. The request body, when non-nil, is JSON.
func (c *restClient) do(ctx context.Context, method, endpoint string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &ClientError{
			Code:    ErrUnavailable,
			Message: fmt.Sprintf("request throttled past deadline: %v", err),
		}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &ClientError{
			Code:    ErrUnavailable,
			Message: fmt.Sprintf("metadata service request failed: %v", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ClientError{
			Code:    ErrUnavailable,
			Message: fmt.Sprintf("failed to read metadata service response: %v", err),
		}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(raw, result); err != nil {
			return &ClientError{
				Code:    ErrUnavailable,
				Message: fmt.Sprintf("failed to decode metadata service response: %v", err),
			}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &ClientError{Code: ErrNotFound, Message: serviceMessage(raw, "not found")}
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return &ClientError{Code: ErrValidation, Message: serviceMessage(raw, "request rejected")}
	default:
		return &ClientError{
			Code:    ErrUnavailable,
			Message: fmt.Sprintf("metadata service returned status %d: %s", resp.StatusCode, serviceMessage(raw, "")),
		}
	}
}

// serviceMessage extracts the error envelope message, falling back to the
// given default when the body is not a recognizable envelope.
func serviceMessage(raw []byte, fallback string) string {
	var envelope errorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	if fallback != "" {
		return fallback
	}
	return strings.TrimSpace(string(raw))
}
