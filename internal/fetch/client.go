// Package fetch is the portal's outbound API client: it attaches the
// bearer token, deduplicates concurrent identical reads, caches GET
// payloads, and turns any upstream 401 into a global logout.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/sangbadpatra/sangbadpatra/internal/platform/cache"
)

// ErrUnauthorized is the synthetic error surfaced for any 401 response.
// Callers never see the original response; to them it is just a failed
// request.
var ErrUnauthorized = errors.New("fetch: unauthorized")

// TokenFunc supplies the bearer token for outgoing requests. It may
// return an empty token for anonymous calls.
type TokenFunc func(ctx context.Context) (string, error)

// Config collects the client dependencies.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      *cache.Versioned
	Token      TokenFunc
	// OnUnauthorized runs once per 401 before ErrUnauthorized is
	// returned: clear session state, broadcast the logout.
	OnUnauthorized func(ctx context.Context)
	Logger         *slog.Logger
}

// Client performs JSON requests against the portal API.
type Client struct {
	baseURL        string
	http           *http.Client
	cache          *cache.Versioned
	token          TokenFunc
	onUnauthorized func(ctx context.Context)
	logger         *slog.Logger
	group          singleflight.Group
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		http:           httpClient,
		cache:          cfg.Cache,
		token:          cfg.Token,
		onUnauthorized: cfg.OnUnauthorized,
		logger:         logger,
	}
}

// GetJSON fetches path and decodes the payload into dest. Identical
// concurrent calls share one round trip; responses are cached when a
// cache is configured.
func (c *Client) GetJSON(ctx context.Context, path string, dest interface{}) error {
	if c.cache == nil {
		raw, err := c.get(ctx, path)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	key, err := c.cache.Key(ctx, "get", path)
	if err != nil {
		return err
	}
	return c.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (interface{}, error) {
		raw, err := c.get(ctx, path)
		if err != nil {
			return nil, err
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		return value, nil
	})
}

// PostJSON posts body as JSON and decodes the response into dest when
// dest is non-nil. Writes are never cached or deduplicated.
func (c *Client) PostJSON(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// get deduplicates in-flight GETs by path.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	resultChan := c.group.DoChan(path, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		return c.do(req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.token != nil {
		token, err := c.token(req.Context())
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("upstream unauthorized, forcing logout", slog.String("path", req.URL.Path))
		if c.onUnauthorized != nil {
			c.onUnauthorized(req.Context())
		}
		return nil, ErrUnauthorized
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch: %s %s: status %d", req.Method, req.URL.Path, res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
