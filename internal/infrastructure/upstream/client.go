// Package upstream is the REST client for the recruiting platform API:
// lookups, the profile-count aggregate and profile sub-resources.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/pkg/httpx"

	"github.com/rs/zerolog"
)

type SkillRecord struct {
	Name          string `json:"name"`
	CanonicalName string `json:"canonical_name"`
}

type CityRecord struct {
	Name string `json:"name"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type countPayload struct {
	Count int `json:"count"`
}

type identityPayload struct {
	UserID string `json:"user_id"`
}

type Client struct {
	baseURL string
	http    *http.Client
	read    httpx.RetryConfig
	write   httpx.RetryConfig
	logger  zerolog.Logger
}

func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		read:    httpx.DefaultRetryConfig(),
		write:   httpx.SingleAttempt(),
		logger:  logger.With().Str("component", "upstream").Logger(),
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

// WithReadRetry overrides the retry policy used for GET requests.
func (c *Client) WithReadRetry(cfg httpx.RetryConfig) *Client {
	c.read = cfg
	return c
}

func (c *Client) FetchSkills(ctx context.Context, creds auth.Credentials, query string) ([]SkillRecord, error) {
	q := url.Values{}
	if s := strings.TrimSpace(query); s != "" {
		q.Set("q", s)
	}
	var out envelope[[]SkillRecord]
	if err := c.get(ctx, creds, "/api/skills", q, &out); err != nil {
		return nil, apperr.Network("fetch skills", err)
	}
	return out.Data, nil
}

func (c *Client) FetchCities(ctx context.Context, creds auth.Credentials) ([]CityRecord, error) {
	var out envelope[[]CityRecord]
	if err := c.get(ctx, creds, "/api/cities", nil, &out); err != nil {
		return nil, apperr.Network("fetch cities", err)
	}
	return out.Data, nil
}

// WhoAmI returns the user the credentials belong to. A 401 or 403 from
// upstream reads as apperr.ErrUnauthorized.
func (c *Client) WhoAmI(ctx context.Context, creds auth.Credentials) (string, error) {
	var out envelope[identityPayload]
	if err := c.get(ctx, creds, "/api/me", nil, &out); err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) &&
			(httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err)
		}
		return "", apperr.Network("resolve identity", err)
	}
	id := strings.TrimSpace(out.Data.UserID)
	if id == "" {
		return "", apperr.Network("resolve identity", errors.New("empty user id"))
	}
	return id, nil
}

// FetchMatchingCount queries the aggregate endpoint. params is sent as-is; an
// empty map means "no constraints".
func (c *Client) FetchMatchingCount(ctx context.Context, creds auth.Credentials, params map[string]string) (int, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	var out envelope[countPayload]
	if err := c.get(ctx, creds, "/api/profiles/count", q, &out); err != nil {
		return 0, apperr.Network("fetch matching count", err)
	}
	if out.Data.Count < 0 {
		return 0, apperr.Network("fetch matching count", fmt.Errorf("negative count %d", out.Data.Count))
	}
	return out.Data.Count, nil
}

func (c *Client) CreateResource(ctx context.Context, creds auth.Credentials, kind string, payload any) (json.RawMessage, error) {
	var out envelope[json.RawMessage]
	if err := c.send(ctx, creds, http.MethodPost, resourcePath(kind, ""), payload, &out); err != nil {
		return nil, apperr.Network("create "+kind, err)
	}
	return out.Data, nil
}

func (c *Client) UpdateResource(ctx context.Context, creds auth.Credentials, kind, id string, payload any) (json.RawMessage, error) {
	var out envelope[json.RawMessage]
	if err := c.send(ctx, creds, http.MethodPut, resourcePath(kind, id), payload, &out); err != nil {
		return nil, apperr.Network("update "+kind, err)
	}
	return out.Data, nil
}

func (c *Client) ListResources(ctx context.Context, creds auth.Credentials, kind, ownerID string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("owner", ownerID)
	var out envelope[[]json.RawMessage]
	if err := c.get(ctx, creds, resourcePath(kind, ""), q, &out); err != nil {
		return nil, apperr.Network("list "+kind, err)
	}
	return out.Data, nil
}

func resourcePath(kind, id string) string {
	p := "/api/resources/" + url.PathEscape(kind)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func (c *Client) get(ctx context.Context, creds auth.Credentials, path string, q url.Values, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	start := time.Now()
	err := httpx.DoJSON(ctx, c.http, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		setHeaders(req, creds)
		return req, nil
	}, out, c.read)
	c.logRequest(http.MethodGet, path, start, err)
	return err
}

func (c *Client) send(ctx context.Context, creds auth.Credentials, method, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	target := c.baseURL + path
	start := time.Now()
	err = httpx.DoJSON(ctx, c.http, func(ctx context.Context) (*http.Request, error) {
		var body io.Reader = bytes.NewReader(b)
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		setHeaders(req, creds)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out, c.write)
	c.logRequest(method, path, start, err)
	return err
}

func setHeaders(req *http.Request, creds auth.Credentials) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "token "+creds.APIKey+":"+creds.APISecret)
}

func (c *Client) logRequest(method, path string, start time.Time, err error) {
	ev := c.logger.Debug()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("path", path).
		Dur("latency", time.Since(start)).
		Msg("upstream request")
}
