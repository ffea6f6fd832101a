package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tasklink/notionbridge/internal/core/errs"
)

// API is the subset of the Notion HTTP API this service consumes. *Client
// implements it against api.notion.com; tests substitute fakes. Retry
// behavior is owned by the caller, not the client.
type API interface {
	// RetrieveDatabase fetches container metadata including data sources.
	RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error)

	// QueryDataSource queries items of a data source with filters, sorts
	// and cursor pagination.
	QueryDataSource(ctx context.Context, dataSourceID string, q *Query) (*QueryResult, error)

	// CreatePage creates a page under a data source.
	CreatePage(ctx context.Context, params CreatePageParams) (*Page, error)

	// UpdatePage patches page properties and/or archival state.
	UpdatePage(ctx context.Context, pageID string, params UpdatePageParams) (*Page, error)

	// Me returns the bot user the credential belongs to.
	Me(ctx context.Context) (*User, error)
}

const (
	defaultBaseURL    = "https://api.notion.com"
	defaultAPIVersion = "2025-09-03"
	defaultTimeout    = 10 * time.Second

	maxErrorBodyBytes = 4096
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Token      string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client

	// Observe, when set, receives one sample per HTTP exchange.
	Observe func(operation string, statusCode int, elapsed time.Duration)
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	httpClient *http.Client
	observe    func(operation string, statusCode int, elapsed time.Duration)
}

// NewClient creates a Notion API client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.APIVersion == "" {
		opts.APIVersion = defaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string, int, time.Duration) {}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		apiVersion: opts.APIVersion,
		httpClient: httpClient,
		observe:    observe,
	}
}

// APIVersion returns the protocol version string sent with every request.
func (c *Client) APIVersion() string { return c.apiVersion }

func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	path := "/v1/databases/" + url.PathEscape(databaseID)
	if err := c.do(ctx, "databases.retrieve", http.MethodGet, path, nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) QueryDataSource(ctx context.Context, dataSourceID string, q *Query) (*QueryResult, error) {
	if q == nil {
		q = &Query{}
	}
	var result QueryResult
	path := "/v1/data_sources/" + url.PathEscape(dataSourceID) + "/query"
	if err := c.do(ctx, "data_sources.query", http.MethodPost, path, q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreatePage(ctx context.Context, params CreatePageParams) (*Page, error) {
	body := map[string]any{
		"parent": map[string]any{
			"type":           "data_source_id",
			"data_source_id": params.DataSourceID,
		},
		"properties": params.Properties,
	}
	var page Page
	if err := c.do(ctx, "pages.create", http.MethodPost, "/v1/pages", body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UpdatePage(ctx context.Context, pageID string, params UpdatePageParams) (*Page, error) {
	body := map[string]any{}
	if params.Properties != nil {
		body["properties"] = params.Properties
	}
	if params.Archived != nil {
		body["archived"] = *params.Archived
	}
	var page Page
	path := "/v1/pages/" + url.PathEscape(pageID)
	if err := c.do(ctx, "pages.update", http.MethodPatch, path, body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, "users.me", http.MethodGet, "/v1/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notion %s: %w", operation, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	c.observe(operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode notion %s response: %w", operation, err)
		}
	}
	return nil
}

// apiError turns a non-2xx response into *errs.NotionAPIError, decoding
// Notion's {code, message} error body when present.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &payload)

	apiErr := &errs.NotionAPIError{
		StatusCode: resp.StatusCode,
		Code:       payload.Code,
		Message:    payload.Message,
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return apiErr
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
