// Package search provides a web search client backed by SerpAPI.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the public SerpAPI endpoint.
const DefaultBaseURL = "https://serpapi.com"

var (
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrMissingAPIKey is returned when the client has no key.
	ErrMissingAPIKey = errors.New("search api key is empty")
)

// Result is one organic search result.
type Result struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Source   string `json:"source,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	NumResults int
}

// Client is a SerpAPI Google search client.
type Client struct {
	http       *resty.Client
	apiKey     string
	numResults int
}

// Ensure Client implements Searcher.
var _ Searcher = (*Client)(nil)

// NewClient creates a SerpAPI client. Provider-side errors such as an
// invalid key surface from Search.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = 10
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:       client,
		apiKey:     cfg.APIKey,
		numResults: cfg.NumResults,
	}, nil
}

type searchResponse struct {
	OrganicResults []Result `json:"organic_results"`
	Error          string   `json:"error"`
}

// Search runs one Google search and returns its organic results.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google",
			"q":       query,
			"num":     strconv.Itoa(c.numResults),
			"api_key": c.apiKey,
		}).
		SetResult(&out).
		SetError(&out).
		Get("/search.json")
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	if out.Error != "" && len(out.OrganicResults) == 0 {
		// SerpAPI reports "no results" with a 200 and an error string.
		if strings.Contains(strings.ToLower(out.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: out.Error}
	}

	return out.OrganicResults, nil
}

// APIError is a non-successful SerpAPI response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("serpapi: status %d: %s", e.StatusCode, e.Message)
}
