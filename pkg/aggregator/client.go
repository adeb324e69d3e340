// Package aggregator is the HTTP client for the batched query backend. It
// implements both the AggregatorGateway and LaunchDetector contracts.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mintlaunch/launchindex/pkg/contracts"
)

// Client talks to the aggregator's REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Ping performs a lightweight capability check against the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Launched reports whether the aggregator deployment exists. A 404 from the
// deployment endpoint means pre-launch; transport failures are surfaced as
// errors so callers don't mistake an outage for pre-launch.
func (c *Client) Launched(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/deployment", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("deployment check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("deployment check returned status %d", resp.StatusCode)
	}
	return true, nil
}

// HomePageData returns the home page aggregate for one page window.
func (c *Client) HomePageData(ctx context.Context, offset, limit int) (contracts.HomePageData, error) {
	var out contracts.HomePageData
	q := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	err := c.getJSON(ctx, "/v1/home?"+q.Encode(), &out)
	return out, err
}

// ProjectCardsBatch returns one card per requested address, in request order.
func (c *Client) ProjectCardsBatch(ctx context.Context, addresses []string) ([]contracts.ProjectCard, error) {
	var out []contracts.ProjectCard
	err := c.postJSON(ctx, "/v1/cards", map[string]interface{}{"addresses": addresses}, &out)
	return out, err
}

// PortfolioData returns the user's positions across the given instances.
func (c *Client) PortfolioData(ctx context.Context, userAddress string, instances []string) (contracts.PortfolioData, error) {
	var out contracts.PortfolioData
	err := c.postJSON(ctx, "/v1/portfolio", map[string]interface{}{
		"user":      userAddress,
		"instances": instances,
	}, &out)
	return out, err
}

// VaultLeaderboard returns the top vaults ordered by the given sort key.
func (c *Client) VaultLeaderboard(ctx context.Context, sortBy string, limit int) ([]contracts.VaultSummary, error) {
	var out []contracts.VaultSummary
	q := url.Values{
		"sort_by": {sortBy},
		"limit":   {strconv.Itoa(limit)},
	}
	err := c.getJSON(ctx, "/v1/leaderboard?"+q.Encode(), &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("aggregator returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
