package hpc

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

	"gridpool/pkg/config"
	"gridpool/pkg/logger"
)

// Client is the REST client for the grid manager's management API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new grid manager API client
func NewClient(cfg *config.HPCConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// ListJobs queries jobs, optionally filtered by template and states
func (c *Client) ListJobs(ctx context.Context, template string, states []string) ([]jobRecord, error) {
	params := url.Values{}
	if template != "" {
		params.Set("template", template)
	}
	if len(states) > 0 {
		params.Set("states", strings.Join(states, ","))
	}

	respData, err := c.doRequest(ctx, http.MethodGet, c.buildURL("/api/v1/jobs", params), nil)
	if err != nil {
		return nil, err
	}

	var resp jobListResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse job list response: %w", err)
	}
	return resp.Jobs, nil
}

// ListNodes queries nodes in a group, optionally filtered by template and state
func (c *Client) ListNodes(ctx context.Context, group, template, state string) ([]nodeRecord, error) {
	params := url.Values{}
	if group != "" {
		params.Set("group", group)
	}
	if template != "" {
		params.Set("template", template)
	}
	if state != "" {
		params.Set("state", state)
	}

	respData, err := c.doRequest(ctx, http.MethodGet, c.buildURL("/api/v1/nodes", params), nil)
	if err != nil {
		return nil, err
	}

	var resp nodeListResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse node list response: %w", err)
	}
	return resp.Nodes, nil
}

// ActiveJobCount returns the number of jobs currently assigned to a node
func (c *Client) ActiveJobCount(ctx context.Context, nodeName string) (int, error) {
	endpoint := fmt.Sprintf("/api/v1/nodes/%s/active-jobs", url.PathEscape(nodeName))

	respData, err := c.doRequest(ctx, http.MethodGet, c.buildURL(endpoint, nil), nil)
	if err != nil {
		return 0, err
	}

	var resp activeJobsResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse active job count response: %w", err)
	}
	return resp.Count, nil
}

// SetNodeState requests a lifecycle transition for the named nodes
func (c *Client) SetNodeState(ctx context.Context, names []string, state string) error {
	req := &nodeStateRequest{Names: names, State: state}
	_, err := c.doRequest(ctx, http.MethodPost, c.buildURL("/api/v1/nodes/state", nil), req)
	return err
}

// StartNodes deploys/powers on the named nodes
func (c *Client) StartNodes(ctx context.Context, names []string, async bool) error {
	req := &nodeStartRequest{Names: names, Async: async}
	_, err := c.doRequest(ctx, http.MethodPost, c.buildURL("/api/v1/nodes/start", nil), req)
	return err
}

// StopNodes powers off the named nodes
func (c *Client) StopNodes(ctx context.Context, names []string, force, async bool) error {
	req := &nodeStopRequest{Names: names, Force: force, Async: async}
	_, err := c.doRequest(ctx, http.MethodPost, c.buildURL("/api/v1/nodes/stop", nil), req)
	return err
}

func (c *Client) buildURL(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return c.baseURL + endpoint
	}
	return c.baseURL + endpoint + "?" + params.Encode()
}

// doRequest performs an HTTP request with proper authentication
func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)

		logger.Debugf("Grid manager API request: %s %s, Body: %s", method, url, string(jsonData))
	} else {
		logger.Debugf("Grid manager API request: %s %s", method, url)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	logger.Debugf("Grid manager API response: Status %d, Body: %s", resp.StatusCode, string(respData))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if err := json.Unmarshal(respData, &errResp); err == nil && errResp.Message != "" {
			return nil, fmt.Errorf("grid manager API error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("grid manager API error (status %d): %s", resp.StatusCode, string(respData))
	}

	return respData, nil
}
