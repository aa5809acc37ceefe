package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// Client talks to the envlink server API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given server URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ResolveResult is the server's resolution response
type ResolveResult struct {
	Scope    string                               `json:"scope"`
	Resolved map[string]string                    `json:"resolved"`
	Errors   map[string]*resolver.ResolutionError `json:"errors"`
}

// Resolve resolves a scope on the server. Empty project resolves
// everything; a variable requires a project.
func (c *Client) Resolve(project, variable string) (*ResolveResult, error) {
	body, err := json.Marshal(map[string]string{
		"project":  project,
		"variable": variable,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Post(c.baseURL+"/api/v1/resolve", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var result ResolveResult
	if err := c.decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Impact fetches the impact report for a variable
func (c *Client) Impact(project, name string) (*resolver.ImpactReport, error) {
	url := fmt.Sprintf("%s/api/v1/projects/%s/variables/%s/impact", c.baseURL, project, name)
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var report resolver.ImpactReport
	if err := c.decode(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ExportRequest carries the capture parameters for CreateExport
type ExportRequest struct {
	ExportPath    string `json:"export_path"`
	GitRepoPath   string `json:"git_repo_path,omitempty"`
	GitBranch     string `json:"git_branch,omitempty"`
	GitCommitHash string `json:"git_commit_hash,omitempty"`
	GitRemoteURL  string `json:"git_remote_url,omitempty"`
	IsGitRepo     bool   `json:"is_git_repo"`
}

// CreateExport captures an export of a project on the server
func (c *Client) CreateExport(project string, req ExportRequest) (*api.EnvExport, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/projects/%s/exports", c.baseURL, project)
	resp, err := c.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var export api.EnvExport
	if err := c.decode(resp, &export); err != nil {
		return nil, err
	}
	return &export, nil
}

// decode reads a response body, surfacing the server's error message on
// non-2xx statuses.
func (c *Client) decode(resp *http.Response, v interface{}) error {
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
