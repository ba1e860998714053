package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipdigest/internal/api"
)

// apiClient wraps the daemon HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *apiClient) createTask(url string) (*api.TaskResponse, error) {
	var out api.TaskResponse
	err := c.do(http.MethodPost, "/api/tasks", map[string]string{"url": url}, &out)
	return &out, err
}

func (c *apiClient) createBatch(url string, count int) (*api.BatchCreateResponse, error) {
	var out api.BatchCreateResponse
	err := c.do(http.MethodPost, "/api/tasks/batch", map[string]any{"url": url, "count": count}, &out)
	return &out, err
}

func (c *apiClient) getTask(id int64) (*api.TaskResponse, error) {
	var out api.TaskResponse
	err := c.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), nil, &out)
	return &out, err
}

func (c *apiClient) listTasks(status string, limit, offset int) (*api.TaskListResponse, error) {
	path := fmt.Sprintf("/api/tasks?limit=%d&offset=%d", limit, offset)
	if status != "" {
		path += "&status=" + status
	}
	var out api.TaskListResponse
	err := c.do(http.MethodGet, path, nil, &out)
	return &out, err
}

func (c *apiClient) currentTasks() (*api.TaskListResponse, error) {
	var out api.TaskListResponse
	err := c.do(http.MethodGet, "/api/tasks/current", nil, &out)
	return &out, err
}

func (c *apiClient) history(limit, offset int) (*api.TaskListResponse, error) {
	var out api.TaskListResponse
	err := c.do(http.MethodGet, fmt.Sprintf("/api/history?limit=%d&offset=%d", limit, offset), nil, &out)
	return &out, err
}

func (c *apiClient) deleteTask(id int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil, nil)
}

func (c *apiClient) deleteBatch(ids []int64) (*api.BatchDeleteResponse, error) {
	var out api.BatchDeleteResponse
	err := c.do(http.MethodDelete, "/api/tasks/batch", map[string]any{"ids": ids}, &out)
	return &out, err
}

func (c *apiClient) retry(id int64) (*api.TaskResponse, error) {
	var out api.TaskResponse
	err := c.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/retry", id), nil, &out)
	return &out, err
}

func (c *apiClient) resummarize(id int64, prompt string) (*api.TaskResponse, error) {
	var out api.TaskResponse
	err := c.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/resummarize", id),
		map[string]string{"custom_prompt": prompt}, &out)
	return &out, err
}

func (c *apiClient) summaries(id int64) ([]api.SummaryResponse, error) {
	var out []api.SummaryResponse
	err := c.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d/summaries", id), nil, &out)
	return out, err
}

func (c *apiClient) artifactURLs(id int64) (*api.ArtifactURLs, error) {
	var out api.ArtifactURLs
	err := c.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d/urls", id), nil, &out)
	return &out, err
}

func (c *apiClient) status() (*api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.do(http.MethodGet, "/api/status", nil, &out)
	return &out, err
}
