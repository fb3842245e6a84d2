package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fentz26/listsync/internal/auth"
	"github.com/fentz26/listsync/internal/controlplane"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// DefaultAPI is the daemon address used when neither a flag nor a stored
// login names one.
const DefaultAPI = "http://127.0.0.1:7480"

// apiClient is the shared HTTP client with timeout.
var apiClient = &http.Client{
	Timeout: DefaultClientTimeout,
}

// storedSession returns the saved login, if any.
func storedSession() *auth.Session {
	m, err := auth.NewManager()
	if err != nil {
		return nil
	}
	return m.GetSession()
}

// resolveAPI picks the daemon address: --api, then the stored login, then
// DefaultAPI.
func resolveAPI() string {
	if apiAddr != "" {
		return strings.TrimRight(apiAddr, "/")
	}
	if s := storedSession(); s != nil && s.API != "" {
		return strings.TrimRight(s.API, "/")
	}
	return DefaultAPI
}

// resolveToken picks the bearer token: --token, then $LISTSYNC_TOKEN, then
// the stored login.
func resolveToken() string {
	if apiToken != "" {
		return apiToken
	}
	if env := os.Getenv("LISTSYNC_TOKEN"); env != "" {
		return env
	}
	if s := storedSession(); s != nil {
		return s.AccessToken
	}
	return ""
}

func apiDo(method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequest(method, resolveAPI()+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := resolveToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr controlplane.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d %s): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// apiGet performs a GET request to the API with timeout.
func apiGet(path string) ([]byte, error) {
	return apiDo(http.MethodGet, path, nil)
}

// apiPost performs a POST request to the API with timeout.
func apiPost(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return apiDo(http.MethodPost, path, bytes.NewReader(jsonData))
}

// apiPostRaw posts an already encoded JSON body.
func apiPostRaw(path string, body []byte) ([]byte, error) {
	return apiDo(http.MethodPost, path, bytes.NewReader(body))
}

// CheckHealth checks if the daemon is healthy and returns the health response.
// Unlike other API calls, this returns the parsed HealthResponse even on non-200
// responses, allowing callers to inspect the health payload alongside the error.
func CheckHealth() (*controlplane.HealthResponse, error) {
	resp, err := apiClient.Get(resolveAPI() + "/health")
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health controlplane.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	// Return both payload and error on non-200 status
	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}

	return &health, nil
}
