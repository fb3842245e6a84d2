package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/listsync/internal/controlplane"
	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the listsync API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListRelations fetches the lists the user can access
func (c *Client) ListRelations() ([]models.RelationSummary, error) {
	var relations []models.RelationSummary
	if err := c.do(http.MethodGet, "/relations", nil, &relations); err != nil {
		return nil, err
	}
	return relations, nil
}

// GetRelation fetches a list with its tasks
func (c *Client) GetRelation(id string) (*controlplane.RelationDetail, error) {
	var rel controlplane.RelationDetail
	if err := c.do(http.MethodGet, "/relations/"+id, nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// CreateRelation creates a new, empty list
func (c *Client) CreateRelation(name string) (*models.RelationWithTasks, error) {
	var rel models.RelationWithTasks
	if err := c.do(http.MethodPost, "/relations", controlplane.CreateRelationRequest{Name: name}, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// ShareRelation gives the user with the given email edit access
func (c *Client) ShareRelation(id, email string) error {
	return c.do(http.MethodPost, "/relations/"+id+"/share", controlplane.ShareRequest{Email: email}, nil)
}

// SubmitBatch replays queued operations
func (c *Client) SubmitBatch(ops []reconcile.Operation) (*reconcile.BatchResult, error) {
	var result reconcile.BatchResult
	if err := c.do(http.MethodPost, "/sync/batch", ops, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAudit fetches the user's recent reconciliation records
func (c *Client) ListAudit(limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := c.do(http.MethodGet, fmt.Sprintf("/sync/audit?limit=%d", limit), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health controlplane.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr controlplane.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("API error: %s", apiErr.Message)
		}
		return fmt.Errorf("API error: %s", string(data))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
