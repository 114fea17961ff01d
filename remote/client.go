// Package remote is the client of the hosted backing store: report and
// incident inserts, evidence blob uploads, and the read-only dashboard
// aggregation RPCs. The store is an external collaborator with a fixed
// contract; nothing here owns schema or SQL.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldsync/models"
)

// Client talks to the remote store over its REST surface
type Client struct {
	baseURL string
	apiKey  string
	bucket  string
	http    *http.Client
}

// NewClient creates a remote store client. bucket names the blob container
// evidence photos are uploaded into.
func NewClient(baseURL, apiKey, bucket string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health probes store reachability. Used by the connectivity monitor; any
// response from the server, including an error status, counts as reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// InsertReport writes the parent report row and returns its generated id.
// Referential-integrity rejections come back as *Error with
// KindReferentialIntegrity.
func (c *Client) InsertReport(ctx context.Context, report models.RemoteReport) (string, error) {
	var inserted []struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/rest/v1/reports", []models.RemoteReport{report}, &inserted); err != nil {
		return "", err
	}
	if len(inserted) == 0 || inserted[0].ID == "" {
		return "", &Error{Kind: KindTransient, Message: "insert returned no id"}
	}
	return inserted[0].ID, nil
}

// InsertIncident writes the dependent incident record for a parent report
func (c *Client) InsertIncident(ctx context.Context, detail models.IncidentDetail) error {
	return c.post(ctx, "/rest/v1/incidents", []models.IncidentDetail{detail}, nil)
}

// ListVenues returns the venues the submission form can report against
func (c *Client) ListVenues(ctx context.Context) ([]models.Venue, error) {
	venues := make([]models.Venue, 0)
	if err := c.get(ctx, "/rest/v1/venues?select=id,name&order=name.asc", &venues); err != nil {
		return nil, err
	}
	return venues, nil
}

// UploadEvidence stores a binary payload under the caller-chosen key and
// returns its public URL
func (c *Client) UploadEvidence(ctx context.Context, key, mimeType string, data []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.errorFromResponse(resp)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, key), nil
}

// Dashboard aggregation RPCs. All of them are snapshots computed server-side
// for the calling user; they lag the local queue by design.

// DashboardSummary returns the headline stats for an observer's jurisdiction
func (c *Client) DashboardSummary(ctx context.Context, userID string) (*models.DashboardSummary, error) {
	var summary models.DashboardSummary
	if err := c.post(ctx, "/rest/v1/rpc/get_dashboard_summary", map[string]string{"user_id_param": userID}, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RecentReports returns the latest activity rows visible to the user
func (c *Client) RecentReports(ctx context.Context, userID string, limit int) ([]models.RecentReport, error) {
	reports := make([]models.RecentReport, 0)
	params := map[string]interface{}{"user_id_param": userID, "limit_param": limit}
	if err := c.post(ctx, "/rest/v1/rpc/get_recent_reports", params, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// DepartmentStats returns per-department coverage for the user
func (c *Client) DepartmentStats(ctx context.Context, userID string) ([]models.DepartmentStats, error) {
	stats := make([]models.DepartmentStats, 0)
	if err := c.post(ctx, "/rest/v1/rpc/get_department_stats", map[string]string{"user_id_param": userID}, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ManagedUsers returns the observers supervised by a manager
func (c *Client) ManagedUsers(ctx context.Context, managerID string) ([]models.ManagedUser, error) {
	users := make([]models.ManagedUser, 0)
	if err := c.post(ctx, "/rest/v1/rpc/get_managed_users", map[string]string{"manager_id": managerID}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// LocationPath returns the territorial hierarchy above a location, root
// first
func (c *Client) LocationPath(ctx context.Context, locationID string) ([]models.LocationPathEntry, error) {
	path := make([]models.LocationPathEntry, 0)
	if err := c.post(ctx, "/rest/v1/rpc/get_location_path", map[string]string{"target_location_id": locationID}, &path); err != nil {
		return nil, err
	}
	return path, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	if out != nil {
		req.Header.Set("Prefer", "return=representation")
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	return nil
}

// errorFromResponse parses the store's structured error body into a typed
// error. Bodies look like {"code":"23503","message":"...","details":"..."}.
func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	}
	message := strings.TrimSpace(string(body))
	var code string
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
		code = parsed.Code
	}
	if message == "" {
		message = resp.Status
	}

	return &Error{
		Kind:       classify(resp.StatusCode, code, message),
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    message,
	}
}
