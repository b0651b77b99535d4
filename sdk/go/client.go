package caselinesdk

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
)

// Client is a minimal Caseline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Case mirrors the API case model (partial).
type Case struct {
	ID                string   `json:"id"`
	ClientID          string   `json:"client_id"`
	ClientName        string   `json:"client_name,omitempty"`
	Priority          string   `json:"priority"`
	RiskRating        string   `json:"risk_rating"`
	LOB               string   `json:"lob,omitempty"`
	Status            string   `json:"status"`
	Assignee          string   `json:"assignee,omitempty"`
	EscalationPending bool     `json:"escalation_pending,omitempty"`
	EscalationReasons []string `json:"escalation_reasons,omitempty"`
	ReturnReason      string   `json:"return_reason,omitempty"`
	CreatedAt         string   `json:"created_at"`
	StatusChangedAt   string   `json:"status_changed_at"`
	Version           int64    `json:"version"`
}

// HistoryEntry is one audit record.
type HistoryEntry struct {
	ID         string `json:"id"`
	CaseID     string `json:"case_id"`
	TS         string `json:"ts"`
	ActorID    string `json:"actor_id"`
	Role       string `json:"role"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason,omitempty"`
}

// EscalationReason is one catalog entry.
type EscalationReason struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Description     string `json:"description,omitempty"`
	TargetRole      string `json:"target_role"`
	RequiresManager bool   `json:"requires_manager"`
}

// BulkOutcome is one per-case bulk result.
type BulkOutcome struct {
	CaseID string `json:"case_id"`
	OK     bool   `json:"ok"`
	Case   *Case  `json:"case,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// BulkResult summarises a bulk call.
type BulkResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []BulkOutcome `json:"outcomes"`
}

// QueueItem is one queue row with its age.
type QueueItem struct {
	Case        Case `json:"case"`
	DaysInQueue int  `json:"days_in_queue"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCase registers a new case.
func (c *Client) CreateCase(ctx context.Context, clientID, priority, riskRating, lob string) (Case, error) {
	body := map[string]any{
		"client_id":   clientID,
		"priority":    priority,
		"risk_rating": riskRating,
		"lob":         lob,
	}
	var resp Case
	err := c.do(ctx, http.MethodPost, "v1/cases", body, &resp)
	return resp, err
}

// GetCase fetches a case by id.
func (c *Client) GetCase(ctx context.Context, id string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodGet, "v1/cases/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Transition posts one of the per-transition endpoints (assign, start,
// escalate, return, review, complete, reopen, abandon, reject, triage) with
// the given body fields. Include "expected_version" in the body to fail
// with a 409 instead of acting on a case that has moved on since it was
// read.
func (c *Client) Transition(ctx context.Context, caseID, op string, body map[string]any) (Case, error) {
	if body == nil {
		body = map[string]any{}
	}
	var resp Case
	endpoint := fmt.Sprintf("v1/cases/%s/%s", url.PathEscape(caseID), url.PathEscape(op))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Assign assigns or reassigns a case.
func (c *Client) Assign(ctx context.Context, caseID, assignee string) (Case, error) {
	return c.Transition(ctx, caseID, "assign", map[string]any{"assignee": assignee})
}

// Escalate routes a case to a review track.
func (c *Client) Escalate(ctx context.Context, caseID, escalationType string, reasonIDs []string, managerID, comment string) (Case, error) {
	return c.Transition(ctx, caseID, "escalate", map[string]any{
		"escalation_type": escalationType,
		"reason_ids":      reasonIDs,
		"manager_id":      managerID,
		"comment":         comment,
	})
}

// Return sends a case back to its previous assignee.
func (c *Client) Return(ctx context.Context, caseID, reason string) (Case, error) {
	return c.Transition(ctx, caseID, "return", map[string]any{"reason": reason})
}

// Complete closes a case.
func (c *Client) Complete(ctx context.Context, caseID, disposition string) (Case, error) {
	return c.Transition(ctx, caseID, "complete", map[string]any{"disposition": disposition})
}

// NextCase claims the oldest unassigned case for the caller.
func (c *Client) NextCase(ctx context.Context, lob string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodPost, "v1/cases/next", map[string]any{"lob": lob}, &resp)
	return resp, err
}

// Bulk applies one operation to many cases.
func (c *Client) Bulk(ctx context.Context, operation string, caseIDs []string, assignee, reason string) (BulkResult, error) {
	body := map[string]any{
		"operation": operation,
		"case_ids":  caseIDs,
	}
	if assignee != "" {
		body["assignee"] = assignee
	}
	if reason != "" {
		body["reason"] = reason
	}
	var resp BulkResult
	err := c.do(ctx, http.MethodPost, "v1/cases/bulk", body, &resp)
	return resp, err
}

// Queue lists a workbasket queue.
func (c *Client) Queue(ctx context.Context, name, assignee string) ([]QueueItem, error) {
	var resp struct {
		Items []QueueItem `json:"items"`
	}
	endpoint := "v1/queues/" + url.PathEscape(name)
	if assignee != "" {
		endpoint += "?assignee=" + url.QueryEscape(assignee)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// History returns a case's audit trail.
func (c *Client) History(ctx context.Context, caseID string) ([]HistoryEntry, error) {
	var resp struct {
		Entries []HistoryEntry `json:"entries"`
	}
	endpoint := fmt.Sprintf("v1/cases/%s/history", url.PathEscape(caseID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Entries, err
}

// Reasons lists the escalation reason catalog.
func (c *Client) Reasons(ctx context.Context, escalationType string) ([]EscalationReason, error) {
	var resp struct {
		Reasons []EscalationReason `json:"reasons"`
	}
	endpoint := "v1/reasons"
	if escalationType != "" {
		endpoint += "?escalation_type=" + url.QueryEscape(escalationType)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Reasons, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
