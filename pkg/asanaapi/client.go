// Package asanaapi is a minimal typed client for the Asana REST API.
package asanaapi

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

	"github.com/go-faster/errors"
)

const (
	defaultBaseURL = "https://app.asana.com/api/1.0"
	requestTimeout = 30 * time.Second

	// pageSize is the page limit for paginated list endpoints.
	pageSize = 100

	taskOptFields    = "name,notes,completed,due_on,created_at,modified_at,assignee.name,projects.name,permalink_url"
	projectOptFields = "name,archived,color,created_at,modified_at"
)

// Error is a non-2xx response from the Asana API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Asana API error (%d): %s", e.StatusCode, e.Message)
}

// NotFound reports whether the error was a 404.
func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// =============================================================================
// Resource types
// =============================================================================

type User struct {
	GID        string      `json:"gid"`
	Name       string      `json:"name"`
	Email      string      `json:"email,omitempty"`
	Workspaces []Workspace `json:"workspaces,omitempty"`
}

type Workspace struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type Project struct {
	GID        string `json:"gid"`
	Name       string `json:"name"`
	Archived   bool   `json:"archived,omitempty"`
	Color      string `json:"color,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

type Task struct {
	GID          string    `json:"gid"`
	Name         string    `json:"name"`
	Notes        string    `json:"notes,omitempty"`
	Completed    bool      `json:"completed"`
	DueOn        string    `json:"due_on,omitempty"`
	CreatedAt    string    `json:"created_at,omitempty"`
	ModifiedAt   string    `json:"modified_at,omitempty"`
	Assignee     *User     `json:"assignee,omitempty"`
	Projects     []Project `json:"projects,omitempty"`
	PermalinkURL string    `json:"permalink_url,omitempty"`
}

// TaskFields carries the writable task fields for create/update calls.
// Nil pointers are omitted from the request payload.
type TaskFields struct {
	Name        *string
	Notes       *string
	DueOn       *string
	Completed   *bool
	Priority    *string
	AssigneeGID *string
	ProjectGIDs []string
}

// Empty reports whether no field is set.
func (f TaskFields) Empty() bool {
	return f.Name == nil && f.Notes == nil && f.DueOn == nil &&
		f.Completed == nil && f.Priority == nil && f.AssigneeGID == nil &&
		len(f.ProjectGIDs) == 0
}

func (f TaskFields) payload() map[string]any {
	data := make(map[string]any)
	if f.Name != nil {
		data["name"] = *f.Name
	}
	if f.Notes != nil {
		data["notes"] = *f.Notes
	}
	if f.DueOn != nil {
		data["due_on"] = *f.DueOn
	}
	if f.Completed != nil {
		data["completed"] = *f.Completed
	}
	if f.Priority != nil {
		data["priority"] = *f.Priority
	}
	if f.AssigneeGID != nil {
		data["assignee"] = *f.AssigneeGID
	}
	if len(f.ProjectGIDs) > 0 {
		data["projects"] = f.ProjectGIDs
	}
	return data
}

// SearchQuery narrows a workspace task search. An empty Text matches all tasks.
type SearchQuery struct {
	Text       string
	Completed  *bool
	ProjectGID string
}

// =============================================================================
// Client
// =============================================================================

// Client calls the Asana REST API with a fixed bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a new Asana API client with the given access token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the authenticated user, including workspace memberships.
func (c *Client) Me(ctx context.Context) (*User, error) {
	query := url.Values{"opt_fields": {"name,email,workspaces.name"}}
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/me", query, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetTask fetches a task by GID.
func (c *Client) GetTask(ctx context.Context, gid string) (*Task, error) {
	query := url.Values{"opt_fields": {taskOptFields}}
	var task Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(gid), query, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a new task.
func (c *Client) CreateTask(ctx context.Context, fields TaskFields) (*Task, error) {
	query := url.Values{"opt_fields": {taskOptFields}}
	var task Task
	if err := c.do(ctx, http.MethodPost, "/tasks", query, fields.payload(), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies the given fields to an existing task.
func (c *Client) UpdateTask(ctx context.Context, gid string, fields TaskFields) (*Task, error) {
	query := url.Values{"opt_fields": {taskOptFields}}
	var task Task
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(gid), query, fields.payload(), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListProjects returns all projects owned by the given user, following
// offset pagination until the last page.
func (c *Client) ListProjects(ctx context.Context, ownerGID string) ([]Project, error) {
	query := url.Values{
		"owner":      {ownerGID},
		"opt_fields": {projectOptFields},
		"limit":      {fmt.Sprint(pageSize)},
	}

	var projects []Project
	for {
		var page struct {
			Data     []Project `json:"data"`
			NextPage *struct {
				Offset string `json:"offset"`
			} `json:"next_page"`
		}
		if err := c.doRaw(ctx, http.MethodGet, "/projects", query, nil, &page); err != nil {
			return nil, err
		}
		projects = append(projects, page.Data...)
		if page.NextPage == nil || page.NextPage.Offset == "" {
			return projects, nil
		}
		query.Set("offset", page.NextPage.Offset)
	}
}

// SearchTasks runs a workspace-scoped text search. An empty query text is
// permitted and returns the result set unfiltered by text.
func (c *Client) SearchTasks(ctx context.Context, workspaceGID string, q SearchQuery) ([]Task, error) {
	query := url.Values{
		"text":       {q.Text},
		"opt_fields": {"name,completed,due_on,assignee.name"},
	}
	if q.Completed != nil {
		query.Set("completed", fmt.Sprint(*q.Completed))
	}
	if q.ProjectGID != "" {
		query.Set("projects.any", q.ProjectGID)
	}

	var tasks []Task
	path := "/workspaces/" + url.PathEscape(workspaceGID) + "/tasks/search"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// =============================================================================
// HTTP plumbing
// =============================================================================

// do issues a request and decodes the "data" member of the response envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.doRaw(ctx, method, path, query, payload, &envelope); err != nil {
		return err
	}
	if out == nil || envelope.Data == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.Wrap(err, "decode response data")
	}
	return nil
}

// doRaw issues a request and decodes the whole response body into out.
// Write payloads are wrapped in the {"data": ...} request envelope.
func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(map[string]any{"data": payload})
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(b)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "asana request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// decodeError builds an *Error from a non-2xx response, preferring the
// message in the Asana error envelope.
func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return apiErr
	}

	var envelope struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 && envelope.Errors[0].Message != "" {
		apiErr.Message = envelope.Errors[0].Message
	}
	return apiErr
}
