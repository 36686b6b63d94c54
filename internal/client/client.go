// Package client talks to the internal control API on behalf of the
// public gateway.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound is returned for any operation addressing an unknown
// session id.
var ErrNotFound = errors.New("session not found")

// Session is the internal API's view of a session record.
type Session struct {
	SessionID    string `json:"sessionId"`
	Display      int    `json:"display"`
	VNCPort      int    `json:"vncPort"`
	WSPort       int    `json:"wsPort"`
	WorkspaceDir string `json:"workspaceDir"`
	CreatedAt    string `json:"createdAt,omitempty"`
	LastActivity string `json:"lastActivity,omitempty"`
}

// Client provides HTTP client functionality to communicate with the
// session daemon's internal API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the given base URL (e.g.
// "http://deskd-gui:6090").
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:6090"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsReachable checks if the session daemon is running and reachable.
func (c *Client) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// CreateSession asks the daemon to create a new session.
func (c *Client) CreateSession() (Session, error) {
	resp, err := c.client.Post(c.baseURL+"/internal/sessions", "application/json", nil)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Session{}, apiError(resp)
	}
	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// GetSession fetches a session record; ErrNotFound for unknown ids.
func (c *Client) GetSession(id string) (Session, error) {
	resp, err := c.client.Get(c.baseURL + "/internal/sessions/" + id)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return Session{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Session{}, apiError(resp)
	}
	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// DeleteSession tears a session down; ErrNotFound for unknown ids.
func (c *Client) DeleteSession(id string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/internal/sessions/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// TouchActivity advances a session's last-activity timestamp.
func (c *Client) TouchActivity(id string) error {
	resp, err := c.client.Post(c.baseURL+"/internal/sessions/"+id+"/activity", "application/json", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err == nil && errorResp.Error != "" {
		return fmt.Errorf("API error: %s", errorResp.Error)
	}
	return fmt.Errorf("API error: status %d", resp.StatusCode)
}
