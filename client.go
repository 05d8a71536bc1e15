package qiskit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Client represents a concurrent-safe IBM QX API client
// It implements the same methods as the python client so transferring shouldn't be difficult
type Client struct {
	mu sync.Mutex

	opts     clientOptions
	conn     *Conn
	backends map[string]BackendInfo
}

// NewClient returns a IBMQuantumExperience API Client
func NewClient(conn *Conn, options ...ClientOption) *Client {
	var opts clientOptions
	for _, option := range options {
		option(&opts)
	}

	// Set defaults
	if opts.clientAppl == "" {
		opts.clientAppl = DefaultClientAppl
	}
	if opts.pollInterval <= 0 {
		opts.pollInterval = DefaultPollInterval
	}

	return &Client{
		opts:     opts,
		conn:     conn,
		backends: make(map[string]BackendInfo),
	}
}

// request builds an authed request carrying the client application header
func (c *Client) request(method, path string) request {
	return request{
		method: method,
		path:   path,
		params: url.Values{},
		header: http.Header{"X-Qx-Client-Application": []string{c.opts.clientAppl}},
		authed: true,
	}
}

func (c *Client) hasIbmQInfo() bool {
	return c.opts.hub != "" && c.opts.group != "" && c.opts.project != ""
}

// Version retrieves the current API version
func (c *Client) Version(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := c.conn.do(ctx, c.request(http.MethodGet, "version"), &raw); err != nil {
		return "", err
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

// Credit represents the users credits information
type Credit struct {
	MaxUserType float64 `json:"maxUserType,omitempty"`
	Promotional float64 `json:"promotional,omitempty"`
	Remaining   float64 `json:"remaining,omitempty"`
}

type creditsResp struct {
	Cred Credit `json:"credit,omitempty"`
}

// GetMyCredits returns the number of remaining credits associated with the given client
func (c *Client) GetMyCredits(ctx context.Context) (Credit, error) {
	var resp creditsResp
	err := c.conn.do(ctx, c.request(http.MethodGet, fmt.Sprintf("users/%s", c.conn.UserId())), &resp)
	return resp.Cred, err
}
