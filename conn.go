package qiskit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultUrl is the default IBM QX API Endpoint URL
	DefaultUrl = "https://quantumexperience.ng.bluemix.net/api"
	// DefaultRetries is the default number of retries every request gets
	DefaultRetries = 5
	// DefaultTimeout is the default timeout for each request
	DefaultTimeout = 30 * time.Second
	// DefaultRetryWait is the base wait between two attempts of the same request
	DefaultRetryWait = 500 * time.Millisecond
)

type dialOptions struct {
	// Login Info
	apiToken    string
	email       string
	password    string
	accessToken string
	userId      string

	// API Endpoint Info
	url        string
	proxyUrls  map[string]string
	httpClient *http.Client

	// API Request Info
	retries   int
	retryWait time.Duration
	timeout   time.Duration
}

// DialOption configures how to connection works
type DialOption func(*dialOptions)

// WithApiToken configures the connection to obtain your access token by using your API token
func WithApiToken(token string) DialOption {
	return func(options *dialOptions) {
		options.apiToken = token
	}
}

// WithAccessInfo configures the connection already with an API Access Token and a User ID
func WithAccessInfo(token, userId string) DialOption {
	return func(options *dialOptions) {
		options.accessToken = token
		options.userId = userId
	}
}

// WithLoginInfo configures the connection to obtain your access token by using your login info
func WithLoginInfo(email, password string) DialOption {
	return func(options *dialOptions) {
		options.email = email
		options.password = password
	}
}

// WithApiUrl configures the connection to use the provided url for the API endpoints
func WithApiUrl(url string) DialOption {
	return func(options *dialOptions) {
		options.url = strings.TrimRight(url, "/")
	}
}

// WithProxies configures the conn proxy information
// urls should be a map of:
//		http: URL
//		https: URL
func WithProxies(urls map[string]string) DialOption {
	return func(options *dialOptions) {
		options.proxyUrls = urls
	}
}

// WithHTTPClient makes the connection send requests through the given client.
// Proxies and the timeout option are ignored when this is set.
func WithHTTPClient(c *http.Client) DialOption {
	return func(options *dialOptions) {
		options.httpClient = c
	}
}

// WithRetries configures the number of retries performed for any request
func WithRetries(retries int) DialOption {
	return func(options *dialOptions) {
		options.retries = retries
	}
}

// WithRetryWait configures the base wait between retries, it grows linearly with each attempt
func WithRetryWait(d time.Duration) DialOption {
	return func(options *dialOptions) {
		options.retryWait = d
	}
}

// WithTimeout configures the timeout for each request
func WithTimeout(timeout time.Duration) DialOption {
	return func(options *dialOptions) {
		options.timeout = timeout
	}
}

// Conn is a representation of a connection to the IBM QX API
type Conn struct {
	mu    sync.Mutex
	dopts dialOptions
	c     *http.Client
}

// Dial takes a list of DialOptions and returns a connection to the IBM QX API
func Dial(options ...DialOption) (*Conn, error) {
	return DialContext(context.Background(), options...)
}

// DialContext is like Dial but the login request is bound to ctx
func DialContext(ctx context.Context, options ...DialOption) (*Conn, error) {
	c := &Conn{}
	for _, option := range options {
		option(&c.dopts)
	}

	// Check API Login info; otherwise, error
	if c.dopts.apiToken == "" && c.dopts.email == "" && c.dopts.accessToken == "" {
		return nil, CredentialsErr{ApiErr{usrMsg: "missing credentials to obtain access token. please provide either, api token or email/password"}}
	}

	// Set defaults
	if c.dopts.url == "" {
		c.dopts.url = DefaultUrl
	}
	if c.dopts.retries <= 0 {
		c.dopts.retries = DefaultRetries
	}
	if c.dopts.retryWait == 0 {
		c.dopts.retryWait = DefaultRetryWait
	}
	if c.dopts.timeout == 0 {
		c.dopts.timeout = DefaultTimeout
	}

	if c.dopts.httpClient != nil {
		c.c = c.dopts.httpClient
	} else {
		transport, err := proxyTransport(c.dopts.proxyUrls)
		if err != nil {
			return nil, err
		}
		c.c = &http.Client{Timeout: c.dopts.timeout, Transport: transport}
	}

	// Lastly, obtain access token
	if c.dopts.accessToken == "" {
		if err := c.obtainToken(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func proxyTransport(proxies map[string]string) (http.RoundTripper, error) {
	if len(proxies) == 0 {
		return http.DefaultTransport, nil
	}

	parsed := make(map[string]*url.URL, len(proxies))
	for scheme, raw := range proxies {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s proxy url: %w", scheme, err)
		}
		parsed[strings.ToLower(scheme)] = u
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = func(req *http.Request) (*url.URL, error) {
		return parsed[req.URL.Scheme], nil
	}
	return t, nil
}

// UserId returns the id of the logged in user
func (c *Conn) UserId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dopts.userId
}

func (c *Conn) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dopts.accessToken
}

func (c *Conn) canLogin() bool {
	return c.dopts.apiToken != "" || (c.dopts.email != "" && c.dopts.password != "")
}

// loginReq is an internal type for making obtainToken requests
type loginReq struct {
	Token    string `json:"apiToken,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type loginResp struct {
	Created string  `json:"created"`
	UserId  string  `json:"userId"`
	Id      string  `json:"id"`
	Ttl     float64 `json:"ttl"`
}

func (c *Conn) obtainToken(ctx context.Context) error {
	// Construct request
	r := request{method: http.MethodPost, path: "users/login"}
	login := loginReq{}
	switch {
	case c.dopts.apiToken != "":
		login.Token = c.dopts.apiToken
		r.path += "WithToken"
	case c.dopts.email != "" && c.dopts.password != "":
		login.Email = c.dopts.email
		login.Password = c.dopts.password
	default:
		return CredentialsErr{ApiErr{usrMsg: "invalid credentials, please provide either API token or user email and password"}}
	}
	r.body = login

	var resp loginResp
	if err := c.do(ctx, r, &resp); err != nil {
		return err
	}
	if resp.Id == "" {
		return CredentialsErr{ApiErr{usrMsg: "login did not return an access token"}}
	}

	c.mu.Lock()
	c.dopts.userId = resp.UserId
	c.dopts.accessToken = resp.Id
	c.mu.Unlock()

	log.WithField("user", resp.UserId).Debug("obtained access token")
	return nil
}

// request describes one call against the API
type request struct {
	method string
	path   string
	params url.Values
	header http.Header
	body   interface{}
	// authed requests carry the access token and may trigger a new login on a 401
	authed bool
}

// newRequest is simply just a helper for generating requests
func (c *Conn) newRequest(ctx context.Context, r request, payload []byte) (*http.Request, error) {
	params := url.Values{}
	for k, vs := range r.params {
		params[k] = vs
	}
	if r.authed {
		params.Set("access_token", c.token())
	}

	u := c.dopts.url + "/" + r.path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.header {
		req.Header[k] = vs
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// errorEnvelope is how the API reports failures, sometimes even with a 200
type errorEnvelope struct {
	Err *httpErr `json:"error,omitempty"`
}

// do runs a request, retrying transport failures and 5xx responses, and decodes the body into out when non-nil.
// A 401 on an authed request obtains a new access token once and retries without spending an attempt.
func (c *Conn) do(ctx context.Context, r request, out interface{}) error {
	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return err
		}
	}

	relogged := false
	var lastErr error
	for attempt := 0; attempt < c.dopts.retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*c.dopts.retryWait); err != nil {
				return err
			}
		}

		req, err := c.newRequest(ctx, r, payload)
		if err != nil {
			return err
		}

		resp, err := c.c.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).WithField("path", r.path).Warn("request failed")
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && r.authed && !relogged && c.canLogin():
			relogged = true
			if err := c.obtainToken(ctx); err != nil {
				return err
			}
			attempt--
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return CredentialsErr{responseErr(r, resp.StatusCode, body)}
		case resp.StatusCode >= http.StatusInternalServerError:
			log.WithField("path", r.path).Warnf("got a %d response", resp.StatusCode)
			lastErr = responseErr(r, resp.StatusCode, body)
			continue
		case resp.StatusCode != http.StatusOK:
			return responseErr(r, resp.StatusCode, body)
		}

		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Err != nil {
			return responseErr(r, resp.StatusCode, body)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", r.path, err)
		}
		return nil
	}

	dev := ""
	if lastErr != nil {
		dev = lastErr.Error()
	}
	return ApiErr{usrMsg: "Failed to get proper response from backend", devMsg: dev}
}

// responseErr turns a failed response into an ApiErr, using the API error object when there is one
func responseErr(r request, status int, body []byte) ApiErr {
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Err != nil {
		return ApiErr{usrMsg: env.Err.Message, devMsg: fmt.Sprintf("%s %s: %s", r.method, r.path, env.Err.Error())}
	}
	return ApiErr{usrMsg: http.StatusText(status), devMsg: fmt.Sprintf("%s %s: status %d", r.method, r.path, status)}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
