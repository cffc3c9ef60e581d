// Package splunk implements the REST client for the search service: session
// login, job creation, status polling, and the result/export endpoints.
package splunk

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError carries a non-success HTTP response from the service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("splunk api: status %d: %s", e.StatusCode, e.Body)
}

// ErrJobNotFound is returned when the service no longer knows the job id
// (evicted or expired server-side).
var ErrJobNotFound = fmt.Errorf("splunk api: job not found")

// Client is an authenticated session against one Splunk base URL. The session
// key is attached to every request; on a 401 the client re-authenticates once
// and replays the failed request.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	sessionKey string
}

// NewClient builds an unauthenticated client. Call Login before use.
func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type loginResponse struct {
	XMLName    xml.Name `xml:"response"`
	SessionKey string   `xml:"sessionKey"`
}

// Login exchanges credentials for a session key via /services/auth/login.
// The response body is XML carrying a sessionKey element.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/services/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: preview(body)}
	}

	var lr loginResponse
	if err := xml.Unmarshal(body, &lr); err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if lr.SessionKey == "" {
		return fmt.Errorf("login response carried no sessionKey")
	}
	c.sessionKey = lr.SessionKey
	return nil
}

// call issues one request with the session header, re-authenticating once and
// replaying if the service reports the token invalid. The request is rebuilt
// for the replay so form bodies are readable again.
func (c *Client) call(ctx context.Context, method, path string, query, form url.Values) (*http.Response, error) {
	replayed := false
	for {
		resp, err := c.doOnce(ctx, method, path, query, form)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized && !replayed {
			resp.Body.Close()
			if err := c.Login(ctx); err != nil {
				return nil, fmt.Errorf("re-authenticate: %w", err)
			}
			replayed = true
			continue
		}
		return resp, nil
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, query, form url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "Splunk "+c.sessionKey)
	return c.httpClient.Do(req)
}

// readBody drains and closes the response, converting non-2xx statuses into
// APIError (404 into ErrJobNotFound when jobScoped is set).
func readBody(resp *http.Response, jobScoped bool) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound && jobScoped {
		return nil, ErrJobNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: preview(body)}
	}
	return body, nil
}

func preview(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
