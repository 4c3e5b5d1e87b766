// Package identity is an HTTP client for the identity service.
package identity

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

	"github.com/feresegna/bus-portal/internal/models"
)

// APIError is a non-2xx answer from the identity service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the identity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL. A nil httpClient
// gets a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Login exchanges credentials for a token. The service expects the email in
// the form field "username".
func (c *Client) Login(ctx context.Context, email, password string) (models.AuthResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), &resp)
	return resp, err
}

// Register creates a passenger account and returns its session.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.postJSON(ctx, "/api/auth/register", req, &resp)
	return resp, err
}

// Apply submits an operator or driver application.
func (c *Client) Apply(ctx context.Context, role models.Role, req models.ApplicationRequest) (models.ApplicationResponse, error) {
	var resp models.ApplicationResponse
	if role != models.RoleOperator && role != models.RoleDriver {
		return resp, fmt.Errorf("cannot apply for role %q", role)
	}
	err := c.postJSON(ctx, "/api/auth/register/"+string(role), req, &resp)
	return resp, err
}

// CurrentUser returns the profile that token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", token, "", nil, &user)
	return user, err
}

// Logout revokes token. An empty token is a no-op.
func (c *Client) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/api/auth/logout", token, "", nil, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "", "application/json", bytes.NewReader(data), out)
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, payload)}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the human readable message of an error body.
func errorMessage(status int, payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(payload, &body) == nil {
		for _, msg := range []string{body.Error, body.Message, body.Detail} {
			if msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}
