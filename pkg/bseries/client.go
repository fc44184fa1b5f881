package bseries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultBaseURL = "https://api.computhermbseries.com"

	loginPath   = "/api/auth/login"
	devicesPath = "/api/devices"

	// tokens are refreshed this long before their exp claim
	tokenRefreshMargin = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("bseries: invalid credentials")
	ErrUnauthorized       = errors.New("bseries: unauthorized")
	ErrNoToken            = errors.New("bseries: not logged in")
)

// Client talks to the Computherm B Series cloud REST API. It is safe for
// concurrent use; the access token is guarded by a mutex.
type Client struct {
	baseURL  string
	email    string
	password string
	http     *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(baseURL, email, password string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		email:    email,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

// Login authenticates and stores the bearer token for subsequent calls.
// The token is also returned so callers can hand it to the event stream.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bseries: login request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return "", fmt.Errorf("bseries: login failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("bseries: decode login response: %w", err)
	}
	token := payload.Token
	if token == "" {
		token = payload.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("bseries: login response carries no token")
	}

	c.mu.Lock()
	c.token = token
	c.tokenExp = tokenExpiry(token)
	c.mu.Unlock()
	return token, nil
}

// Token returns the current bearer token, or ErrNoToken before Login.
func (c *Client) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", ErrNoToken
	}
	return c.token, nil
}

// TokenNeedsRefresh reports whether the stored token expires within the
// refresh margin. Tokens without a parseable exp claim never need refresh.
func (c *Client) TokenNeedsRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return true
	}
	if c.tokenExp.IsZero() {
		return false
	}
	return time.Now().Add(tokenRefreshMargin).After(c.tokenExp)
}

// Devices lists the devices bound to the account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.getJSON(ctx, devicesPath, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// SendCommand posts a relay command to one device.
func (c *Client) SendCommand(ctx context.Context, deviceID int, cmd Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	path := devicesPath + "/" + strconv.Itoa(deviceID) + "/cmd"
	req, err := c.newAuthedRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bseries: command request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("bseries: command for device %d: %w", deviceID, err)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newAuthedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bseries: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("bseries: request %s: %w", path, err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bseries: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newAuthedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// bridge only needs the timestamp, trust comes from the TLS channel.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
