package clerk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.clerk.com"

// Config holds the Clerk Backend API configuration.
type Config struct {
	// SecretKey is the service credential sent as a bearer token.
	SecretKey string

	// APIBaseURL overrides the Backend API host, mostly for tests.
	APIBaseURL string

	HTTPClient *http.Client
}

// Client is a minimal Clerk Backend API client covering the user lookups
// this service needs.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Clerk API client.
func New(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		config:     cfg,
		httpClient: client,
	}
}

// EmailAddress is one address on a Clerk user record.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserRecord is the subset of the Clerk user payload we consume.
type UserRecord struct {
	ID                    string         `json:"id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	Username              string         `json:"username"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
}

// PrimaryEmail returns the address referenced by primary_email_address_id,
// falling back to the first listed address.
func (u *UserRecord) PrimaryEmail() string {
	for _, addr := range u.EmailAddresses {
		if addr.ID == u.PrimaryEmailAddressID {
			return addr.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// DisplayName joins first and last name, falling back to the username.
func (u *UserRecord) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return strings.TrimSpace(u.Username)
}

// User fetches one user record by Clerk user id.
func (c *Client) User(ctx context.Context, userID string) (*UserRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &APIError{Op: "user", Message: "user id is required"}
	}

	if strings.TrimSpace(c.config.SecretKey) == "" {
		return nil, &ConfigError{Message: "secret key is not configured"}
	}

	endpoint := strings.TrimSuffix(c.config.APIBaseURL, "/") + "/v1/users/" + url.PathEscape(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &APIError{Op: "user", Message: "failed to build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: "user", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: "user", StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The service credential was rejected, not the end user.
		return nil, &ConfigError{Message: fmt.Sprintf("credential rejected with status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{Op: "user", StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	record := &UserRecord{}
	if err := json.Unmarshal(body, record); err != nil {
		return nil, &APIError{Op: "user", StatusCode: resp.StatusCode, Message: "failed to decode response", Err: err}
	}

	return record, nil
}

// APIError reports a failed Backend API exchange.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("clerk %s: %s", e.Op, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ConfigError reports an unusable client configuration, including a
// rejected service credential.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "clerk: " + e.Message
}
