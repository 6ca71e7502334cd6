// Package client is an HTTP client for the upstream organization service.
package client

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

	membershipdomain "orgaccess/internal/membership/domain"
	"orgaccess/internal/organization/domain"
)

const defaultTimeout = 15 * time.Second

// Service is the subset of the organization service used by this module.
type Service interface {
	GetOrganizations(ctx context.Context) ([]domain.Org, error)
	GetMe(ctx context.Context, orgID string) (*domain.GetMeResponse, error)
	UpdateMemberRole(ctx context.Context, orgID, memberID string, role membershipdomain.Role) error
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("organization service: request failed status=%d body=%s", e.StatusCode, e.Body)
}

// Client calls the organization service REST API with a bearer API key.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for baseURL (trailing slash trimmed) authenticating with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// GetOrganizations lists organizations visible to the session user.
func (c *Client) GetOrganizations(ctx context.Context) ([]domain.Org, error) {
	var orgs []domain.Org
	if err := c.do(ctx, http.MethodGet, "/api/organizations", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// GetMe returns the session user's per-organization roles with orgID flagged as current.
func (c *Client) GetMe(ctx context.Context, orgID string) (*domain.GetMeResponse, error) {
	if orgID == "" {
		return nil, fmt.Errorf("organization service: org id is required")
	}
	var resp domain.GetMeResponse
	if err := c.do(ctx, http.MethodGet, "/api/organizations/"+url.PathEscape(orgID)+"/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateMemberRole sets memberID's role in orgID. Authorization is the caller's responsibility.
func (c *Client) UpdateMemberRole(ctx context.Context, orgID, memberID string, role membershipdomain.Role) error {
	body := map[string]string{"role": string(role)}
	path := "/api/organizations/" + url.PathEscape(orgID) + "/members/" + url.PathEscape(memberID)
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("organization service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("organization service: decode %s: %w", path, err)
	}
	return nil
}
