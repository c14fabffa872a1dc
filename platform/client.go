// Package platform is the REST client for the platform backend API. It owns
// the translation from HTTP status classes to the gateway's error taxonomy:
// 400-class responses on the auth endpoints mean the authorization code is
// spent or invalid, 5xx responses are transient server faults, and transport
// failures surface as network errors.
package platform

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

	"github.com/pkg/errors"
)

const defaultRequestTimeout = 30 * time.Second

// Client calls the platform backend. All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption modifies a Client during construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// errorBody is the backend's failure envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// Login performs the one-time authorization-code exchange.
func (c *Client) Login(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	body := map[string]string{
		"code":         code,
		"redirect_uri": redirectURI,
	}
	var tr TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", body, &tr); err != nil {
		return nil, errors.Wrap(err, "[Client.Login] code exchange")
	}
	return &tr, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
	}
	var tr TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/refresh", "", body, &tr); err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh] token refresh")
	}
	return &tr, nil
}

// Me fetches the profile, organisation and permissions for an access token.
func (c *Client) Me(ctx context.Context, accessToken string) (*MeResponse, error) {
	var me MeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", accessToken, nil, &me); err != nil {
		return nil, errors.Wrap(err, "[Client.Me] profile fetch")
	}
	return &me, nil
}

// Organisations lists every organisation on the platform. Super-admin only;
// the backend enforces the permission.
func (c *Client) Organisations(ctx context.Context, accessToken string) ([]Organisation, error) {
	var orgs []Organisation
	if err := c.doJSON(ctx, http.MethodGet, "/organisations", accessToken, nil, &orgs); err != nil {
		return nil, errors.Wrap(err, "[Client.Organisations] list")
	}
	return orgs, nil
}

// AccessibleOrganisations lists the organisations the token's user may act in.
func (c *Client) AccessibleOrganisations(ctx context.Context, accessToken string) ([]Organisation, error) {
	var orgs []Organisation
	if err := c.doJSON(ctx, http.MethodGet, "/organisations/accessible", accessToken, nil, &orgs); err != nil {
		return nil, errors.Wrap(err, "[Client.AccessibleOrganisations] list")
	}
	return orgs, nil
}

// RecordOrganisationSwitch posts a switch audit record. Best-effort: callers
// log and swallow the error.
func (c *Client) RecordOrganisationSwitch(ctx context.Context, accessToken, fromOrgID, toOrgID string) error {
	body := map[string]string{
		"from_organisation_id": fromOrgID,
		"to_organisation_id":   toOrgID,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/organisations/switch-audit", accessToken, body, nil); err != nil {
		return errors.Wrap(err, "[Client.RecordOrganisationSwitch] audit post")
	}
	return nil
}

// Dashboard fetches an organisation-scoped dashboard payload.
func (c *Client) Dashboard(ctx context.Context, accessToken, orgID, tool string) (*Dashboard, error) {
	path := fmt.Sprintf("/organisations/%s/dashboards/%s", url.PathEscape(orgID), url.PathEscape(tool))
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, accessToken, nil, &raw); err != nil {
		return nil, errors.Wrap(err, "[Client.Dashboard] fetch")
	}
	return &Dashboard{Tool: tool, Payload: raw}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus(resp.StatusCode, resp.Body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// classifyStatus maps a failure status to the taxonomy sentinel, keeping the
// backend's human-readable detail as wrap context.
func classifyStatus(status int, body io.Reader) error {
	var eb errorBody
	_ = json.NewDecoder(body).Decode(&eb)
	detail := eb.Detail
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errors.Wrap(ErrRateLimited, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrap(ErrUnauthenticated, detail)
	case status >= 500:
		return errors.Wrap(ErrServerError, detail)
	default:
		return errors.Wrap(ErrInvalidCode, detail)
	}
}
