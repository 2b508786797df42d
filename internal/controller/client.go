package controller

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

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/apmonboard/apmonboard/internal/resilience"
)

const (
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second

	clientName = "apm-controller"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials identify the OAuth API client for one controller account.
// Resolved by the secrets loader before the client is constructed; immutable
// for the lifetime of a run.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccountName  string
	Environment  string
}

// ClientConfig holds configuration for the controller client.
type ClientConfig struct {
	// Credentials for the OAuth client-credentials exchange (required).
	Credentials Credentials

	// BaseURL is the controller base URL (optional, derived from the account
	// name when empty).
	BaseURL string

	// HTTPClient executes GET/POST/PUT calls (optional). If nil, a resilient
	// client with the controller retry policy is used.
	HTTPClient HTTPDoer

	// DeleteClient executes DELETE calls (optional). DELETE is deliberately
	// not subject to transport retry; if nil a plain client is used.
	DeleteClient HTTPDoer

	// Timeout is the per-request timeout (optional).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an authenticated APM controller client. Authenticate must be
// called once before any other method; the session token is immutable
// afterwards and shared by every call in the run.
type Client struct {
	baseURL      string
	creds        Credentials
	httpClient   HTTPDoer
	deleteClient HTTPDoer
	logger       zerolog.Logger

	token       string
	tokenExpiry time.Time
}

// NewClient creates a new controller client. The returned client is not yet
// authenticated.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.saas.appdynamics.com/controller/", cfg.Credentials.AccountName)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(clientName)
		clientCfg.Timeout = timeout
		httpClient = resilience.NewClient(clientCfg)
	}

	deleteClient := cfg.DeleteClient
	if deleteClient == nil {
		deleteClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:      baseURL,
		creds:        cfg.Credentials,
		httpClient:   httpClient,
		deleteClient: deleteClient,
		logger:       cfg.Logger,
	}
}

// BaseURL returns the resolved controller base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TokenExpiry returns the expiry of the current access token, zero when the
// token carries no exp claim or authentication has not happened yet.
func (c *Client) TokenExpiry() time.Time {
	return c.tokenExpiry
}

// Authenticate performs the OAuth client-credentials exchange and stores the
// access token for all subsequent calls. There is no refresh: a run lives
// shorter than the token.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.creds.ClientID + "@" + c.creds.AccountName},
		"client_secret": {c.creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"api/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: "authenticate", Message: "token endpoint unreachable", Err: ErrAuthentication}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: "authenticate", Message: "reading token response", Err: ErrAuthentication}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Op:      "authenticate",
			Status:  resp.StatusCode,
			Message: "token exchange rejected",
			Err:     ErrAuthentication,
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return &Error{Op: "authenticate", Message: "malformed token response", Err: ErrAuthentication}
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = tokenExpiry(c.token)

	evt := c.logger.Info().Str("account", c.creds.AccountName)
	if !c.tokenExpiry.IsZero() {
		evt = evt.Time("token_expiry", c.tokenExpiry)
	}
	evt.Msg("authenticated with controller")

	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the token
// is opaque to us and only logged for operator visibility.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// ApplicationID resolves an application name to its numeric identifier.
// An empty result set means the application is not registered: ErrNotFound.
func (c *Client) ApplicationID(ctx context.Context, name string) (int64, error) {
	body, err := c.get(ctx, "rest/applications/"+url.PathEscape(name))
	if err != nil {
		return 0, err
	}

	var apps []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &apps); err != nil {
		return 0, &Error{Op: "lookup application", Message: "malformed application listing", Err: err}
	}
	if len(apps) == 0 {
		return 0, &Error{
			Op:      "lookup application",
			Message: fmt.Sprintf("application %q not registered", name),
			Err:     ErrNotFound,
		}
	}

	return apps[0].ID, nil
}

// TierType resolves a tier name within an application to its runtime type
// string (e.g. "Application Server").
func (c *Client) TierType(ctx context.Context, appID int64, tierName string) (string, error) {
	path := fmt.Sprintf("rest/applications/%d/tiers/%s/", appID, url.PathEscape(tierName))
	body, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}

	var tiers []struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &tiers); err != nil {
		return "", &Error{Op: "lookup tier", Message: "malformed tier listing", Err: err}
	}
	if len(tiers) == 0 {
		return "", &Error{
			Op:      "lookup tier",
			Message: fmt.Sprintf("tier %q not found in application %d", tierName, appID),
			Err:     ErrNotFound,
		}
	}

	return tiers[0].Type, nil
}

// ListHealthRules fetches the health-rule collection for an application.
func (c *Client) ListHealthRules(ctx context.Context, appID int64) ([]RuleSummary, error) {
	body, err := c.get(ctx, c.alertingPath(appID, KindHealthRules))
	if err != nil {
		return nil, err
	}

	var rules []RuleSummary
	if err := json.Unmarshal(body, &rules); err != nil {
		return nil, &Error{Op: "list health rules", Message: "malformed health-rule listing", Err: err}
	}
	return rules, nil
}

// GetHealthRule fetches one health rule's full definition by id. The document
// is never cached; threshold updates always act on a fresh copy.
func (c *Client) GetHealthRule(ctx context.Context, appID, ruleID int64) (Document, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%d", c.alertingPath(appID, KindHealthRules), ruleID))
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &Error{Op: "get health rule", Message: "malformed health-rule document", Err: err}
	}
	return doc, nil
}

// PutHealthRule replaces one health rule's full definition.
func (c *Client) PutHealthRule(ctx context.Context, appID, ruleID int64, doc Document) (*Response, error) {
	path := fmt.Sprintf("%s/%d", c.alertingPath(appID, KindHealthRules), ruleID)
	return c.send(ctx, http.MethodPut, path, doc)
}

// CreateResource posts a rendered payload to an alerting namespace. Business
// status codes (201, 409, ...) are returned in the Response for the caller to
// interpret; only a transport failure yields an error.
func (c *Client) CreateResource(ctx context.Context, appID int64, kind ResourceKind, payload Document) (*Response, error) {
	return c.send(ctx, http.MethodPost, c.alertingPath(appID, kind), payload)
}

// ListResources fetches the collection for an alerting namespace, used to
// map names to remote identifiers.
func (c *Client) ListResources(ctx context.Context, appID int64, kind ResourceKind) ([]ResourceSummary, error) {
	body, err := c.get(ctx, c.alertingPath(appID, kind))
	if err != nil {
		return nil, err
	}

	var resources []ResourceSummary
	if err := json.Unmarshal(body, &resources); err != nil {
		return nil, &Error{Op: "list " + string(kind), Message: "malformed listing", Err: err}
	}
	return resources, nil
}

// DeleteResource removes one alerting resource by id. DELETE is a single
// attempt, never retried at transport level.
func (c *Client) DeleteResource(ctx context.Context, appID int64, kind ResourceKind, id int64) (int, error) {
	u := fmt.Sprintf("%s%s/%d", c.baseURL, c.alertingPath(appID, kind), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("creating delete request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.deleteClient.Do(req)
	if err != nil {
		return 0, &Error{Op: "delete " + string(kind), Message: "request failed", Err: ErrUnavailable}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) alertingPath(appID int64, kind ResourceKind) string {
	return fmt.Sprintf("alerting/rest/v1/applications/%d/%s", appID, kind)
}

// get executes an authenticated GET and returns the body for 2xx responses.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "GET " + path, Message: "request failed", Err: ErrUnavailable}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "GET " + path, Message: "reading response", Err: ErrUnavailable}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Op:      "GET " + path,
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
			Err:     statusErr(resp.StatusCode),
		}
	}

	return body, nil
}

// send executes an authenticated POST or PUT with a JSON body. The response
// status is returned untouched.
func (c *Client) send(ctx context.Context, method, path string, body any) (*Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.requestURL(path), bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: method + " " + path, Message: "request failed", Err: ErrUnavailable}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: method + " " + path, Message: "reading response", Err: ErrUnavailable}
	}

	return &Response{Status: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) requestURL(path string) string {
	// The controller wants explicit JSON output on its legacy REST namespaces.
	if strings.Contains(path, "?") {
		return c.baseURL + path + "&output=json"
	}
	return c.baseURL + path + "?output=json"
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}

func statusErr(status int) error {
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrUnavailable
}
