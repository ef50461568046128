// Package ticketing provides a client for the service-management REST API.
//
// This package handles:
// - Resolving app instances (tenant installation records) by node id or filter
// - Writing workspace details back onto an app instance after installation
// - Resolving people by primary email when mapping chat users to requesters
// - Creating requests (tickets) on behalf of a tenant
//
// A Client is scoped either to the provider account (handshake operations)
// or to one tenant account (ticket creation); tenant scope is expressed
// through the X-Account header on every call.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cosmix/deskbridge/pkg/constants"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"go.uber.org/zap"
)

// Client manages calls against the ticketing system's REST API.
type Client struct {
	baseURL    string
	token      string
	account    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a ticketing API client authenticated with the given
// token and scoped to the given account.
func NewClient(baseURL, token, account string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		account: account,
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		logger: logger,
	}
}

// SetMetrics sets the metrics instance used to record API requests
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// WithAccount returns a copy of the client scoped to another account,
// sharing the underlying HTTP client.
func (c *Client) WithAccount(account string) *Client {
	clone := *c
	clone.account = account
	return &clone
}

// Ping verifies API reachability, used by the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/app_instances?per_page=1", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ticketing API returned status %d", resp.StatusCode)
	}
	return nil
}

// AppInstance fetches one installation record by node id. Returns
// (nil, nil) when the record does not exist.
func (c *Client) AppInstance(ctx context.Context, nodeID string) (*AppInstance, error) {
	start := time.Now()
	var instance AppInstance
	found, err := c.getJSON(ctx, "/app_instances/"+url.PathEscape(nodeID), &instance)
	c.recordRequest("get_app_instance", start, err)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &instance, nil
}

// FindAppInstances lists installation records matching the filter.
func (c *Client) FindAppInstances(ctx context.Context, filter AppInstanceFilter) ([]AppInstance, error) {
	start := time.Now()

	q := url.Values{}
	if filter.OfferingReference != "" {
		q.Set("offering_reference", filter.OfferingReference)
	}
	if filter.SlackWorkspaceID != "" {
		q.Set("slack_workspace_id", filter.SlackWorkspaceID)
	}
	if filter.EnabledByCustomer {
		q.Set("enabled_by_customer", "true")
	}
	if filter.ExcludeSuspended {
		q.Set("suspended", "false")
	}

	var instances []AppInstance
	_, err := c.getJSON(ctx, "/app_instances?"+q.Encode(), &instances)
	c.recordRequest("find_app_instances", start, err)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// ConfigureAppInstance writes the linked workspace id and name onto the
// installation record. This is the only mutation the bridge performs on
// ticketing-system tenant state.
func (c *Client) ConfigureAppInstance(ctx context.Context, nodeID, workspaceID, workspaceName string) error {
	start := time.Now()

	payload := map[string]string{
		"slack_workspace_id":   workspaceID,
		"slack_workspace_name": workspaceName,
	}
	err := c.send(ctx, http.MethodPatch, "/app_instances/"+url.PathEscape(nodeID), payload, nil)
	c.recordRequest("configure_app_instance", start, err)
	return err
}

// PersonByEmail resolves a person by exact primary email, returning the
// first active, non-disabled match. Returns (nil, nil) when nobody
// matches.
func (c *Client) PersonByEmail(ctx context.Context, email string) (*Person, error) {
	start := time.Now()

	q := url.Values{}
	q.Set("primary_email", email)

	var people []Person
	_, err := c.getJSON(ctx, "/people?"+q.Encode(), &people)
	c.recordRequest("person_by_email", start, err)
	if err != nil {
		return nil, err
	}
	for i := range people {
		if people[i].Disabled {
			continue
		}
		return &people[i], nil
	}
	return nil, nil
}

// CreateTicket creates a request with the bridge's fixed category and
// source tag.
func (c *Client) CreateTicket(ctx context.Context, subject, note, requestedBy string) (*Ticket, error) {
	start := time.Now()

	payload := NewTicket{
		Subject:     subject,
		Note:        note,
		Category:    constants.TicketCategory,
		Source:      constants.TicketSource,
		RequestedBy: requestedBy,
	}
	var ticket Ticket
	err := c.send(ctx, http.MethodPost, "/requests", payload, &ticket)
	c.recordRequest("create_ticket", start, err)
	if err != nil {
		return nil, err
	}
	if ticket.ID == "" {
		return nil, fmt.Errorf("create ticket: response missing id")
	}
	return &ticket, nil
}

// TicketAccount fetches the account owning a request, used to build the
// user-facing ticket URL.
func (c *Client) TicketAccount(ctx context.Context, ticketID string) (string, error) {
	start := time.Now()

	var ticket Ticket
	found, err := c.getJSON(ctx, "/requests/"+url.PathEscape(ticketID), &ticket)
	c.recordRequest("ticket_account", start, err)
	if err != nil {
		return "", err
	}
	if !found || ticket.Account == "" {
		return "", fmt.Errorf("request %s has no account", ticketID)
	}
	return ticket.Account, nil
}

// getJSON performs a GET and decodes the body into out. The bool result
// reports whether the resource exists; a 404 is not an error.
func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ticketing API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, c.unexpectedStatus(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

// send performs a mutating call with a JSON body, decoding the response
// into out when out is non-nil.
func (c *Client) send(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ticketing API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.unexpectedStatus(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.account != "" {
		req.Header.Set("X-Account", c.account)
	}
}

func (c *Client) unexpectedStatus(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	c.logger.Error("ticketing API error",
		zap.String("url", resp.Request.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(raw)),
	)
	return fmt.Errorf("ticketing API returned status %s", strconv.Itoa(resp.StatusCode))
}

func (c *Client) recordRequest(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.TicketingRequestsTotal.WithLabelValues(operation, status).Inc()
	c.metrics.TicketingRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
