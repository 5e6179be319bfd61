// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/itchyny/gojq"

	"github.com/AegisLabs/aegis/global"
)

// ServiceURLs holds the resource service base URLs.
type ServiceURLs struct {
	Account string `yaml:"account"`
	Friends string `yaml:"friends"`
	Stats   string `yaml:"stats"`
	Events  string `yaml:"events"`
}

// DefaultServiceURLs returns the production resource service hosts.
func DefaultServiceURLs() ServiceURLs {
	return ServiceURLs{
		Account: "https://account-public-service-prod.ol.epicgames.com",
		Friends: "https://friends-public-service-prod.ol.epicgames.com",
		Stats:   "https://statsproxy-public-service-live.ol.epicgames.com",
		Events:  "https://events-public-service-live.ol.epicgames.com",
	}
}

// ServiceError represents a rejected resource request.
type ServiceError struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// Error implements the error interface
func (e ServiceError) Error() string {
	return fmt.Sprintf("service request to %s failed: %s (HTTP %d)", e.URL, e.Message, e.StatusCode)
}

// restClient is the shared request helper for the thin resource services.
// It rides the signed HTTP client, so every call carries the current
// session's bearer token without touching the credential store here.
type restClient struct {
	httpClient *http.Client
	logger     global.Logger
}

func newRESTClient(httpClient *http.Client, logger global.Logger) *restClient {
	return &restClient{httpClient: httpClient, logger: logger}
}

// do sends a request and returns the response body for 2xx responses.
func (r *restClient) do(ctx context.Context, method, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, NewNetworkError(requestURL, method, "failed to create request", err, false)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(requestURL, method, "request failed", err, isTimeout(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(requestURL, method, "failed to read response", err, false)
	}
	if resp.StatusCode >= 300 {
		var errResp errorResponse
		message := "request rejected"
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.ErrorMessage != "" {
			message = errResp.ErrorMessage
		}
		return nil, &ServiceError{URL: requestURL, StatusCode: resp.StatusCode, Message: message}
	}
	return body, nil
}

// getResource fetches and decodes a resource by tag.
func (r *restClient) getResource(ctx context.Context, requestURL string, tag resourceTag) (interface{}, error) {
	body, err := r.do(ctx, http.MethodGet, requestURL)
	if err != nil {
		return nil, err
	}
	return decodeResource(tag, body)
}

// Accounts looks up public account records.
type Accounts struct {
	rest *restClient
	base string
}

// ByID fetches an account by its id.
func (a *Accounts) ByID(ctx context.Context, accountID string) (*Account, error) {
	requestURL := a.base + "/account/api/public/account/" + url.PathEscape(accountID)
	result, err := a.rest.getResource(ctx, requestURL, tagAccount)
	if err != nil {
		return nil, err
	}
	return result.(*Account), nil
}

// ByDisplayName fetches an account by display name.
func (a *Accounts) ByDisplayName(ctx context.Context, displayName string) (*Account, error) {
	requestURL := a.base + "/account/api/public/account/displayName/" + url.PathEscape(displayName)
	result, err := a.rest.getResource(ctx, requestURL, tagAccount)
	if err != nil {
		return nil, err
	}
	return result.(*Account), nil
}

// Friends manages the friends list.
type Friends struct {
	rest *restClient
	base string
	self func() string
}

// List returns the friends list of the authenticated account.
func (f *Friends) List(ctx context.Context) ([]Friend, error) {
	requestURL := f.base + "/friends/api/public/friends/" + url.PathEscape(f.self())
	result, err := f.rest.getResource(ctx, requestURL, tagFriendList)
	if err != nil {
		return nil, err
	}
	return result.([]Friend), nil
}

// Add sends (or accepts) a friend request toward the given account.
func (f *Friends) Add(ctx context.Context, accountID string) error {
	requestURL := f.base + "/friends/api/public/friends/" + url.PathEscape(f.self()) + "/" + url.PathEscape(accountID)
	_, err := f.rest.do(ctx, http.MethodPost, requestURL)
	return err
}

// Remove deletes a friend (or declines a pending request).
func (f *Friends) Remove(ctx context.Context, accountID string) error {
	requestURL := f.base + "/friends/api/public/friends/" + url.PathEscape(f.self()) + "/" + url.PathEscape(accountID)
	_, err := f.rest.do(ctx, http.MethodDelete, requestURL)
	return err
}

// Stats fetches account statistics.
type Stats struct {
	rest *restClient
	base string
}

// For returns the raw statistics window for an account.
func (s *Stats) For(ctx context.Context, accountID string) (*StatsPayload, error) {
	requestURL := s.base + "/statsproxy/api/statsv2/account/" + url.PathEscape(accountID)
	result, err := s.rest.getResource(ctx, requestURL, tagStats)
	if err != nil {
		return nil, err
	}
	return result.(*StatsPayload), nil
}

// Query fetches an account's statistics and filters them with a jq
// expression, e.g. `.stats | to_entries | map(select(.key | contains("wins")))`.
func (s *Stats) Query(ctx context.Context, accountID, expression string) ([]interface{}, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid stats query %q: %w", expression, err)
	}

	requestURL := s.base + "/statsproxy/api/statsv2/account/" + url.PathEscape(accountID)
	body, err := s.rest.do(ctx, http.MethodGet, requestURL)
	if err != nil {
		return nil, err
	}

	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("malformed stats payload: %w", err)
	}

	var results []interface{}
	iter := query.Run(value)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if iterErr, isErr := v.(error); isErr {
			return nil, fmt.Errorf("stats query failed: %w", iterErr)
		}
		results = append(results, v)
	}
	return results, nil
}

// Events fetches event/tournament data.
type Events struct {
	rest *restClient
	base string
}

// Windows returns the event windows visible to an account.
func (e *Events) Windows(ctx context.Context, accountID string) ([]EventWindow, error) {
	requestURL := e.base + "/api/v1/events/download/" + url.PathEscape(accountID)
	result, err := e.rest.getResource(ctx, requestURL, tagEventWindows)
	if err != nil {
		return nil, err
	}
	return result.([]EventWindow), nil
}
