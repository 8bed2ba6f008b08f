// Package scholars implements the HTTP client for the scholars directory API.
package scholars

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

const (
	activitiesPath = "/teachingActivities/linkedTo"
	usersPath      = "/users"
)

// Client talks to the directory's activities and user-listing endpoints.
type Client struct {
	baseURL  string
	perPage  int
	pageSize int
	http     *http.Client
}

var _ ports.ActivitySource = (*Client)(nil)
var _ ports.DirectorySource = (*Client)(nil)

// NewClient builds a client from API and crawl settings. A nil httpClient gets
// one with the configured request timeout.
func NewClient(api config.APIConfig, crawl config.CrawlConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: api.Timeout()}
	}
	return &Client{
		baseURL:  api.BaseURL,
		perPage:  api.PerPage,
		pageSize: crawl.PageSize,
		http:     httpClient,
	}
}

type resourceEnvelope[T any] struct {
	Resource []T `json:"resource"`
}

// LinkedActivities fetches one page of activities linked to the given subject,
// newest first with favourites leading. Non-200 responses become StatusError;
// the caller decides which codes are transient.
func (c *Client) LinkedActivities(ctx context.Context, objectID string) ([]domain.Activity, error) {
	payload := map[string]any{
		"objectId":   objectID,
		"objectType": "user",
		"pagination": map[string]int{
			"perPage":   c.perPage,
			"startFrom": 0,
		},
		"sort":            "dateDesc",
		"favouritesFirst": true,
	}

	var envelope resourceEnvelope[domain.Activity]
	if err := c.post(ctx, activitiesPath, payload, &envelope); err != nil {
		return nil, err
	}

	return envelope.Resource, nil
}

// SearchPage fetches one page of the directory's user listing. The filter block
// matches documents with missing values so no profile is excluded.
func (c *Client) SearchPage(ctx context.Context, page int) ([]domain.Profile, error) {
	payload := map[string]any{
		"params": map[string]any{
			"by":       "text",
			"type":     "user",
			"page":     page,
			"pageSize": c.pageSize,
		},
		"filters": []map[string]any{
			{"name": "department", "matchDocsWithMissingValues": true, "useValuesToFilter": false},
			{"name": "tags", "matchDocsWithMissingValues": true, "useValuesToFilter": false},
			{"name": "customFilterOne", "matchDocsWithMissingValues": true, "useValuesToFilter": false},
		},
	}

	var envelope resourceEnvelope[domain.Profile]
	if err := c.post(ctx, usersPath, payload, &envelope); err != nil {
		return nil, err
	}

	return envelope.Resource, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
