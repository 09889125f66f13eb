package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// ErrMissingAPIKey is returned by providers that need a key and have none.
var ErrMissingAPIKey = errors.New("search: api key not configured")

// Brave queries the Brave web search API.
type Brave struct {
	client     *Client
	apiKey     string
	maxResults int
	endpoint   string
}

func NewBrave(client *Client, apiKey string, maxResults int) *Brave {
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 5
	}
	return &Brave{
		client:     client,
		apiKey:     apiKey,
		maxResults: maxResults,
		endpoint:   braveEndpoint,
	}
}

func (b *Brave) WithEndpoint(endpoint string) *Brave {
	b.endpoint = endpoint
	return b
}

func (b *Brave) Name() string {
	return "brave"
}

func (b *Brave) Search(ctx context.Context, query string) ([]Result, error) {
	if b.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	searchURL := fmt.Sprintf("%s?q=%s&count=%d", b.endpoint, url.QueryEscape(query), b.maxResults)
	header := http.Header{}
	header.Set("X-Subscription-Token", b.apiKey)

	var resp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := b.client.GetJSON(ctx, searchURL, header, &resp); err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}

	var results []Result
	for i, item := range resp.Web.Results {
		if i >= b.maxResults {
			break
		}
		if item.Description == "" {
			continue
		}
		results = append(results, Result{
			URL:    item.URL,
			Title:  item.Title,
			Text:   item.Description,
			Source: b.Name(),
		})
	}
	return results, nil
}
