package search

import (
	"context"
	"fmt"
	"net/url"
)

const (
	duckDuckGoEndpoint = "https://api.duckduckgo.com/"
	ddgRelatedLimit    = 3
	ddgTitleLimit      = 100
)

// DuckDuckGo queries the instant answer API. No key is required.
type DuckDuckGo struct {
	client   *Client
	endpoint string
}

func NewDuckDuckGo(client *Client) *DuckDuckGo {
	return &DuckDuckGo{client: client, endpoint: duckDuckGoEndpoint}
}

// WithEndpoint points the provider at another base URL.
func (d *DuckDuckGo) WithEndpoint(endpoint string) *DuckDuckGo {
	d.endpoint = endpoint
	return d
}

func (d *DuckDuckGo) Name() string {
	return "duckduckgo"
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var resp struct {
		Abstract      string `json:"Abstract"`
		AbstractURL   string `json:"AbstractURL"`
		Heading       string `json:"Heading"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := d.client.GetJSON(ctx, d.endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}

	var results []Result
	if resp.Abstract != "" {
		title := resp.Heading
		if title == "" {
			title = query
		}
		results = append(results, Result{
			URL:    resp.AbstractURL,
			Title:  title,
			Text:   resp.Abstract,
			Source: d.Name(),
		})
	}

	related := resp.RelatedTopics
	if len(related) > ddgRelatedLimit {
		related = related[:ddgRelatedLimit]
	}
	for _, topic := range related {
		// category groups carry no Text of their own
		if topic.Text == "" {
			continue
		}
		results = append(results, Result{
			URL:    topic.FirstURL,
			Title:  truncate(topic.Text, ddgTitleLimit),
			Text:   topic.Text,
			Source: d.Name(),
		})
	}
	return results, nil
}
