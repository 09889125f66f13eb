package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sipeed/picomind/pkg/logger"
)

const (
	wikipediaAPI     = "https://en.wikipedia.org/w/api.php"
	wikipediaREST    = "https://en.wikipedia.org/api/rest_v1"
	wikiSearchLimit  = 5
	wikiPageLimit    = 3
	wikiSummaryLimit = 1500
)

// Wikipedia searches article titles, then fetches a summary for the best hits.
type Wikipedia struct {
	client  *Client
	apiURL  string
	restURL string
}

func NewWikipedia(client *Client) *Wikipedia {
	return &Wikipedia{client: client, apiURL: wikipediaAPI, restURL: wikipediaREST}
}

// WithEndpoints overrides the MediaWiki action API and REST base URLs.
func (w *Wikipedia) WithEndpoints(apiURL, restURL string) *Wikipedia {
	w.apiURL = apiURL
	w.restURL = restURL
	return w
}

func (w *Wikipedia) Name() string {
	return "wikipedia"
}

func (w *Wikipedia) Search(ctx context.Context, query string) ([]Result, error) {
	titles, err := w.searchTitles(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("wikipedia: %w", err)
	}
	if len(titles) > wikiPageLimit {
		titles = titles[:wikiPageLimit]
	}

	var results []Result
	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := w.summary(ctx, title)
		if err != nil {
			// one bad page should not sink the whole query
			logger.DebugCF("search", "Wikipedia page skipped", map[string]interface{}{
				"title": title,
				"error": err.Error(),
			})
			continue
		}
		if r.Text != "" {
			results = append(results, r)
		}
	}
	return results, nil
}

func (w *Wikipedia) searchTitles(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", fmt.Sprintf("%d", wikiSearchLimit))
	params.Set("format", "json")

	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := w.client.GetJSON(ctx, w.apiURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		if s.Title != "" {
			titles = append(titles, s.Title)
		}
	}
	return titles, nil
}

func (w *Wikipedia) summary(ctx context.Context, title string) (Result, error) {
	path := url.PathEscape(strings.ReplaceAll(title, " ", "_"))

	var resp struct {
		Title       string `json:"title"`
		Extract     string `json:"extract"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := w.client.GetJSON(ctx, w.restURL+"/page/summary/"+path, nil, &resp); err != nil {
		return Result{}, err
	}

	if resp.Title == "" {
		resp.Title = title
	}
	return Result{
		URL:    resp.ContentURLs.Desktop.Page,
		Title:  resp.Title,
		Text:   truncate(resp.Extract, wikiSummaryLimit),
		Source: w.Name(),
	}, nil
}
