// Package search fetches raw text about a topic from free web sources and
// turns it into structured knowledge content.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picomind/pkg/logger"
)

// Result is one raw search hit.
type Result struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Provider is a search backend. Search may return an empty slice with a nil error.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// Observer is told about every provider call made through Multi.
type Observer interface {
	SearchCompleted(provider string, err error)
}

// ErrAllProvidersFailed is returned by Multi when no provider succeeded.
var ErrAllProvidersFailed = errors.New("search: all providers failed")

// Multi fans a query out to several providers concurrently.
type Multi struct {
	providers []Provider
	observer  Observer
}

func NewMulti(providers ...Provider) *Multi {
	return &Multi{providers: providers}
}

// SetObserver registers o for per-provider outcomes.
func (m *Multi) SetObserver(o Observer) {
	m.observer = o
}

func (m *Multi) Name() string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Providers returns the wrapped providers in query order.
func (m *Multi) Providers() []Provider {
	return append([]Provider(nil), m.providers...)
}

// Search queries every provider and concatenates the results in provider
// order. Failures are logged and skipped.
func (m *Multi) Search(ctx context.Context, query string) ([]Result, error) {
	if len(m.providers) == 0 {
		return nil, nil
	}

	perProvider := make([][]Result, len(m.providers))
	errs := make([]error, len(m.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		i, p := i, p
		g.Go(func() error {
			results, err := p.Search(gctx, query)
			if m.observer != nil {
				m.observer.SearchCompleted(p.Name(), err)
			}
			if err != nil {
				errs[i] = err
				logger.WarnCF("search", fmt.Sprintf("%s search failed", p.Name()), map[string]interface{}{
					"query": query,
					"error": err.Error(),
				})
				return nil
			}
			perProvider[i] = results
			return nil
		})
	}
	// Workers never return errors; failures are collected per provider.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []Result
	failed := 0
	for i := range m.providers {
		if errs[i] != nil {
			failed++
			continue
		}
		all = append(all, perProvider[i]...)
	}
	if failed == len(m.providers) {
		return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
	}

	logger.InfoCF("search", fmt.Sprintf("Found %d results for: %s", len(all), query), map[string]interface{}{
		"providers": len(m.providers),
		"failed":    failed,
	})
	return all, nil
}
