package main

import (
	"fmt"
	"time"

	"github.com/sipeed/picomind/pkg/config"
	"github.com/sipeed/picomind/pkg/knowledge"
	"github.com/sipeed/picomind/pkg/learner"
	"github.com/sipeed/picomind/pkg/logger"
	"github.com/sipeed/picomind/pkg/metrics"
	"github.com/sipeed/picomind/pkg/search"
	"github.com/sipeed/picomind/pkg/storage"
)

// app bundles the components every command works against.
type app struct {
	cfg       *config.Config
	medium    storage.Medium
	store     *knowledge.Store
	search    *search.Multi
	learner   *learner.Learner
	collector *metrics.Collector
}

// openApp opens storage, loads the knowledge base and wires the learner.
// An unreadable knowledge document is logged by the store and starts empty.
func openApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	medium, err := storage.Open(cfg.Storage.Backend, cfg.MemoryDir())
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	store := knowledge.New(medium,
		knowledge.WithKey(cfg.Storage.Key),
		knowledge.WithPolicy(retentionPolicy(cfg)),
		knowledge.WithEpisodeCap(cfg.Knowledge.EpisodeCap),
		knowledge.WithRecorder(collector),
	)

	multi := search.NewMulti(buildProviders(cfg)...)
	multi.SetObserver(collector)

	opts := learner.Options{
		OfflineMode:    cfg.Search.Offline,
		Delay:          time.Duration(cfg.Search.DelaySeconds * float64(time.Second)),
		CoreTopics:     cfg.Learning.CoreTopics,
		AdvancedTopics: cfg.Learning.AdvancedTopics,
	}
	if cfg.Search.Offline {
		offline, err := offlineKnowledge(cfg)
		if err != nil {
			medium.Close()
			return nil, err
		}
		opts.Offline = offline
	}

	collector.Observe(store.Statistics())
	return &app{
		cfg:       cfg,
		medium:    medium,
		store:     store,
		search:    multi,
		learner:   learner.New(store, multi, opts),
		collector: collector,
	}, nil
}

func (a *app) Close() error {
	return a.medium.Close()
}

// save persists the store and refreshes the metrics gauges.
func (a *app) save() error {
	err := a.store.Save()
	a.collector.Observe(a.store.Statistics())
	return err
}

func retentionPolicy(cfg *config.Config) knowledge.RetentionPolicy {
	p := knowledge.DefaultRetentionPolicy()
	if cfg.Knowledge.RetentionDays > 0 {
		p.Window = time.Duration(cfg.Knowledge.RetentionDays) * 24 * time.Hour
	}
	p.LowImportance = cfg.Knowledge.LowImportance
	p.MinAccessCount = cfg.Knowledge.MinAccessCount
	return p
}

func breakerConfig(cfg *config.Config) search.BreakerConfig {
	b := cfg.Search.Breaker
	bc := search.DefaultBreakerConfig()
	if b.MaxRequests > 0 {
		bc.MaxRequests = b.MaxRequests
	}
	if b.IntervalSeconds > 0 {
		bc.Interval = time.Duration(b.IntervalSeconds) * time.Second
	}
	if b.TimeoutSeconds > 0 {
		bc.Timeout = time.Duration(b.TimeoutSeconds) * time.Second
	}
	if b.FailureThreshold > 0 {
		bc.FailureThreshold = b.FailureThreshold
	}
	if b.MinRequests > 0 {
		bc.MinRequests = b.MinRequests
	}
	return bc
}

// buildProviders creates one breaker-wrapped provider per configured name.
// Brave is skipped without an API key.
func buildProviders(cfg *config.Config) []search.Provider {
	client := search.NewClient(time.Duration(cfg.Search.TimeoutSeconds)*time.Second, cfg.Search.MaxRetries)
	bc := breakerConfig(cfg)

	var providers []search.Provider
	for _, name := range cfg.Search.Providers {
		var p search.Provider
		switch name {
		case "duckduckgo":
			p = search.NewDuckDuckGo(client)
		case "wikipedia":
			p = search.NewWikipedia(client)
		case "brave":
			if cfg.Search.Brave.APIKey == "" {
				logger.WarnC("cli", "Brave search configured without api_key, skipping")
				continue
			}
			p = search.NewBrave(client, cfg.Search.Brave.APIKey, cfg.Search.MaxResults)
		default:
			continue
		}
		providers = append(providers, search.NewBreaker(p, bc))
	}
	return providers
}

func offlineKnowledge(cfg *config.Config) (*search.OfflineKnowledge, error) {
	seeds, err := search.LoadOfflineKnowledge(cfg.SeedFilePath())
	if err != nil {
		return nil, fmt.Errorf("load offline seeds: %w", err)
	}
	return seeds, nil
}
