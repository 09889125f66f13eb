package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sipeed/picomind/pkg/secrets"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Knowledge.RetentionDays != 30 || cfg.Knowledge.LowImportance != 0.3 || cfg.Knowledge.MinAccessCount != 2 {
		t.Fatalf("unexpected retention defaults: %+v", cfg.Knowledge)
	}
	if cfg.Consolidation.Schedule != "0 3 * * *" {
		t.Fatalf("unexpected schedule %q", cfg.Consolidation.Schedule)
	}
	if cfg.Storage.Key != "knowledge_base" {
		t.Fatalf("unexpected storage key %q", cfg.Storage.Key)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfig_MergesDefaults(t *testing.T) {
	path := writeConfig(t, `{"storage": {"backend": "sqlite"}, "knowledge": {"retention_days": 7}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend: got %q", cfg.Storage.Backend)
	}
	if cfg.Knowledge.RetentionDays != 7 {
		t.Errorf("retention_days: got %d", cfg.Knowledge.RetentionDays)
	}
	if cfg.Knowledge.MinAccessCount != 2 {
		t.Errorf("min_access_count default lost: got %d", cfg.Knowledge.MinAccessCount)
	}
	if cfg.Storage.Key != "knowledge_base" {
		t.Errorf("storage key default lost: got %q", cfg.Storage.Key)
	}
}

func TestLoadConfig_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.MaxResults != 5 {
		t.Fatalf("expected default max_results, got %d", cfg.Search.MaxResults)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{"storage": `)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"storage": {"backend": "sqlite"}}`)
	t.Setenv("PICOMIND_STORAGE_BACKEND", "badger")
	t.Setenv("PICOMIND_SEARCH_PROVIDERS", "wikipedia,brave")
	t.Setenv("PICOMIND_SEARCH_OFFLINE", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "badger" {
		t.Errorf("env did not override backend: %q", cfg.Storage.Backend)
	}
	if strings.Join(cfg.Search.Providers, ",") != "wikipedia,brave" {
		t.Errorf("env did not override providers: %v", cfg.Search.Providers)
	}
	if !cfg.Search.Offline {
		t.Error("env did not set offline")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Learning.CoreTopics = []string{"memory", "learning"}
	cfg.Metrics.Enabled = true

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(loaded.Learning.CoreTopics, ",") != "memory,learning" || !loaded.Metrics.Enabled {
		t.Fatalf("round trip lost values: %+v %+v", loaded.Learning, loaded.Metrics)
	}
}

func TestSaveConfig_SealsAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Secrets.Encrypt = true
	cfg.Search.Brave.APIKey = "BSA-secret"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Search.Brave.APIKey != "BSA-secret" {
		t.Fatal("SaveConfig mutated the caller's config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "BSA-secret") {
		t.Fatal("API key written in the clear")
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected 0600 for sealed config, got %v", info.Mode().Perm())
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Search.Brave.APIKey != "BSA-secret" {
		t.Fatalf("expected unsealed key, got %q", loaded.Search.Brave.APIKey)
	}
}

func TestLoadConfig_SealsPlaintextWhenEncryptEnabled(t *testing.T) {
	path := writeConfig(t, `{"secrets": {"encrypt": true}, "search": {"brave": {"api_key": "BSA-plain"}}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.Brave.APIKey != "BSA-plain" {
		t.Fatalf("expected plaintext in memory, got %q", cfg.Search.Brave.APIKey)
	}

	data, _ := os.ReadFile(path)
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if !secrets.IsSealed(onDisk.Search.Brave.APIKey) {
		t.Fatalf("expected sealed key on disk, got %q", onDisk.Search.Brave.APIKey)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"low importance", func(c *Config) { c.Knowledge.LowImportance = 1.5 }, "knowledge.low_importance"},
		{"retention", func(c *Config) { c.Knowledge.RetentionDays = -1 }, "knowledge.retention_days"},
		{"min access", func(c *Config) { c.Knowledge.MinAccessCount = -5 }, "knowledge.min_access_count"},
		{"episode cap", func(c *Config) { c.Knowledge.EpisodeCap = -1 }, "knowledge.episode_cap"},
		{"delay", func(c *Config) { c.Search.DelaySeconds = -2 }, "search.delay_seconds"},
		{"timeout", func(c *Config) { c.Search.TimeoutSeconds = -3 }, "search.timeout_seconds"},
		{"retries", func(c *Config) { c.Search.MaxRetries = -2 }, "search.max_retries"},
		{"provider", func(c *Config) { c.Search.Providers = []string{"wikipedia", "bing"} }, "search.providers[1]"},
		{"breaker threshold", func(c *Config) { c.Search.Breaker.FailureThreshold = 4 }, "search.breaker.failure_threshold"},
		{"topics per cycle", func(c *Config) { c.Learning.TopicsPerCycle = -1 }, "learning.topics_per_cycle"},
		{"schedule", func(c *Config) { c.Consolidation.Schedule = "every night" }, "consolidation.schedule"},
		{"missing schedule", func(c *Config) { c.Consolidation.Schedule = "" }, "consolidation.schedule"},
		{"metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
		{"workspace", func(c *Config) { c.Workspace = "" }, "workspace"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.field+":") {
				t.Fatalf("error should name %s, got %v", tc.field, err)
			}
		})
	}
}

func TestValidate_AcceptsOptionalZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = ""
	cfg.Log.Level = ""
	cfg.Search.Providers = nil
	cfg.Consolidation.Enabled = false
	cfg.Consolidation.Schedule = ""
	cfg.Metrics.Addr = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected zero values to validate, got %v", err)
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Knowledge.MinAccessCount = -5
	cfg.Search.MaxRetries = -2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"knowledge.min_access_count", "search.max_retries"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error missing %s: %v", field, err)
		}
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = "/srv/picomind"
	if got := cfg.MemoryDir(); got != filepath.Join("/srv/picomind", "memory") {
		t.Errorf("MemoryDir: got %q", got)
	}

	cfg.Search.OfflineSeedFile = "seeds.yaml"
	if got := cfg.SeedFilePath(); got != filepath.Join("/srv/picomind", "seeds.yaml") {
		t.Errorf("relative seed file: got %q", got)
	}
	cfg.Search.OfflineSeedFile = "/etc/seeds.yaml"
	if got := cfg.SeedFilePath(); got != "/etc/seeds.yaml" {
		t.Errorf("absolute seed file: got %q", got)
	}

	home, _ := os.UserHomeDir()
	cfg.Workspace = "~/ws"
	if got := cfg.WorkspacePath(); got != home+"/ws" {
		t.Errorf("home expansion: got %q", got)
	}
}
