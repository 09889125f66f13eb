package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/sipeed/picomind/pkg/secrets"
)

type Config struct {
	Workspace     string              `json:"workspace" env:"PICOMIND_WORKSPACE" validate:"required"`
	Log           LogConfig           `json:"log"`
	Storage       StorageConfig       `json:"storage"`
	Knowledge     KnowledgeConfig     `json:"knowledge"`
	Search        SearchConfig        `json:"search"`
	Learning      LearningConfig      `json:"learning"`
	Consolidation ConsolidationConfig `json:"consolidation"`
	Monitor       MonitorConfig       `json:"monitor"`
	Metrics       MetricsConfig       `json:"metrics"`
	Secrets       SecretsConfig       `json:"secrets"`
	mu            sync.RWMutex
}

type LogConfig struct {
	Level string `json:"level" env:"PICOMIND_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `json:"json" env:"PICOMIND_LOG_JSON"`
}

type StorageConfig struct {
	Backend string `json:"backend" env:"PICOMIND_STORAGE_BACKEND" validate:"omitempty,oneof=file sqlite badger"`
	Key     string `json:"key" env:"PICOMIND_STORAGE_KEY"`
}

type KnowledgeConfig struct {
	RetentionDays  int     `json:"retention_days" env:"PICOMIND_KNOWLEDGE_RETENTION_DAYS" validate:"gte=0"`
	LowImportance  float64 `json:"low_importance" env:"PICOMIND_KNOWLEDGE_LOW_IMPORTANCE" validate:"gte=0,lte=1"`
	MinAccessCount int     `json:"min_access_count" env:"PICOMIND_KNOWLEDGE_MIN_ACCESS_COUNT" validate:"gte=0"`
	EpisodeCap     int     `json:"episode_cap" env:"PICOMIND_KNOWLEDGE_EPISODE_CAP" validate:"gte=0"`
	DefaultLimit   int     `json:"default_limit" env:"PICOMIND_KNOWLEDGE_DEFAULT_LIMIT" validate:"gte=0"`
}

type BraveConfig struct {
	APIKey string `json:"api_key" env:"PICOMIND_SEARCH_BRAVE_API_KEY"`
}

type BreakerConfig struct {
	MaxRequests      uint32  `json:"max_requests" env:"PICOMIND_SEARCH_BREAKER_MAX_REQUESTS"`
	IntervalSeconds  int     `json:"interval_seconds" env:"PICOMIND_SEARCH_BREAKER_INTERVAL_SECONDS" validate:"gte=0"`
	TimeoutSeconds   int     `json:"timeout_seconds" env:"PICOMIND_SEARCH_BREAKER_TIMEOUT_SECONDS" validate:"gte=0"`
	FailureThreshold float64 `json:"failure_threshold" env:"PICOMIND_SEARCH_BREAKER_FAILURE_THRESHOLD" validate:"gte=0,lte=1"`
	MinRequests      uint32  `json:"min_requests" env:"PICOMIND_SEARCH_BREAKER_MIN_REQUESTS"`
}

type SearchConfig struct {
	Providers       []string      `json:"providers" env:"PICOMIND_SEARCH_PROVIDERS" validate:"dive,oneof=duckduckgo wikipedia brave"`
	TimeoutSeconds  int           `json:"timeout_seconds" env:"PICOMIND_SEARCH_TIMEOUT_SECONDS" validate:"gte=0"`
	MaxRetries      int           `json:"max_retries" env:"PICOMIND_SEARCH_MAX_RETRIES" validate:"gte=0"`
	DelaySeconds    float64       `json:"delay_seconds" env:"PICOMIND_SEARCH_DELAY_SECONDS" validate:"gte=0"`
	MaxResults      int           `json:"max_results" env:"PICOMIND_SEARCH_MAX_RESULTS" validate:"gte=0"`
	Offline         bool          `json:"offline" env:"PICOMIND_SEARCH_OFFLINE"`
	OfflineSeedFile string        `json:"offline_seed_file" env:"PICOMIND_SEARCH_OFFLINE_SEED_FILE"`
	Brave           BraveConfig   `json:"brave"`
	Breaker         BreakerConfig `json:"breaker"`
}

type LearningConfig struct {
	CoreTopics       []string `json:"core_topics" env:"PICOMIND_LEARNING_CORE_TOPICS"`
	AdvancedTopics   []string `json:"advanced_topics" env:"PICOMIND_LEARNING_ADVANCED_TOPICS"`
	CyclesPerSession int      `json:"cycles_per_session" env:"PICOMIND_LEARNING_CYCLES_PER_SESSION" validate:"gte=0"`
	TopicsPerCycle   int      `json:"topics_per_cycle" env:"PICOMIND_LEARNING_TOPICS_PER_CYCLE" validate:"gte=0"`
}

type ConsolidationConfig struct {
	Enabled  bool   `json:"enabled" env:"PICOMIND_CONSOLIDATION_ENABLED"`
	Schedule string `json:"schedule" env:"PICOMIND_CONSOLIDATION_SCHEDULE" validate:"required_if=Enabled true,omitempty,cron_expr"`
}

type MonitorConfig struct {
	Enabled bool `json:"enabled" env:"PICOMIND_MONITOR_ENABLED"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"PICOMIND_METRICS_ENABLED"`
	Addr    string `json:"addr" env:"PICOMIND_METRICS_ADDR" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

type SecretsConfig struct {
	Encrypt bool `json:"encrypt" env:"PICOMIND_SECRETS_ENCRYPT"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.picomind/workspace",
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Backend: "file",
			Key:     "knowledge_base",
		},
		Knowledge: KnowledgeConfig{
			RetentionDays:  30,
			LowImportance:  0.3,
			MinAccessCount: 2,
			EpisodeCap:     1000,
			DefaultLimit:   5,
		},
		Search: SearchConfig{
			Providers:      []string{"duckduckgo", "wikipedia"},
			TimeoutSeconds: 10,
			MaxRetries:     2,
			DelaySeconds:   1,
			MaxResults:     5,
			Breaker: BreakerConfig{
				MaxRequests:      1,
				IntervalSeconds:  60,
				TimeoutSeconds:   300,
				FailureThreshold: 0.6,
				MinRequests:      3,
			},
		},
		Learning: LearningConfig{
			CyclesPerSession: 3,
			TopicsPerCycle:   3,
		},
		Consolidation: ConsolidationConfig{
			Enabled:  true,
			Schedule: "0 3 * * *",
		},
		Monitor: MonitorConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// secretField is a config value sealed on save, named by its JSON path.
type secretField struct {
	name  string
	value *string
}

func secretFields(cfg *Config) []secretField {
	return []secretField{
		{"search.brave.api_key", &cfg.Search.Brave.APIKey},
	}
}

func keyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), secrets.KeyFile)
}

// LoadConfig layers the JSON file at path, then PICOMIND_* environment
// variables, over DefaultConfig. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		fmt.Fprintf(os.Stderr, "Warning: config file not found at %s, using defaults\n", path)
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := openSecrets(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	return cfg, nil
}

// openSecrets unseals sealed values in place. With encryption on, a file
// that still holds a plaintext secret is rewritten sealed.
func openSecrets(path string, cfg *Config) error {
	var kr *secrets.KeyRing
	plaintext := false
	for _, f := range secretFields(cfg) {
		if *f.value == "" {
			continue
		}
		if !secrets.IsSealed(*f.value) {
			plaintext = true
			continue
		}
		if kr == nil {
			var err error
			if kr, err = secrets.OpenKeyRing(keyPath(path)); err != nil {
				return fmt.Errorf("config: open key ring: %w", err)
			}
		}
		plain, err := kr.Unseal(f.name, *f.value)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		*f.value = plain
	}

	if plaintext && cfg.Secrets.Encrypt {
		if err := SaveConfig(path, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to seal config secrets: %v\n", err)
		}
	}
	return nil
}

// SaveConfig writes cfg as indented JSON. With encryption on, secrets are
// sealed in the written copy only and the file is created 0600.
func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	data, err := json.Marshal(cfg)
	encrypt := cfg.Secrets.Encrypt
	cfg.mu.RUnlock()
	if err != nil {
		return err
	}

	perm := os.FileMode(0644)
	if encrypt {
		if data, err = sealDocument(path, data); err != nil {
			return err
		}
		perm = 0600
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, out.Bytes(), perm)
}

// sealDocument decodes an encoded config, seals its secret fields and
// encodes it again.
func sealDocument(path string, data []byte) ([]byte, error) {
	var doc Config
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	kr, err := secrets.OpenKeyRing(keyPath(path))
	if err != nil {
		return nil, fmt.Errorf("config: open key ring: %w", err)
	}
	for _, f := range secretFields(&doc) {
		if *f.value, err = kr.Seal(f.name, *f.value); err != nil {
			return nil, fmt.Errorf("config: seal %s: %w", f.name, err)
		}
	}
	return json.Marshal(&doc)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterValidation("cron_expr", func(fl validator.FieldLevel) bool {
			return gronx.New().IsValid(fl.Field().String())
		})
	})
	return validate
}

// Validate rejects values the rest of the program cannot run with. Every
// failing field is reported by its JSON path.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	err := configValidator().Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: %v fails %s", field, fe.Value(), rule))
	}
	return fmt.Errorf("config: invalid %s", strings.Join(msgs, "; "))
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

// MemoryDir is where the knowledge document and storage files live.
func (c *Config) MemoryDir() string {
	return filepath.Join(c.WorkspacePath(), "memory")
}

// SeedFilePath resolves the offline seed file relative to the workspace.
func (c *Config) SeedFilePath() string {
	c.mu.RLock()
	p := expandHome(c.Search.OfflineSeedFile)
	c.mu.RUnlock()
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkspacePath(), p)
}

// expandHome resolves a leading "~" to the user's home directory.
func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
