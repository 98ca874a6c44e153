// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Loop     LoopConfig     `mapstructure:"loop"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Critic   CriticConfig   `mapstructure:"critic"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// LLMConfig selects and reaches the foundation model.
type LLMConfig struct {
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float32       `mapstructure:"temperature"`
}

// BatchConfig controls how many loop instances run per batch.
type BatchConfig struct {
	Tries       int `mapstructure:"tries"`
	Concurrency int `mapstructure:"concurrency"`
}

// LoopConfig bounds each search-loop instance.
type LoopConfig struct {
	MinIterations int `mapstructure:"min_iterations"`
	MaxIterations int `mapstructure:"max_iterations"`
	MaxSteps      int `mapstructure:"max_steps"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	NumResults int           `mapstructure:"num_results"`
}

// FetcherConfig governs candidate page retrieval and text extraction.
type FetcherConfig struct {
	Mode        string        `mapstructure:"mode"`
	Extract     string        `mapstructure:"extract"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	// MaxTextChars caps extracted text; zero keeps the whole page.
	MaxTextChars int    `mapstructure:"max_text_chars"`
	UserAgent    string `mapstructure:"user_agent"`
	// PerHostRPS paces requests to one host; zero disables pacing.
	PerHostRPS     float64  `mapstructure:"per_host_rps"`
	PerHostBurst   int      `mapstructure:"per_host_burst"`
	BlockedDomains []string `mapstructure:"blocked_domains"`
}

// HeadlessConfig configures the chromedp renderer used by the headless and
// auto fetcher modes.
type HeadlessConfig struct {
	MaxParallel        int           `mapstructure:"max_parallel"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	PromotionThreshold int           `mapstructure:"promotion_threshold"`
}

// CriticConfig bounds concurrent critiques.
type CriticConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// PromptsConfig holds the instructions given to the evaluator.
type PromptsConfig struct {
	Description          string `mapstructure:"description"`
	Search               string `mapstructure:"search"`
	SelectPage           string `mapstructure:"select_page"`
	DecideLoop           string `mapstructure:"decide_loop"`
	CriticIntroduction   string `mapstructure:"critic_introduction"`
	SelectorIntroduction string `mapstructure:"selector_introduction"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// OutputConfig selects the report format of the run command.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// ServerConfig controls the run service.
type ServerConfig struct {
	Port       int `mapstructure:"port"`
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// ProgressConfig toggles the progress hub.
type ProgressConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SearchPaths are the directories probed for config.yaml when no file is
// given explicitly.
var SearchPaths = []string{".", "$HOME/.oppcrawler", "/etc/oppcrawler/"}

// New returns a Viper instance with defaults and environment bindings in
// place, ready for flags to be bound before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("OPPCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// provider-conventional variables work without the prefix
	_ = v.BindEnv("llm.api_key", "OPPCRAWLER_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("search.api_key", "OPPCRAWLER_SEARCH_API_KEY", "SERPER_API_KEY")
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment using a fresh Viper.
func Load(path string) (Config, error) {
	return LoadWith(New(), path)
}

// LoadWith reads path into v and decodes the result. Without a path, a
// config.yaml is looked up in SearchPaths; finding none is not an error.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		for _, dir := range SearchPaths {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "openai:gpt-4o")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("batch.tries", 3)
	v.SetDefault("batch.concurrency", 0)
	v.SetDefault("loop.min_iterations", 1)
	v.SetDefault("loop.max_iterations", 3)
	v.SetDefault("loop.max_steps", 200)
	v.SetDefault("search.provider", "duckduckgo")
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.timeout", 20*time.Second)
	v.SetDefault("search.num_results", 10)
	v.SetDefault("fetcher.mode", "colly")
	v.SetDefault("fetcher.extract", "text")
	v.SetDefault("fetcher.timeout", 10*time.Second)
	v.SetDefault("fetcher.concurrency", 4)
	v.SetDefault("fetcher.max_text_chars", 0)
	v.SetDefault("fetcher.user_agent", "opportunity-crawler/0.1")
	v.SetDefault("fetcher.per_host_rps", 0.0)
	v.SetDefault("fetcher.per_host_burst", 2)
	v.SetDefault("fetcher.blocked_domains", []string{})
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout", 30*time.Second)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("critic.concurrency", 4)
	v.SetDefault("prompts.description", DefaultDescriptionPrompt)
	v.SetDefault("prompts.search", DefaultSearchPrompt)
	v.SetDefault("prompts.select_page", DefaultSelectPagePrompt)
	v.SetDefault("prompts.decide_loop", DefaultDecideLoopPrompt)
	v.SetDefault("prompts.critic_introduction", DefaultCriticIntroduction)
	v.SetDefault("prompts.selector_introduction", DefaultSelectorIntroduction)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("output.format", "text")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.queue_depth", 16)
	v.SetDefault("progress.enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Batch.Tries < 1 {
		errs = append(errs, fmt.Errorf("batch.tries must be >= 1"))
	}
	if c.Batch.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("batch.concurrency must be >= 0"))
	}
	if c.Loop.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("loop.max_iterations must be >= 1"))
	}
	if c.Loop.MinIterations < 0 {
		errs = append(errs, fmt.Errorf("loop.min_iterations must be >= 0"))
	}
	if c.Loop.MinIterations > c.Loop.MaxIterations {
		errs = append(errs, fmt.Errorf("loop.min_iterations (%d) must not exceed loop.max_iterations (%d)",
			c.Loop.MinIterations, c.Loop.MaxIterations))
	}
	if c.Loop.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("loop.max_steps must be >= 1"))
	}
	switch c.Search.Provider {
	case "duckduckgo":
	case "serper":
		if c.Search.APIKey == "" {
			errs = append(errs, fmt.Errorf("search.api_key must be set when search.provider is serper"))
		}
	default:
		errs = append(errs, fmt.Errorf("search.provider %q is not supported", c.Search.Provider))
	}
	switch c.Fetcher.Mode {
	case "colly", "headless", "auto":
	default:
		errs = append(errs, fmt.Errorf("fetcher.mode %q is not supported", c.Fetcher.Mode))
	}
	switch c.Fetcher.Extract {
	case "text", "readability":
	default:
		errs = append(errs, fmt.Errorf("fetcher.extract %q is not supported", c.Fetcher.Extract))
	}
	if c.Fetcher.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetcher.timeout must be > 0"))
	}
	if c.Fetcher.PerHostRPS < 0 {
		errs = append(errs, fmt.Errorf("fetcher.per_host_rps must be >= 0"))
	}
	if c.Fetcher.MaxTextChars < 0 {
		errs = append(errs, fmt.Errorf("fetcher.max_text_chars must be >= 0"))
	}
	switch c.Output.Format {
	case "text", "json", "markdown":
	default:
		errs = append(errs, fmt.Errorf("output.format %q is not supported", c.Output.Format))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0"))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, fmt.Errorf("server.workers must be > 0"))
	}
	if c.Server.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("server.queue_depth must be > 0"))
	}
	for key, prompt := range map[string]string{
		"prompts.description":           c.Prompts.Description,
		"prompts.search":                c.Prompts.Search,
		"prompts.select_page":           c.Prompts.SelectPage,
		"prompts.decide_loop":           c.Prompts.DecideLoop,
		"prompts.critic_introduction":   c.Prompts.CriticIntroduction,
		"prompts.selector_introduction": c.Prompts.SelectorIntroduction,
	} {
		if strings.TrimSpace(prompt) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", key))
		}
	}
	return errors.Join(errs...)
}
