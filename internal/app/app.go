// Package app builds the long-lived services of the crawler from
// configuration, acting as the dependency injection container shared by the
// CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/batch"
	"github.com/JakeFAU/opportunity-crawler/internal/config"
	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/critic"
	"github.com/JakeFAU/opportunity-crawler/internal/extract"
	"github.com/JakeFAU/opportunity-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/opportunity-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/opportunity-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/opportunity-crawler/internal/headless/detector"
	iduuid "github.com/JakeFAU/opportunity-crawler/internal/id/uuid"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
	openaillm "github.com/JakeFAU/opportunity-crawler/internal/llm/openai"
	"github.com/JakeFAU/opportunity-crawler/internal/metrics"
	"github.com/JakeFAU/opportunity-crawler/internal/policy/blocklist"
	"github.com/JakeFAU/opportunity-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/opportunity-crawler/internal/progress"
	"github.com/JakeFAU/opportunity-crawler/internal/progress/sinks"
	"github.com/JakeFAU/opportunity-crawler/internal/search"
	"github.com/JakeFAU/opportunity-crawler/internal/search/duckduckgo"
	"github.com/JakeFAU/opportunity-crawler/internal/search/serper"
	"github.com/JakeFAU/opportunity-crawler/internal/searchloop"
	"github.com/JakeFAU/opportunity-crawler/internal/selector"
)

// App holds the services built from a Config.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	batch    *batch.Runner
	hub      *progress.Hub
	headless *headlessfetcher.Fetcher
}

// Option overrides a collaborator, mostly for tests.
type Option func(*options)

type options struct {
	evaluator  llm.Evaluator
	search     crawler.SearchTool
	pages      crawler.ContentFetcher
	registerer prometheus.Registerer
}

// WithEvaluator replaces the OpenAI evaluator.
func WithEvaluator(ev llm.Evaluator) Option {
	return func(o *options) { o.evaluator = ev }
}

// WithSearchTool replaces the configured search provider.
func WithSearchTool(tool crawler.SearchTool) Option {
	return func(o *options) { o.search = tool }
}

// WithContentFetcher replaces the configured page fetcher.
func WithContentFetcher(f crawler.ContentFetcher) Option {
	return func(o *options) { o.pages = f }
}

// WithRegisterer registers progress collectors on reg instead of the
// default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New wires every service described by cfg. It fails fast on the first
// collaborator that cannot be built.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	ev := o.evaluator
	if ev == nil {
		client, err := openaillm.New(openaillm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger.Named("evaluator"))
		if err != nil {
			return nil, fmt.Errorf("init evaluator: %w", err)
		}
		ev = client
	}

	tool := o.search
	if tool == nil {
		built, err := buildSearch(cfg, logger.Named("search"))
		if err != nil {
			return nil, err
		}
		tool = built
	}

	pages := o.pages
	if pages == nil {
		built, err := a.buildFetcher(cfg, logger.Named("fetcher"))
		if err != nil {
			return nil, err
		}
		pages = built
	}

	var emitter progress.Emitter = progress.Discard
	if cfg.Progress.Enabled {
		promSink, err := sinks.NewPrometheusSink(o.registerer)
		if err != nil {
			a.closeHeadless()
			return nil, fmt.Errorf("init progress metrics: %w", err)
		}
		a.hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
			sinks.NewLogSink(logger.Named("progress")), promSink)
		emitter = a.hub
	}

	crit, err := critic.New(ev, critic.Config{
		Description:  cfg.Prompts.Description,
		Introduction: cfg.Prompts.CriticIntroduction,
		Concurrency:  cfg.Critic.Concurrency,
	}, logger.Named("critic"))
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("init critic: %w", err)
	}
	sel, err := selector.New(ev, selector.Config{
		Description:  cfg.Prompts.Description,
		Introduction: cfg.Prompts.SelectorIntroduction,
	}, logger.Named("selector"))
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("init selector: %w", err)
	}
	loop, err := searchloop.NewLoop(searchloop.Config{
		Bounds:           searchloop.Bounds{Min: cfg.Loop.MinIterations, Max: cfg.Loop.MaxIterations},
		MaxSteps:         cfg.Loop.MaxSteps,
		FetchConcurrency: cfg.Fetcher.Concurrency,
		Prompts: searchloop.Prompts{
			Description: cfg.Prompts.Description,
			Search:      cfg.Prompts.Search,
			SelectPage:  cfg.Prompts.SelectPage,
			DecideLoop:  cfg.Prompts.DecideLoop,
		},
	}, searchloop.Dependencies{
		Evaluator: ev,
		Search:    search.NewBinding(tool, cfg.Search.NumResults),
		Fetcher:   pages,
		Critic:    crit,
		Selector:  sel,
		Progress:  emitter,
	}, logger.Named("searchloop"))
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("init search loop: %w", err)
	}

	a.batch = batch.New(loop, iduuid.New(), batch.Config{Concurrency: cfg.Batch.Concurrency}, emitter, logger.Named("batch"))
	logger.Info("application services initialized",
		zap.String("model", cfg.LLM.Model),
		zap.String("search_provider", cfg.Search.Provider),
		zap.String("fetcher_mode", cfg.Fetcher.Mode),
		zap.Bool("progress", cfg.Progress.Enabled),
	)
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Batch returns the batch runner.
func (a *App) Batch() *batch.Runner {
	return a.batch
}

// Close flushes progress sinks and stops the browser, if one was started.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
		if dropped := a.hub.Dropped(); dropped > 0 {
			a.logger.Warn("progress events dropped", zap.Int64("count", dropped))
		}
	}
	a.closeHeadless()
	return errors.Join(errs...)
}

func (a *App) closeHeadless() {
	if a.headless != nil {
		a.headless.Close()
		a.headless = nil
	}
}

func buildSearch(cfg config.Config, logger *zap.Logger) (crawler.SearchTool, error) {
	switch cfg.Search.Provider {
	case "serper":
		client, err := serper.New(serper.Config{
			APIKey:   cfg.Search.APIKey,
			Endpoint: cfg.Search.Endpoint,
			Timeout:  cfg.Search.Timeout,
		}, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("init serper: %w", err)
		}
		return client, nil
	case "duckduckgo", "":
		return duckduckgo.New(duckduckgo.Config{
			Endpoint:  cfg.Search.Endpoint,
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.Search.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
}

func (a *App) buildFetcher(cfg config.Config, logger *zap.Logger) (crawler.ContentFetcher, error) {
	extractor, err := extract.New(extract.Mode(cfg.Fetcher.Extract), cfg.Fetcher.MaxTextChars)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	opts := fetcher.Options{
		Extractor: extractor,
		Timeout:   cfg.Fetcher.Timeout,
		Logger:    logger,
	}
	if cfg.Fetcher.PerHostRPS > 0 {
		opts.Pacer = ratelimit.New(ratelimit.Config{PerHostRPS: cfg.Fetcher.PerHostRPS, Burst: cfg.Fetcher.PerHostBurst})
	}
	if gate := blocklist.New(cfg.Fetcher.BlockedDomains); gate != nil {
		opts.Gate = gate
	}
	plain := collyfetcher.New(collyfetcher.Config{UserAgent: cfg.Fetcher.UserAgent, Timeout: cfg.Fetcher.Timeout})

	switch fetcher.Mode(cfg.Fetcher.Mode) {
	case fetcher.ModeColly, "":
		opts.Primary = plain
	case fetcher.ModeHeadless:
		browser, err := a.startHeadless(cfg)
		if err != nil {
			return nil, err
		}
		opts.Primary = browser
	case fetcher.ModeAuto:
		browser, err := a.startHeadless(cfg)
		if err != nil {
			return nil, err
		}
		opts.Primary = plain
		opts.Headless = browser
		opts.Promoter = detector.NewHeuristic(cfg.Headless.PromotionThreshold)
	default:
		return nil, fmt.Errorf("unknown fetcher mode %q", cfg.Fetcher.Mode)
	}

	content, err := fetcher.NewContent(opts)
	if err != nil {
		a.closeHeadless()
		return nil, fmt.Errorf("init content fetcher: %w", err)
	}
	return content, nil
}

func (a *App) startHeadless(cfg config.Config) (*headlessfetcher.Fetcher, error) {
	browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Fetcher.UserAgent,
		NavigationTimeout: cfg.Headless.NavTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init headless fetcher: %w", err)
	}
	a.headless = browser
	return browser, nil
}
