package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/turnmesh"
	"github.com/hupe1980/turnmesh/config"
	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/generator"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/memory"
	"github.com/hupe1980/turnmesh/metrics"
	"github.com/hupe1980/turnmesh/model"
	anthropicmodel "github.com/hupe1980/turnmesh/model/anthropic"
	openaimodel "github.com/hupe1980/turnmesh/model/openai"
	"github.com/hupe1980/turnmesh/remote"
	"github.com/hupe1980/turnmesh/safety"
)

// build assembles a TurnMesh from cfg. reg may be nil to disable metrics.
// Producers are registered as remote generators, then the LLM, then the
// fallback, which fixes their tie-break order.
func build(cfg *config.Config, reg prometheus.Registerer, logger logging.Logger) (*turnmesh.TurnMesh, error) {
	engineCfg := cfg.Engine
	engineCfg.SlowAnnotators = cfg.SlowAnnotators()

	var collector *metrics.Collector
	if reg != nil {
		collector = metrics.New(reg)
	}

	var checker core.SafetyChecker
	if len(cfg.Safety.Blocklist) > 0 {
		checker = safety.NewBlocklist(cfg.Safety.Blocklist...)
	}

	m := turnmesh.New(func(o *turnmesh.Options) {
		o.EngineConfig = engineCfg
		o.Logger = logger
		o.Metrics = collector
		o.Safety = checker
	})

	cache := memory.NewInMemoryCache(func(o *memory.Options) {
		o.MaxEntries = cfg.Remote.CacheMaxEntries
	})

	client := remote.NewClient(func(o *remote.Options) {
		o.Cache = cache
		o.CacheTTL = cfg.Remote.CacheTTL
		o.Logger = logger
	})

	for _, a := range cfg.Remote.Annotators {
		task := remote.NewAnnotator(a.Name, a.URL, func(o *remote.AnnotatorOptions) {
			o.Client = client
			o.Dependencies = a.Dependencies
			o.ResultPath = a.ResultPath
			if a.Timeout > 0 {
				o.Timeout = a.Timeout
			}
			if a.Default != "" {
				o.Default = core.Static(a.Default)
			}
		})

		if err := m.RegisterAnnotator(task); err != nil {
			return nil, err
		}
	}

	for _, g := range cfg.Remote.Generators {
		gen := remote.NewGenerator(g.Name, g.URL, func(o *remote.GeneratorOptions) {
			o.Client = client
		})

		if err := m.RegisterGenerator(gen); err != nil {
			return nil, err
		}
	}

	llm, err := newModel(cfg.LLM)
	if err != nil {
		return nil, err
	}

	if llm != nil {
		gen := generator.NewLLM(cfg.LLM.Name, llm, func(o *generator.LLMOptions) {
			if cfg.LLM.Instruction != "" {
				o.Instruction = generator.NewInstructionFromText(cfg.LLM.Instruction)
			}
		})

		if err := m.RegisterGenerator(gen); err != nil {
			return nil, err
		}
	}

	fallback := generator.NewFallback(func(o *generator.FallbackOptions) {
		o.Name = engineCfg.FallbackProducer
	})

	if err := m.RegisterGenerator(fallback); err != nil {
		return nil, err
	}

	return m, nil
}

// newModel returns nil for the "none" provider.
func newModel(cfg config.LLMConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderOpenAI:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newLogger(cfg config.LoggingConfig) *logging.TurnLogger {
	return logging.NewSlogLogger(logging.ParseLevel(cfg.Level), cfg.Format, false).WithComponent("turnmesh")
}
