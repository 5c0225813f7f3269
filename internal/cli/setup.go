package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/toolpipe/toolpipe/internal/config"
	"github.com/toolpipe/toolpipe/internal/logger"
	"github.com/toolpipe/toolpipe/pkg/builtin"
	"github.com/toolpipe/toolpipe/pkg/pipeline"
	"github.com/toolpipe/toolpipe/pkg/schema"
)

// initApp loads the configuration, configures logging and builds a pipeline
// with builtin and config-declared tools registered.
func initApp() (*config.Config, *config.Loader, *pipeline.Pipeline, io.Closer, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logCfg := logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}

	logCloser, err := logger.Setup(logCfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		logCloser.Close()
		return nil, nil, nil, nil, err
	}

	return cfg, loader, p, logCloser, nil
}

// buildPipeline constructs a pipeline from configuration and registers the
// builtin and config-declared tools.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	p := pipeline.New(pipeline.Options{
		DefaultTimeout: time.Duration(cfg.Pipeline.DefaultTimeoutMs) * time.Millisecond,
		CacheCapacity:  cfg.Pipeline.CacheCapacity,
		MetricsLimit:   cfg.Pipeline.MetricsLimit,
		DefaultRoles:   cfg.Pipeline.DefaultRoles,
	})

	if err := builtin.Register(p); err != nil {
		return nil, fmt.Errorf("failed to register builtin tools: %w", err)
	}

	if _, err := registerConfigTools(p, cfg.Tools); err != nil {
		return nil, err
	}

	for _, policy := range cfg.Policies {
		p.Policies().AddPolicy(policy.Tool, policy.Roles)
	}

	return p, nil
}

// registerConfigTools registers config-declared tools with pass-through
// handlers and returns their names for later reload bookkeeping.
func registerConfigTools(p *pipeline.Pipeline, tools []config.ToolConfig) ([]string, error) {
	names := make([]string, 0, len(tools))

	for _, tc := range tools {
		tool, err := buildConfigTool(tc)
		if err != nil {
			return nil, err
		}
		if err := p.Register(tool); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", tc.Name, err)
		}
		names = append(names, tc.Name)
	}

	return names, nil
}

func buildConfigTool(tc config.ToolConfig) (pipeline.Tool, error) {
	params := make([]schema.Parameter, 0, len(tc.Parameters))
	for _, pc := range tc.Parameters {
		params = append(params, schema.Parameter{
			Name:        pc.Name,
			Type:        pc.Type,
			Description: pc.Description,
			Required:    pc.Required,
			Default:     pc.Default,
		})
	}

	s, err := schema.ObjectSchema(params)
	if err != nil {
		return pipeline.Tool{}, fmt.Errorf("tool %s: %w", tc.Name, err)
	}

	return pipeline.Tool{
		Name:        tc.Name,
		Description: tc.Description,
		Schema:      s,
		// Pass-through handler until business logic is wired in.
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			return input, nil
		},
		Config: pipeline.ToolConfig{
			Timeout:      time.Duration(tc.TimeoutMs) * time.Millisecond,
			RetryOnStall: tc.RetryOnStall,
			DisableCache: tc.DisableCache,
			CacheTTL:     time.Duration(tc.CacheTTLMs) * time.Millisecond,
			AllowedRoles: tc.AllowedRoles,
		},
	}, nil
}
