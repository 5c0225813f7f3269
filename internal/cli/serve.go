package cli

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/toolpipe/toolpipe/internal/config"
	"github.com/toolpipe/toolpipe/internal/metrics"
	"github.com/toolpipe/toolpipe/pkg/mcp"
	"github.com/toolpipe/toolpipe/pkg/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve registered tools over MCP on stdin/stdout",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, loader, p, logCloser, err := initApp()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	// Prometheus observer.
	promMetrics := metrics.New()
	p.AddListener(metrics.NewListener(promMetrics))

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promMetrics.Handler())
		go func() {
			log.Info().Str("listen", cfg.Metrics.Listen).Msg("Serving Prometheus metrics")
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				log.Error().Err(err).Msg("Metrics endpoint failed")
			}
		}()
	}

	// Periodic cache sweep.
	janitor, err := pipeline.NewJanitor(p.Cache(), cfg.Pipeline.SweepSchedule)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	// Hot reload of config-declared tools.
	reloader := newToolReloader(p, cfg.Tools)
	watcher, err := config.NewWatcher(loader, reloader.reload)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Config watching disabled")
	} else {
		defer watcher.Stop()
	}

	log.Info().Int("tools", p.Registry().Len()).Msg("Serving tools over MCP stdio")

	server := mcp.NewServer(p, "toolpipe", version)
	return server.Serve(cmd.Context(), os.Stdin, os.Stdout)
}

// toolReloader swaps config-declared tools in place when the config file
// changes. Builtin tools are left alone.
type toolReloader struct {
	mu       sync.Mutex
	pipeline *pipeline.Pipeline
	current  []string
}

func newToolReloader(p *pipeline.Pipeline, tools []config.ToolConfig) *toolReloader {
	names := make([]string, 0, len(tools))
	for _, tc := range tools {
		names = append(names, tc.Name)
	}
	return &toolReloader{pipeline: p, current: names}
}

func (r *toolReloader) reload(cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.current {
		r.pipeline.Remove(name)
	}

	names, err := registerConfigTools(r.pipeline, cfg.Tools)
	if err != nil {
		return fmt.Errorf("failed to re-register config tools: %w", err)
	}
	r.current = names

	for _, policy := range cfg.Policies {
		r.pipeline.Policies().AddPolicy(policy.Tool, policy.Roles)
	}

	log.Info().Int("tools", len(names)).Msg("Config tools reloaded")

	return nil
}
