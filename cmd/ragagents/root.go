package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentkit-go/ragagents/config"
	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/recipes"
	"github.com/agentkit-go/ragagents/server"
	"github.com/agentkit-go/ragagents/splitter"
	"github.com/agentkit-go/ragagents/telemetry"
)

// envFactory builds the recipe environment from configuration.
type envFactory func(ctx context.Context, cfg *config.Config, rec *telemetry.Recorder) (*recipes.Env, error)

type app struct {
	configPath string
	logLevel   string

	in     io.Reader
	out    io.Writer
	newEnv envFactory

	// split chunks the agentic RAG posts. Nil selects the token splitter.
	split  *splitter.Splitter
	listen func(ctx context.Context, srv *server.Server, addr string) error

	cfg     *config.Config
	metrics *telemetry.Recorder
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{in: in, out: out, newEnv: recipes.FromConfig, listen: func(ctx context.Context, srv *server.Server, addr string) error {
		return srv.ListenAndServe(ctx, addr)
	}}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ragagents",
		Short:         "Retrieval-augmented agents on a state graph runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn, error or none (overrides the config)")

	root.AddCommand(
		a.quickstartCmd(),
		a.searchCmd(),
		a.ragCmd(),
		a.agenticRAGCmd(),
		a.supervisorCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads configuration and applies the log level.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	log.SetLogLevel(level)
	a.cfg = cfg
	if cfg.Metrics.Enabled {
		a.metrics = telemetry.New(prometheus.NewRegistry())
	}
	return nil
}

func (a *app) env(ctx context.Context) (*recipes.Env, error) {
	env, err := a.newEnv(ctx, a.cfg, a.metrics)
	if err != nil {
		return nil, err
	}
	env.Out = a.out
	return env, nil
}
