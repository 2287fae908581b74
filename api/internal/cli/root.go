package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/analysis/gemini"
	"compliance-check/api/internal/config"
	"compliance-check/api/internal/logging"
)

// EngineFactory builds the remote model from the loaded configuration.
type EngineFactory func(ctx context.Context, cfg *config.Config) (analysis.Engine, error)

func geminiEngine(ctx context.Context, cfg *config.Config) (analysis.Engine, error) {
	e, err := gemini.New(ctx, gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

type options struct {
	cfgFile   string
	verbose   bool
	noColor   bool
	newEngine EngineFactory
}

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	return newRootCommand(version, commit, date, geminiEngine)
}

func newRootCommand(version, commit, date string, engines EngineFactory) *cobra.Command {
	o := &options{newEngine: engines}
	rootCmd := &cobra.Command{
		Use:   "compliance",
		Short: "Screenshot compliance checker",
		Long: `compliance checks screenshots of apps, ads and documents against current laws
and regulations using a multimodal model with live web search.

It serves a web app, a JSON API and an optional Telegram bot, and can check a
single image from the terminal.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&o.cfgFile, "config", "c", "", "config file path (default $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newServeCommand(o))
	rootCmd.AddCommand(newCheckCommand(o))
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version == "dev" || version == "" {
				version = "development"
			}
			if commit == "none" || commit == "" {
				commit = "local-build"
			}
			if date == "unknown" || date == "" {
				date = "local-build"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "compliance %s (%s) built on %s\n", version, commit, date)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// load reads the configuration and builds the logger. quiet raises the
// default level so terminal output is not drowned in logs.
func (o *options) load(quiet bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case o.verbose:
		cfg.LogLevel = "debug"
	case quiet:
		cfg.LogLevel = "warn"
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// client builds the analysis client around the configured engine.
func (o *options) client(ctx context.Context, cfg *config.Config, log *zap.Logger) (*analysis.Client, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}
	engine, err := o.newEngine(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("analysis engine: %w", err)
	}
	log.Info("analysis engine ready", zap.String("engine", engine.Name()), zap.String("model", engine.GetModel()))
	return analysis.NewClient(engine, log, analysis.WithTimeout(cfg.AnalysisTimeout)), nil
}
