package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpggio/mcp-wrangler/internal/config"
)

type flags struct {
	port     int
	mcpURL   string
	model    string
	logLevel string
	envFile  string
}

func newRootCmd() *cobra.Command {
	var f flags

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the MCP server and serve the host API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	root := &cobra.Command{
		Use:           "wrangler",
		Short:         "MCP host bridging an MCP server and an OpenAI-compatible model",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}

	pf := root.PersistentFlags()
	pf.IntVar(&f.port, "port", 0, "HTTP listen port (overrides PORT)")
	pf.StringVar(&f.mcpURL, "mcp-url", "", "MCP server URL (overrides MCP_SERVER_URL)")
	pf.StringVar(&f.model, "model", "", "completion model (overrides MODEL)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(serve)
	return root
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}

	fs := cmd.Flags()
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("mcp-url") {
		cfg.MCP.URL = f.mcpURL
	}
	if fs.Changed("model") {
		if cfg.OpenAI.SamplingModel == cfg.OpenAI.Model {
			cfg.OpenAI.SamplingModel = f.model
		}
		cfg.OpenAI.Model = f.model
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
