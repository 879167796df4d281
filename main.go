package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"smallagents/config"
	"smallagents/logging"
	"smallagents/tracing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand shares once the config is loaded
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "smallagents",
		Short: "Run small API-calling agents",
		Long: `SmallAgents runs a handful of agents that call external APIs:
  - search        mock corpus search (sync or concurrent)
  - api           generic REST client with retries
  - social-video  concept -> Veo3 video -> Blotato posts pipeline
  - init-config   write a sample configuration`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "configuration file path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newSearchCmd(a),
		newAPICmd(a),
		newSocialVideoCmd(a),
		newInitConfigCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(a.logLevel)
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return err
	}
	shutdown, err := tracing.Setup(cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown(cmd.Context())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func saveJSON(path string, v any) {
	log := logging.Logger()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warnf("could not create %s: %v", filepath.Dir(path), err)
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warnf("could not marshal JSON for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warnf("could not save %s: %v", path, err)
	}
}
