package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	research "smallagents/00_research"
	"smallagents/config"
	"smallagents/httpclient"
	"smallagents/logging"
	"smallagents/search"
	"smallagents/types"
	"smallagents/workflow"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		query      string
		concurrent bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the built-in corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Agents.Search
			if concurrent {
				res, err := search.NewConcurrentAgent(cfg).Run(cmd.Context(), query)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}
			res, err := search.NewAgent(cfg).Run(query)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "example", "search query")
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "use the concurrent search agent")
	return cmd
}

func newAPICmd(a *app) *cobra.Command {
	var (
		method   string
		endpoint string
		data     string
		params   []string
	)
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call a REST endpoint through the API agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := httpclient.RunOptions{Params: url.Values{}}
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want key=value", p)
				}
				opts.Params.Add(k, v)
			}
			if data != "" {
				var body any
				if err := json.Unmarshal([]byte(data), &body); err != nil {
					return fmt.Errorf("invalid --data: %w", err)
				}
				opts.Data = body
			}

			agent := httpclient.NewAgent(a.cfg.Agents.API)
			defer agent.Close()

			res, err := agent.Run(cmd.Context(), method, endpoint, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method (GET or POST)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "/posts/1", "endpoint, resolved against agents.api.base_url")
	cmd.Flags().StringVar(&data, "data", "", "JSON body for POST")
	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter key=value (repeatable)")
	return cmd
}

func newSocialVideoCmd(a *app) *cobra.Command {
	var (
		topic      string
		platforms  []string
		fromReddit bool
		outputDir  string
	)
	cmd := &cobra.Command{
		Use:   "social-video",
		Short: "Generate a short video and post it to social platforms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.For("pipeline")

			if fromReddit {
				scout, err := research.New(a.cfg.Research, logging.For("research"))
				if err == nil {
					var t string
					if t, err = scout.Topic(ctx); err == nil {
						topic = t
					}
				}
				if err != nil {
					log.WithError(err).Warnf("Topic discovery failed, using %q", topic)
				}
			}

			w, err := workflow.FromConfig(ctx, a.cfg.Agents.SocialVideo, log)
			if err != nil {
				return err
			}
			defer w.Close()

			report, err := w.Run(ctx, topic, platforms)
			if err != nil {
				return err
			}

			if outputDir == "" {
				outputDir = a.cfg.OutputDir
			}
			if outputDir != "" {
				path := filepath.Join(outputDir, report.RunID, "report.json")
				saveJSON(path, report)
				log.WithField("path", path).Info("📁 Report saved")
			}

			printSummary(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", workflow.DefaultTopic, "video topic")
	cmd.Flags().StringSliceVarP(&platforms, "platforms", "p", nil, "platforms to post to (default from config)")
	cmd.Flags().BoolVar(&fromReddit, "from-reddit", false, "pick the topic from trending Reddit posts")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the run report (default output_dir)")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a sample configuration with placeholder credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", output)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			data, err := yaml.Marshal(config.Example())
			if err != nil {
				return fmt.Errorf("marshal sample config: %w", err)
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "config.example.yaml", "file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func printSummary(cmd *cobra.Command, report *types.WorkflowReport) {
	out := cmd.OutOrStdout()
	style := okStyle
	mark := "✅"
	if !report.Success {
		style, mark = failStyle, "❌"
	}
	fmt.Fprintln(out, style.Render(fmt.Sprintf("%s Posted to %d/%d platforms", mark, report.SuccessfulPosts, report.TotalPlatforms)))

	videoURL := "N/A"
	if report.Steps.VideoURL != nil {
		videoURL = *report.Steps.VideoURL
	}
	fmt.Fprintf(out, "🎬 Video: %s\n", videoURL)

	for _, r := range report.SocialPosts {
		if r.Success {
			fmt.Fprintln(out, dimStyle.Render("  ✓ "+r.Platform))
		} else {
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("  ✗ %s: %s", r.Platform, r.Error)))
		}
	}
	if report.Error != "" {
		fmt.Fprintln(out, failStyle.Render("Error: "+report.Error))
	}
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("run %s in %s", report.RunID, report.ExecutionTime.Round(time.Millisecond))))
}
