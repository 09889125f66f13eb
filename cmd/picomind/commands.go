package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/picomind/pkg/knowledge"
	"github.com/sipeed/picomind/pkg/logger"
)

type rootOptions struct {
	configPath string
	workspace  string
	backend    string
	logLevel   string
	offline    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "picomind",
		Short:         "Learn topics into a persistent, self-organizing knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "path to config.json")
	root.PersistentFlags().StringVar(&opts.workspace, "workspace", "", "workspace directory (overrides config)")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "storage backend: file, sqlite or badger")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "use offline seed knowledge instead of web search")

	root.AddCommand(
		newLearnCmd(opts),
		newRecallCmd(opts),
		newConnectedCmd(opts),
		newConsolidateCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
		newSessionCmd(opts),
		newServeCmd(opts),
		newShellCmd(opts),
	)
	return root
}

// withApp loads config, opens the app for the duration of fn and closes it.
func withApp(opts *rootOptions, fn func(a *app) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WarnCF("cli", "Close storage failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return fn(a)
}

func newLearnCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <topic>...",
		Short: "Search for topics and store what was found",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runLearn(cmd.Context(), a, cmd.OutOrStdout(), args)
			})
		},
	}
}

func newRecallCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Retrieve entries matching a topic or tag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runRecall(a, cmd.OutOrStdout(), strings.Join(args, " "), limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to return (default from config)")
	return cmd
}

func newConnectedCmd(opts *rootOptions) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "connected <id>",
		Short: "List entries reachable from an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runConnected(a, cmd.OutOrStdout(), args[0], depth)
			})
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "maximum hops to follow")
	return cmd
}

func newConsolidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Evict old, unimportant, rarely used entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runConsolidate(a, cmd.OutOrStdout())
			})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runStats(a, cmd.OutOrStdout(), asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write a markdown snapshot of the knowledge base",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				path := ""
				if len(args) == 1 {
					path = args[0]
				}
				return runExport(a, cmd.OutOrStdout(), path)
			})
		},
	}
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	var cycles, perCycle int
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run a focused learning session over the configured topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runSession(cmd.Context(), a, cmd.OutOrStdout(), cycles, perCycle)
			})
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 0, "learning cycles (default from config)")
	cmd.Flags().IntVar(&perCycle, "per-cycle", 0, "topics per cycle (default from config)")
	return cmd
}

func runLearn(ctx context.Context, a *app, w io.Writer, topics []string) error {
	for _, topic := range topics {
		id, err := a.learner.Learn(ctx, topic, knowledge.SourceUserQuestion)
		if err != nil {
			return err
		}
		e, _ := a.store.Get(id)
		fmt.Fprintf(w, "Learned %s [%s] importance %.2f\n", e.Topic, id, e.Importance)
		fmt.Fprintf(w, "  %s\n", e.Summary)
	}
	return a.save()
}

func runRecall(a *app, w io.Writer, query string, limit int) error {
	if limit <= 0 {
		limit = a.cfg.Knowledge.DefaultLimit
	}
	entries := a.store.Retrieve(query, limit)
	if len(entries) == 0 {
		fmt.Fprintf(w, "Nothing known about %q\n", query)
		return nil
	}
	printEntries(w, entries)
	// access counts changed
	return a.save()
}

func runConnected(a *app, w io.Writer, id string, depth int) error {
	if _, ok := a.store.Get(id); !ok {
		return fmt.Errorf("no entry with id %s", id)
	}
	entries := a.store.Connected(id, depth)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No connected entries")
		return nil
	}
	printEntries(w, entries)
	return nil
}

func runConsolidate(a *app, w io.Writer) error {
	evicted := a.store.Consolidate()
	if err := a.save(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Consolidated: %d entries evicted, %d remain\n", evicted, a.store.Len())
	return nil
}

func runStats(a *app, w io.Writer, asJSON bool) error {
	st := a.store.Statistics()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(w, "Entries:            %d\n", st.Entries)
	fmt.Fprintf(w, "Topics:             %d\n", st.Topics)
	fmt.Fprintf(w, "Connections:        %d\n", st.Connections)
	fmt.Fprintf(w, "Average importance: %.2f\n", st.AverageImportance)
	fmt.Fprintf(w, "Episodes:           %d\n", st.Episodes)
	fmt.Fprintf(w, "Memory efficiency:  %.2f\n", st.Efficiency)
	fmt.Fprintf(w, "Search:             %s\n", searchSummary(a))
	if len(st.MostAccessed) > 0 {
		fmt.Fprintln(w, "Most accessed:")
		for _, m := range st.MostAccessed {
			fmt.Fprintf(w, "  %-24s %3dx  %s\n", m.Topic, m.AccessCount, m.ID)
		}
	}
	return nil
}

func runExport(a *app, w io.Writer, path string) error {
	if path == "" {
		path = filepath.Join(a.cfg.MemoryDir(), "knowledge_snapshot.md")
	}
	if err := a.store.ExportSnapshot(path); err != nil {
		return err
	}
	if a.store.Len() == 0 {
		fmt.Fprintln(w, "Knowledge base is empty, nothing exported")
		return nil
	}
	fmt.Fprintf(w, "Snapshot written to %s\n", path)
	return nil
}

func runSession(ctx context.Context, a *app, w io.Writer, cycles, perCycle int) error {
	if cycles <= 0 {
		cycles = a.cfg.Learning.CyclesPerSession
	}
	if perCycle <= 0 {
		perCycle = a.cfg.Learning.TopicsPerCycle
	}

	report, err := a.learner.RunSession(ctx, cycles, perCycle)
	a.collector.Observe(a.store.Statistics())

	fmt.Fprintf(w, "Session: %d cycles, %d topics learned, %d evicted in %s\n",
		report.Cycles, len(report.Topics), report.Evicted, report.Duration.Round(time.Millisecond))
	for _, t := range report.Topics {
		fmt.Fprintf(w, "  - %s\n", t)
	}
	if report.SaveErr != nil {
		return fmt.Errorf("save after session: %w", report.SaveErr)
	}
	return err
}

func printEntries(w io.Writer, entries []knowledge.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "[%s] %s (importance %.2f, accessed %dx)\n", e.ID, e.Topic, e.Importance, e.AccessCount)
		if e.Summary != "" {
			fmt.Fprintf(w, "  %s\n", e.Summary)
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(w, "  tags: %s\n", strings.Join(e.Tags, ", "))
		}
	}
}

// searchSummary names the providers Learn will query.
func searchSummary(a *app) string {
	if a.learner.Offline() {
		return "offline seeds"
	}
	providers := a.search.Providers()
	if len(providers) == 0 {
		return "none"
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ", ")
}
