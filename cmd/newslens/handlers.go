package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/newslens/pkg/server"
	"github.com/elonfeng/newslens/pkg/theme"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func runAnalyze(cmd *cobra.Command, title string, args []string, jsonOutput bool) error {
	content := strings.Join(args, " ")
	if content == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		content = string(data)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.waitClassifier(ctx)

	res, err := a.service.Analyze(ctx, title, content)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, res)
	}

	fmt.Fprintf(out, "sentiment:  %s (%.3f)\n", res.Sentiment.Type, res.Sentiment.Score)
	fmt.Fprintf(out, "confidence: %.3f\n", res.Sentiment.Confidence)
	fmt.Fprintf(out, "model:      %s\n", res.Sentiment.Model)
	if len(res.Themes) == 0 {
		fmt.Fprintln(out, "themes:     none")
		return nil
	}

	ids := make([]string, 0, len(res.Themes))
	for id := range res.Themes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return res.Themes[ids[i]] > res.Themes[ids[j]] })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTHEME\tRELEVANCE")
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%.3f\n", id, res.Themes[id])
	}
	return w.Flush()
}

func runCollect(cmd *cobra.Command, feeds []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.waitClassifier(ctx)

	sources, err := buildSources(a.cfg, feeds)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no feeds configured")
	}

	stats := a.scheduler(sources).Collect(ctx)
	fmt.Fprintf(os.Stderr, "fetched %d, stored %d, duplicates %d, skipped %d, failed %d, alerts %d\n",
		stats.Fetched, stats.Inserted, stats.Duplicates, stats.Skipped, stats.Failed, stats.Alerts)
	return nil
}

func runReanalyze(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.waitClassifier(ctx)

	stats, err := a.service.Reanalyze(ctx)
	if err != nil {
		return fmt.Errorf("reanalyze: %w", err)
	}
	fmt.Fprintf(os.Stderr, "analyzed %d/%d articles, %d theme labels, %d failed\n",
		stats.Analyzed, stats.Total, stats.ThemesDetected, stats.Failed)
	return nil
}

func runThemesList(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	themes, err := a.themes.List(ctx)
	if err != nil {
		return err
	}
	stats, err := a.themes.Statistics(ctx)
	if err != nil {
		return err
	}
	counts := make(map[string]int, len(stats))
	for _, s := range stats {
		counts[s.ID] = s.ArticleCount
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, themes)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tARTICLES\tKEYWORDS")
	for _, t := range themes {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.Name, counts[t.ID], strings.Join(t.Keywords, ", "))
	}
	return w.Flush()
}

func runThemesAdd(cmd *cobra.Command, id, name string, keywords []string, color, description string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t := theme.Theme{ID: id, Name: name, Keywords: keywords, Color: color, Description: description}
	if err := a.themes.Create(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "theme %s created; run `newslens reanalyze` to score stored articles against it\n", id)
	return nil
}

func runThemesRemove(cmd *cobra.Command, id string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.themes.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "theme %s deleted\n", id)
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newServer(a *app, collector server.Collector, port int) *server.Server {
	if port == 0 {
		port = a.cfg.Server.Port
	}
	return server.New(server.Config{
		Store:     a.db,
		Service:   a.service,
		Themes:    a.themes,
		Collector: collector,
		Gatherer:  a.registry,
		Port:      port,
		Logger:    a.log.With().Str("component", "server").Logger(),
	})
}

func runServe(cmd *cobra.Command, port int) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var collector server.Collector
	sources, err := buildSources(a.cfg, nil)
	if err != nil {
		return err
	}
	if len(sources) > 0 {
		collector = a.scheduler(sources)
	}

	return newServer(a, collector, port).ListenAndServe(ctx)
}

func runDaemon(cmd *cobra.Command, port int) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := buildSources(a.cfg, nil)
	if err != nil {
		return err
	}
	sched := a.scheduler(sources)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return newServer(a, sched, port).ListenAndServe(ctx)
	})

	err = g.Wait()
	a.log.Info().Msg("shut down")
	return err
}
