package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newslens",
		Short:         "Score news articles for sentiment and themes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(analyzeCmd())
	root.AddCommand(collectCmd())
	root.AddCommand(reanalyzeCmd())
	root.AddCommand(themesCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func analyzeCmd() *cobra.Command {
	var (
		title      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Score a text without storing it (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, title, args, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "article title, weighted twice")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func collectCmd() *cobra.Command {
	var feeds []string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch configured feeds, then store and score new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, feeds)
		},
	}

	cmd.Flags().StringSliceVar(&feeds, "feed", nil, "only collect these feed names")
	return cmd
}

func reanalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reanalyze",
		Short: "Rescore every stored article with the current themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReanalyze(cmd)
		},
	}
}

func themesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "Manage the theme taxonomy",
	}

	var jsonOutput bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List themes with their article counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThemesList(cmd, jsonOutput)
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	var (
		name        string
		keywords    []string
		color       string
		description string
	)
	add := &cobra.Command{
		Use:   "add <id>",
		Short: "Create a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThemesAdd(cmd, args[0], name, keywords, color, description)
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (required)")
	add.Flags().StringSliceVar(&keywords, "keywords", nil, "comma separated keywords")
	add.Flags().StringVar(&color, "color", "", "hex color, e.g. #6366f1")
	add.Flags().StringVar(&description, "description", "", "free text description")
	_ = add.MarkFlagRequired("name")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a theme and its article associations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThemesRemove(cmd, args[0])
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
