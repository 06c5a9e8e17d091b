package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/newslens/internal/config"
	"github.com/elonfeng/newslens/pkg/analysis"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "database:\n  path: " + filepath.Join(dir, "cli.db") + "\nlog:\n  level: disabled\nfeeds: []\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeCommandJSON(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "analyze", "--json", "--title", "Guerre",
		"Le conflit à la frontière provoque une crise grave.")
	require.NoError(t, err)

	var res analysis.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Sentiment.Type.Valid())
	assert.Contains(t, res.Themes, "geopolitique")
}

func TestThemesCommands(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "--config", cfg, "themes", "add", "sport", "--name", "Sport", "--keywords", "football,rugby")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "themes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "football, rugby")

	_, err = execute(t, "--config", cfg, "themes", "rm", "sport")
	require.NoError(t, err)

	_, err = execute(t, "--config", cfg, "themes", "rm", "sport")
	assert.Error(t, err)
}

func TestBuildSources(t *testing.T) {
	cfg := config.Default()

	sources, err := buildSources(cfg, nil)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "rss", sources[0].Name())

	_, err = buildSources(cfg, []string{"missing"})
	assert.Error(t, err)

	cfg.Feeds = nil
	sources, err = buildSources(cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestBuildAlertManager(t *testing.T) {
	cfg := config.Default()
	assert.False(t, buildAlertManager(cfg).HasNotifiers())

	cfg.Alerts.Webhook.Enabled = true
	cfg.Alerts.Webhook.URL = "https://example.com/hook"
	assert.True(t, buildAlertManager(cfg).HasNotifiers())
}
