package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spur.analyzer/internal/harmonics"
	"github.com/banshee-data/spur.analyzer/internal/monitoring"
	"github.com/banshee-data/spur.analyzer/internal/testutil"
	"github.com/banshee-data/spur.analyzer/internal/version"
)

// captureLogs routes monitoring output into the returned slice for the
// duration of the test.
func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var logs []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs = append(logs, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	return &logs
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)

	p := o.cfg.Params()
	assert.Equal(t, 1000.0, p.RFMin)
	assert.Equal(t, 1500.0, p.RFMax)
	assert.Equal(t, 0.0, p.IFMin)
	assert.Equal(t, 500.0, p.IFMax)
	assert.Equal(t, 2000.0, p.LO)
	assert.Equal(t, 5, p.MaxHarm)
	assert.True(t, p.UseAlpha)
	assert.False(t, o.serve)
	assert.Empty(t, o.outputs)
}

func TestParseFlags_ConfigAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testutil.WriteFile(t, dir, "analyzer.json", `{"lo": 3000, "max_harm": 1, "rf_min": 10, "listen": ":9999"}`)

	o, err := parseFlags([]string{
		"-config", cfgPath,
		"-lo", "2500",
		"-alpha=false",
		"-out", "a.png",
		"-out", "b.html",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	p := o.cfg.Params()
	assert.Equal(t, 2500.0, p.LO, "flag overrides config")
	assert.Equal(t, 1, p.MaxHarm, "config value kept when flag unset")
	assert.Equal(t, 10.0, p.RFMin)
	assert.Equal(t, 1500.0, p.RFMax, "default used when neither sets it")
	assert.False(t, p.UseAlpha)
	assert.Equal(t, ":9999", o.cfg.GetListen())
	assert.Equal(t, outputList{"a.png", "b.html"}, o.outputs)
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-bogus"}},
		{"bad float", []string{"-lo", "abc"}},
		{"empty out", []string{"-out", ""}},
		{"stray argument", []string{"extra"}},
		{"missing config", []string{"-config", "/nonexistent/analyzer.json"}},
		{"bad mixer extension", []string{"-mixer", "table.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}

	_, err := parseFlags([]string{"-h"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestRun_Version(t *testing.T) {
	out, err := runCLI(t, "-version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Name)
	assert.Contains(t, out, version.Author)
}

func TestRun_OneShot(t *testing.T) {
	captureLogs(t)
	dir := t.TempDir()
	png := filepath.Join(dir, "chart.png")
	html := filepath.Join(dir, "charts", "chart.html")

	out, err := runCLI(t,
		"-if-min", "100", "-if-max", "400", "-max-harm", "3",
		"-out", png, "-out", html,
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Mixer: "+harmonics.DefaultSource)
	assert.Contains(t, out, "1 crossing spurs, strongest first:")
	assert.Contains(t, out, "2RFx-1LO -60 dBc")

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	data, err = os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Mixer Crossing Spurious Analysis")
}

func TestRun_NoCrossings(t *testing.T) {
	captureLogs(t)
	out, err := runCLI(t, "-if-min", "100", "-if-max", "400", "-max-harm", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "No spurs cross the filter bounds.")
}

func TestRun_ReportsAdjustments(t *testing.T) {
	captureLogs(t)
	out, err := runCLI(t, "-max-harm", "25")
	require.NoError(t, err)
	assert.Contains(t, out, "Adjusted: max_harm 25 -> 10")
}

func TestRun_MixerFile(t *testing.T) {
	captureLogs(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "mixer.csv", testutil.TableCSV(3, 20))

	out, err := runCLI(t, "-mixer", path, "-max-harm", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Mixer: "+path)
}

func TestRun_MalformedMixerFallsBack(t *testing.T) {
	logs := captureLogs(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "broken.spr", "1,2,3\n4,5\n")

	out, err := runCLI(t, "-mixer", path, "-max-harm", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Mixer: "+harmonics.DefaultSource)

	var warned bool
	for _, l := range *logs {
		if strings.HasPrefix(l, "WARNING") && strings.Contains(l, "broken.spr") {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning naming the file, got %v", *logs)
}

func TestRun_OutputErrors(t *testing.T) {
	captureLogs(t)

	_, err := runCLI(t, "-out", "/etc/spur-analyzer-test.png")
	assert.ErrorContains(t, err, "invalid output path")

	_, err = runCLI(t, "-out", filepath.Join(t.TempDir(), "chart.gif"))
	assert.Error(t, err)
}

func TestRun_ServeStopsOnCancel(t *testing.T) {
	captureLogs(t)
	dbPath := filepath.Join(t.TempDir(), "serve.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"-serve", "-listen", "127.0.0.1:0", "-db", dbPath}, &stdout, &stderr)
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database should have been created")
}

func TestRun_Migrate(t *testing.T) {
	captureLogs(t)
	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	out, err := runCLI(t, "-db", dbPath, "-migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 1")

	out, err = runCLI(t, "-db", dbPath, "-migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 0")

	_, err = runCLI(t, "-db", dbPath, "-migrate", "bogus")
	assert.ErrorContains(t, err, "unknown migrate action")
}

func TestOutputList(t *testing.T) {
	var o outputList
	require.NoError(t, o.Set("a.png"))
	require.NoError(t, o.Set("b.svg"))
	assert.Equal(t, "a.png,b.svg", o.String())
	assert.Error(t, o.Set(""))
}
