package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"appupgen/internal/orchestrator"
	"appupgen/internal/report"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	require.NoError(t, err)
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)
	require.Equal(t, orchestrator.ModeCheck, cfg.Mode)
	require.Equal(t, "rebar3 release", cfg.BuildCmd)
	require.Equal(t, "_build/default/rel", cfg.ArtifactDir)
	require.Equal(t, []string{"apps", "src", "lib"}, cfg.SourceDirs)
	require.Equal(t, report.Text, cfg.Format)
	require.True(t, filepath.IsAbs(cfg.ProjectDir))
	require.Equal(t, cfg.ProjectDir, cfg.Repo)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := load(t,
		"--mode", "write",
		"--previous", "v1.2.0",
		"--build-cmd", "make rel",
		"--source-dirs", "apps,deps_local",
		"--format", "yaml",
		"--repo", "git@example.com:acme/app.git",
		"-v",
	)
	require.NoError(t, err)
	require.Equal(t, orchestrator.ModeWrite, cfg.Mode)
	require.Equal(t, "v1.2.0", cfg.Previous)
	require.Equal(t, "make rel", cfg.BuildCmd)
	require.Equal(t, []string{"apps", "deps_local"}, cfg.SourceDirs)
	require.Equal(t, report.YAML, cfg.Format)
	require.Equal(t, "git@example.com:acme/app.git", cfg.Repo)
	require.True(t, cfg.Verbose)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("APPUPGEN_MODE", "write")
	t.Setenv("APPUPGEN_BUILD_CMD", "mix release")

	cfg, err := load(t)
	require.NoError(t, err)
	require.Equal(t, orchestrator.ModeWrite, cfg.Mode)
	require.Equal(t, "mix release", cfg.BuildCmd)

	// flags win over the environment
	cfg, err = load(t, "--mode", "check")
	require.NoError(t, err)
	require.Equal(t, orchestrator.ModeCheck, cfg.Mode)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appupgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: write\nprevious: v0.9.0\nsource-dirs:\n  - apps\n  - plugins\n"), 0644))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	require.Equal(t, orchestrator.ModeWrite, cfg.Mode)
	require.Equal(t, "v0.9.0", cfg.Previous)
	require.Equal(t, []string{"apps", "plugins"}, cfg.SourceDirs)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"mode", []string{"--mode", "dry-run"}},
		{"format", []string{"--format", "xml"}},
		{"missing config file", []string{"--config", "/nonexistent/appupgen.yaml"}},
		{"empty build command", []string{"--build-cmd", " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)
			require.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestReportFileFormat(t *testing.T) {
	require.Equal(t, report.JSON, Config{ReportFile: "out.json"}.ReportFileFormat())
	require.Equal(t, report.YAML, Config{ReportFile: "out.YML"}.ReportFileFormat())
	require.Equal(t, report.Text, Config{ReportFile: "out.txt"}.ReportFileFormat())
}
