// Package config resolves run settings from flags, APPUPGEN_* environment
// variables and an optional YAML config file, in that order of precedence.
package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"appupgen/internal/builder"
	"appupgen/internal/orchestrator"
	"appupgen/internal/report"
	"appupgen/internal/srcindex"
)

// ErrInvalid is returned for settings that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment variable, e.g. APPUPGEN_MODE.
const EnvPrefix = "APPUPGEN"

// Keys shared by flags, environment and config file.
const (
	KeyConfig          = "config"
	KeyMode            = "mode"
	KeyPrevious        = "previous"
	KeyBuildCmd        = "build-cmd"
	KeyArtifactDir     = "artifact-dir"
	KeySourceDirs      = "source-dirs"
	KeyRepo            = "repo"
	KeyProjectDir      = "project-dir"
	KeyRelease         = "release"
	KeyPreviousRelease = "previous-release"
	KeyFormat          = "format"
	KeyReportFile      = "report-file"
	KeyVerbose         = "verbose"
)

// Config is the resolved configuration of one run.
type Config struct {
	Mode            orchestrator.Mode
	Previous        string   // predecessor tag, empty to pick the latest semver tag
	BuildCmd        string   // build command, split on whitespace
	ArtifactDir     string   // release output directory relative to the source tree
	SourceDirs      []string // roots searched for .appup.src and .app.src files
	Repo            string   // upstream repository cloned for the predecessor
	ProjectDir      string
	Release         string // prebuilt current release, skips the build
	PreviousRelease string // prebuilt predecessor release, skips checkout and build
	Format          report.Format
	ReportFile      string
	Verbose         bool
}

// RegisterFlags adds every setting to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "YAML configuration file. Flags and environment variables take precedence over it.")
	fs.String(KeyMode, string(orchestrator.ModeCheck), "check: report out-of-date upgrade records; write: update them")
	fs.String(KeyPrevious, "", "Tag of the predecessor release (default: highest semver tag below HEAD)")
	fs.String(KeyBuildCmd, builder.DefaultCommand, "Command that builds a release")
	fs.String(KeyArtifactDir, builder.DefaultArtifactDir, "Release output directory, relative to the source tree")
	fs.StringSlice(KeySourceDirs, srcindex.DefaultRoots, "Directories searched for .appup.src and .app.src files")
	fs.String(KeyRepo, "", "Repository to clone the predecessor from (default: the project directory)")
	fs.String(KeyProjectDir, ".", "Project root")
	fs.String(KeyRelease, "", "Use this prebuilt release as the current release instead of building")
	fs.String(KeyPreviousRelease, "", "Use this prebuilt release as the predecessor instead of checking out and building")
	fs.String(KeyFormat, string(report.Text), "Report format: text, ci, json or yaml")
	fs.String(KeyReportFile, "", "Also write the report to this file (.json and .yaml/.yml pick the format)")
	fs.BoolP(KeyVerbose, "v", false, "Log debug output")
}

// NewViper returns a viper instance bound to fs and the environment.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load reads the config file named by the config key, if any, and resolves
// the settings.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(ErrInvalid, "reading config %s: %v", path, err)
		}
	}

	mode, err := orchestrator.ParseMode(v.GetString(KeyMode))
	if err != nil {
		return Config{}, errors.Wrapf(ErrInvalid, "%v", err)
	}
	format, err := report.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return Config{}, errors.Wrapf(ErrInvalid, "%v", err)
	}

	projectDir, err := filepath.Abs(v.GetString(KeyProjectDir))
	if err != nil {
		return Config{}, errors.Wrapf(ErrInvalid, "project dir: %v", err)
	}

	cfg := Config{
		Mode:            mode,
		Previous:        v.GetString(KeyPrevious),
		BuildCmd:        v.GetString(KeyBuildCmd),
		ArtifactDir:     v.GetString(KeyArtifactDir),
		SourceDirs:      v.GetStringSlice(KeySourceDirs),
		Repo:            v.GetString(KeyRepo),
		ProjectDir:      projectDir,
		Release:         v.GetString(KeyRelease),
		PreviousRelease: v.GetString(KeyPreviousRelease),
		Format:          format,
		ReportFile:      v.GetString(KeyReportFile),
		Verbose:         v.GetBool(KeyVerbose),
	}
	if cfg.Repo == "" {
		cfg.Repo = cfg.ProjectDir
	}
	if strings.TrimSpace(cfg.BuildCmd) == "" && (cfg.Release == "" || cfg.PreviousRelease == "") {
		return Config{}, errors.Wrap(ErrInvalid, "build command is empty")
	}
	if len(cfg.SourceDirs) == 0 {
		return Config{}, errors.Wrap(ErrInvalid, "no source directories")
	}
	return cfg, nil
}

// ReportFileFormat picks the format for the report file from its extension.
func (c Config) ReportFileFormat() report.Format {
	switch strings.ToLower(filepath.Ext(c.ReportFile)) {
	case ".json":
		return report.JSON
	case ".yaml", ".yml":
		return report.YAML
	}
	return report.Text
}
