package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"appupgen/internal/appup"
	"appupgen/internal/beam"
	"appupgen/internal/builder"
	"appupgen/internal/cli"
	"appupgen/internal/config"
	"appupgen/internal/logging"
	"appupgen/internal/orchestrator"
	"appupgen/internal/release"
	"appupgen/internal/report"
	"appupgen/internal/srcindex"
)

// Exit codes.
const (
	exitValid    = 0
	exitUsage    = 1 // bad flags or config, or any other fatal error
	exitInvalid  = 2 // out-of-date records or consistency violations
	exitParse    = 3 // unreadable artifact, descriptor or upgrade record
	exitExternal = 4 // build or git command failed
)

// errInvalidRun signals a completed run that found problems.
var errInvalidRun = errors.New("upgrade check failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, performs one check or write pass and returns the exit
// code. It is separated from main() to enable testing.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewCommand(stdout, stderr, func(ctx context.Context, cfg config.Config) error {
		return execute(ctx, cfg, stdout, stderr)
	})
	err := cli.Execute(ctx, cmd, args)
	if err == nil {
		return exitValid
	}
	code := exitCode(err)
	if code != exitInvalid {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitValid
	case errors.Is(err, errInvalidRun):
		return exitInvalid
	case errors.Is(err, builder.ErrExternalCommand):
		return exitExternal
	case errors.Is(err, beam.ErrArtifactRead),
		errors.Is(err, release.ErrDescriptorParse),
		errors.Is(err, appup.ErrActionListParse):
		return exitParse
	}
	return exitUsage
}

func execute(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	log := logging.New(stderr, cfg.Verbose)
	defer func() { _ = log.Sync() }()

	runner := builder.ExecRunner{}
	git := &builder.GitSource{Runner: runner, Repo: cfg.Repo, WorkDir: cfg.ProjectDir}
	rb := &builder.ReleaseBuilder{
		Command:    builder.NewCommandBuilder(runner, cfg.BuildCmd, cfg.ArtifactDir, log),
		Git:        git,
		ProjectDir: cfg.ProjectDir,
		Logger:     log,
	}
	defer func() {
		if err := rb.Close(); err != nil {
			log.Warnw("removing checkout", "error", err)
		}
	}()

	currDir, predDir, err := resolveReleases(ctx, cfg, rb, git, log)
	if err != nil {
		return err
	}

	indexer := release.Indexer{Logger: log}
	curr, err := indexer.Index(currDir)
	if err != nil {
		return errors.Wrap(err, "indexing current release")
	}
	pred, err := indexer.Index(predDir)
	if err != nil {
		return errors.Wrap(err, "indexing predecessor release")
	}

	sources, err := srcindex.Build(cfg.ProjectDir, cfg.SourceDirs, log)
	if err != nil {
		return errors.Wrap(err, "indexing sources")
	}

	orch := &orchestrator.Orchestrator{
		Store:   appup.NewStore(),
		Sources: sources,
		Logger:  log,
		Mode:    cfg.Mode,
	}
	rep, err := orch.Run(curr, pred)
	if err != nil {
		return err
	}

	out, err := report.Render(rep, cfg.Format)
	if err != nil {
		return errors.Wrap(err, "rendering report")
	}
	fmt.Fprint(stdout, out)

	if cfg.ReportFile != "" {
		if err := writeReportFile(cfg, rep); err != nil {
			return err
		}
		log.Debugw("report written", "path", cfg.ReportFile)
	}

	if !rep.Valid {
		return errInvalidRun
	}
	return nil
}

// resolveReleases returns the current and predecessor release directories,
// building whichever was not given prebuilt.
func resolveReleases(ctx context.Context, cfg config.Config, b builder.Builder, git *builder.GitSource, log *zap.SugaredLogger) (string, string, error) {
	curr := cfg.Release
	if curr == "" {
		dir, err := b.Build(ctx, "")
		if err != nil {
			return "", "", errors.Wrap(err, "building current release")
		}
		curr = dir
	}

	pred := cfg.PreviousRelease
	if pred == "" {
		tag := cfg.Previous
		if tag == "" {
			latest, err := git.LatestTag(ctx)
			if err != nil {
				return "", "", err
			}
			tag = latest
		}
		log.Infof("predecessor release: %s", tag)
		dir, err := b.Build(ctx, tag)
		if err != nil {
			return "", "", errors.Wrapf(err, "building predecessor release %s", tag)
		}
		pred = dir
	}
	return curr, pred, nil
}

func writeReportFile(cfg config.Config, rep *orchestrator.RunReport) error {
	out, err := report.Render(rep, cfg.ReportFileFormat())
	if err != nil {
		return errors.Wrap(err, "rendering report file")
	}
	if dir := filepath.Dir(cfg.ReportFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	if err := os.WriteFile(cfg.ReportFile, []byte(out), 0644); err != nil {
		return errors.Wrapf(err, "writing report %s", cfg.ReportFile)
	}
	return nil
}
