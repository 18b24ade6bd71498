package builder

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Defaults for a rebar3 project.
const (
	DefaultCommand     = "rebar3 release"
	DefaultArtifactDir = "_build/default/rel"
)

// Builder produces a release directory for tag. An empty tag means the
// working tree as it is.
type Builder interface {
	Build(ctx context.Context, tag string) (string, error)
}

// CommandBuilder runs the build command inside a source tree.
type CommandBuilder struct {
	Runner      Runner
	Command     []string // argv, e.g. ["rebar3", "release"]
	ArtifactDir string   // relative to the source tree
	Logger      *zap.SugaredLogger
}

// NewCommandBuilder splits command on whitespace. No shell quoting is applied.
func NewCommandBuilder(runner Runner, command, artifactDir string, log *zap.SugaredLogger) *CommandBuilder {
	if command == "" {
		command = DefaultCommand
	}
	if artifactDir == "" {
		artifactDir = DefaultArtifactDir
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CommandBuilder{
		Runner:      runner,
		Command:     strings.Fields(command),
		ArtifactDir: artifactDir,
		Logger:      log,
	}
}

// BuildIn runs the build in srcDir and returns the artifact directory.
func (b *CommandBuilder) BuildIn(ctx context.Context, srcDir string) (string, error) {
	if len(b.Command) == 0 {
		return "", errors.New("empty build command")
	}
	b.Logger.Infof("building release in %s: %s", srcDir, strings.Join(b.Command, " "))
	if _, err := b.Runner.Run(ctx, srcDir, b.Command[0], b.Command[1:]...); err != nil {
		return "", errors.Wrap(err, "build")
	}

	out := b.ArtifactDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(srcDir, out)
	}
	info, err := os.Stat(out)
	if err != nil || !info.IsDir() {
		return "", errors.Wrapf(ErrExternalCommand, "build succeeded but %s is not a directory", out)
	}
	return out, nil
}

// GitSource fetches historical source trees from a repository.
type GitSource struct {
	Runner  Runner
	Repo    string // URL or path handed to git clone
	WorkDir string // where HEAD is checked out, used for tag discovery
	TempDir string // parent of checkout directories, empty for the system default
}

// Checkout clones Repo into a fresh temporary directory and checks out tag.
// The caller removes the directory.
func (g *GitSource) Checkout(ctx context.Context, tag string) (string, error) {
	dir, err := os.MkdirTemp(g.TempDir, "appupgen-"+sanitize(tag)+"-")
	if err != nil {
		return "", errors.Wrap(err, "creating checkout directory")
	}
	if _, err := g.Runner.Run(ctx, dir, "git", "clone", "--quiet", g.Repo, "."); err != nil {
		_ = os.RemoveAll(dir)
		return "", errors.Wrapf(err, "cloning %s", g.Repo)
	}
	if _, err := g.Runner.Run(ctx, dir, "git", "checkout", "--quiet", tag); err != nil {
		_ = os.RemoveAll(dir)
		return "", errors.Wrapf(err, "checking out %s", tag)
	}
	return dir, nil
}

// LatestTag returns the highest semantic-version tag reachable from HEAD that
// does not point at HEAD itself. Tags that are not semantic versions are
// ignored.
func (g *GitSource) LatestTag(ctx context.Context) (string, error) {
	out, err := g.Runner.Run(ctx, g.WorkDir, "git", "tag", "--merged", "HEAD", "--no-contains", "HEAD")
	if err != nil {
		return "", errors.Wrap(err, "listing tags")
	}
	tag, ok := highestSemver(strings.Fields(string(out)))
	if !ok {
		return "", errors.Wrapf(ErrExternalCommand, "no semantic version tag found below HEAD in %s", g.WorkDir)
	}
	return tag, nil
}

func highestSemver(tags []string) (string, bool) {
	type candidate struct {
		tag string
		v   *semver.Version
	}
	var cands []candidate
	for _, t := range tags {
		v, err := semver.NewVersion(t)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{tag: t, v: v})
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].v.LessThan(cands[j].v)
	})
	return cands[len(cands)-1].tag, true
}

func sanitize(tag string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, tag)
}

// ReleaseBuilder builds the working tree for an empty tag and a fresh
// checkout for any other tag.
type ReleaseBuilder struct {
	Command    *CommandBuilder
	Git        *GitSource
	ProjectDir string
	Logger     *zap.SugaredLogger

	checkouts []string
}

// Build implements Builder.
func (b *ReleaseBuilder) Build(ctx context.Context, tag string) (string, error) {
	if tag == "" {
		return b.Command.BuildIn(ctx, b.ProjectDir)
	}
	dir, err := b.Git.Checkout(ctx, tag)
	if err != nil {
		return "", err
	}
	b.checkouts = append(b.checkouts, dir)
	if b.Logger != nil {
		b.Logger.Debugw("checked out predecessor", "tag", tag, "dir", dir)
	}
	return b.Command.BuildIn(ctx, dir)
}

// Close removes checkout directories created by Build.
func (b *ReleaseBuilder) Close() error {
	var first error
	for _, dir := range b.checkouts {
		if err := os.RemoveAll(dir); err != nil && first == nil {
			first = err
		}
	}
	b.checkouts = nil
	return first
}
