// Package cli defines the appupgen command line.
package cli

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"appupgen/internal/config"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage error")

// RunFunc executes a run with the resolved configuration.
type RunFunc func(ctx context.Context, cfg config.Config) error

// NewCommand returns the root command. run is called once flags, environment
// and config file are resolved.
func NewCommand(stdout, stderr io.Writer, run RunFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appupgen",
		Short: "Generate and check hot-upgrade instructions for a release",
		Long: `appupgen compares the current release with its predecessor and keeps each
application's <app>.appup.src in step with the modules that were added,
changed or deleted.

In check mode out-of-date records are reported and the command exits 2.
In write mode they are updated in place. Hand-written instructions are
never modified.`,
		Example: `  appupgen --previous v1.4.0
  appupgen --mode write --build-cmd "make rel" --artifact-dir _rel
  appupgen --release _build/prod/rel --previous-release /tmp/v1.4.0/rel --format ci`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.Wrapf(ErrUsage, "unexpected argument %q\nRun '%s --help' for usage.", args[0], cmd.CommandPath())
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	config.RegisterFlags(cmd.Flags())

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return errors.Wrapf(ErrUsage, "%v\nRun '%s --help' for usage.", err, c.CommandPath())
	})
	return cmd
}

// Execute runs cmd with args.
func Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
