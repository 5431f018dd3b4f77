package main

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/fourpoints/webpath"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type syncFlags struct {
	exclude       []string
	preserveMtime bool
	keepRoot      bool
	dryRun        bool
}

func (f *syncFlags) options() *webpath.SyncOptions {
	return &webpath.SyncOptions{
		ExcludePatterns: f.exclude,
		PreserveMtime:   f.preserveMtime,
		KeepRoot:        f.keepRoot,
		DryRun:          f.dryRun,
		OnTransfer: func(src, dst string, n int64) {
			slog.Debug("copied", "src", src, "dst", dst, "size", humanize.Bytes(uint64(n)))
		},
	}
}

type syncFunc func(ctx context.Context, s *webpath.Syncer, args []string, opts *webpath.SyncOptions) (*webpath.Result, error)

// newSyncCmd builds a subcommand that opens a session, runs one Syncer
// operation and prints what it did.
func newSyncCmd(v *viper.Viper, use, short string, nargs int, run syncFunc) (*cobra.Command, *syncFlags) {
	flags := &syncFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(c *webpath.Client) error {
				res, err := run(cmd.Context(), webpath.NewSyncer(c), args, flags.options())
				if res != nil {
					printResult(cmd.OutOrStdout(), res, flags.dryRun)
				}
				return err
			})
		},
	}
	cmd.Flags().StringSliceVarP(&flags.exclude, "exclude", "x", nil, "Glob pattern to leave out (repeatable)")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Show what would change without changing it")
	return cmd, flags
}

func newPutRCmd(v *viper.Viper) *cobra.Command {
	cmd, flags := newSyncCmd(v, "put-r LOCAL_DIR REMOTE_DIR", "Copy a local tree to the remote host", 2,
		func(ctx context.Context, s *webpath.Syncer, args []string, opts *webpath.SyncOptions) (*webpath.Result, error) {
			return s.PutR(ctx, args[0], args[1], opts)
		})
	cmd.Flags().BoolVar(&flags.preserveMtime, "preserve-mtime", false, "Copy modification times")
	return cmd
}

func newGetRCmd(v *viper.Viper) *cobra.Command {
	cmd, flags := newSyncCmd(v, "get-r REMOTE_DIR LOCAL_DIR", "Copy a remote tree to the local filesystem", 2,
		func(ctx context.Context, s *webpath.Syncer, args []string, opts *webpath.SyncOptions) (*webpath.Result, error) {
			return s.GetR(ctx, args[0], args[1], opts)
		})
	cmd.Flags().BoolVar(&flags.preserveMtime, "preserve-mtime", false, "Copy modification times")
	return cmd
}

func newRmRCmd(v *viper.Viper) *cobra.Command {
	cmd, flags := newSyncCmd(v, "rm-r REMOTE_DIR", "Remove a remote tree", 1,
		func(ctx context.Context, s *webpath.Syncer, args []string, opts *webpath.SyncOptions) (*webpath.Result, error) {
			return s.RmR(ctx, args[0], opts)
		})
	cmd.Flags().BoolVar(&flags.keepRoot, "keep-root", false, "Empty the directory but keep it")
	return cmd
}

func newPutDiffCmd(v *viper.Viper) *cobra.Command {
	cmd, _ := newSyncCmd(v, "put-diff LOCAL_DIR REMOTE_DIR", "Push files that are missing or changed on the remote host", 2,
		func(ctx context.Context, s *webpath.Syncer, args []string, opts *webpath.SyncOptions) (*webpath.Result, error) {
			return s.PutDiff(ctx, args[0], args[1], opts)
		})
	return cmd
}

func newRmDiffCmd(v *viper.Viper) *cobra.Command {
	cmd, _ := newSyncCmd(v, "rm-diff LOCAL_DIR REMOTE_DIR", "Remove remote entries that do not exist locally", 2,
		func(ctx context.Context, s *webpath.Syncer, args []string, opts *webpath.SyncOptions) (*webpath.Result, error) {
			return s.RmDiff(ctx, args[0], args[1], opts)
		})
	return cmd
}
