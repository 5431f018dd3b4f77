package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/fourpoints/webpath"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	red    = color.New(color.FgHiRed).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

func newRootCmd(v *viper.Viper, level *slog.LevelVar) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "webpath",
		Short: "Mirror directory trees over SFTP",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && level != nil {
				level.Set(slog.LevelDebug)
			}
			return loadConfig(cmd, v)
		},
		SilenceUsage: true,
	}
	addConnectionFlags(rootCmd)

	rootCmd.AddCommand(
		newPutRCmd(v),
		newGetRCmd(v),
		newRmRCmd(v),
		newPutDiffCmd(v),
		newRmDiffCmd(v),
		newLsCmd(v),
		newCatCmd(v),
	)
	return rootCmd
}

// withSession connects with the loaded settings and runs fn.
func withSession(v *viper.Viper, fn func(c *webpath.Client) error) error {
	config, err := sessionConfig(v, slog.Default())
	if err != nil {
		return err
	}
	return webpath.WithClient(config, fn)
}

// printResult writes one line per change and a summary.
func printResult(w io.Writer, res *webpath.Result, dryRun bool) {
	for _, p := range res.Created {
		fmt.Fprintf(w, "%s %s/\n", cyan("+"), p)
	}
	for _, p := range res.Transferred {
		fmt.Fprintf(w, "%s %s\n", green(">"), p)
	}
	for _, p := range res.Removed {
		fmt.Fprintf(w, "%s %s\n", red("-"), p)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d copied (%s)", len(res.Transferred), humanize.Bytes(uint64(res.Bytes))))
	if len(res.Skipped) > 0 {
		parts = append(parts, fmt.Sprintf("%d up to date", len(res.Skipped)))
	}
	if len(res.Created) > 0 {
		parts = append(parts, fmt.Sprintf("%d dirs created", len(res.Created)))
	}
	if len(res.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", len(res.Removed)))
	}
	summary := strings.Join(parts, ", ")
	if dryRun {
		summary = yellow("dry run: ") + summary
	}
	fmt.Fprintln(w, summary)
}
