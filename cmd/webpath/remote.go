package main

import (
	"fmt"

	"github.com/fourpoints/webpath"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ls REMOTE_DIR",
		Short: "List a remote tree, parents first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(c *webpath.Client) error {
				paths, err := webpath.NewSyncer(c).ListR(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}
}

func newCatCmd(v *viper.Viper) *cobra.Command {
	var encodingName string
	cmd := &cobra.Command{
		Use:   "cat REMOTE_FILE",
		Short: "Print a remote text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(c *webpath.Client) error {
				text, err := c.Path(args[0]).ReadText(encodingName)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&encodingName, "encoding", "e", webpath.DefaultEncoding, "Text encoding of the remote file")
	return cmd
}
