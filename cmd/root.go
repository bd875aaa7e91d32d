package cmd

import (
	"github.com/spf13/cobra"
	"video-branding-worker/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "video-branding-worker",
		Short:         "Brand doctor videos with an overlay, captions and a disclaimer trailer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(submit(config))
	rootCmd.AddCommand(failures(config))
	return rootCmd
}
