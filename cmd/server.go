package cmd

import (
	"github.com/spf13/cobra"
	"video-branding-worker/config"
	server2 "video-branding-worker/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start the branding worker and the job status api",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunHttp(config)
		},
	}
}
