package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"video-branding-worker/config"
	"video-branding-worker/dto"
	"video-branding-worker/pkg/ffprobe"
	"video-branding-worker/pkg/rabbitmq"
	server2 "video-branding-worker/server"
	"video-branding-worker/service"
)

func submit(cfg *config.Config) *cobra.Command {
	var (
		req   dto.SubmitRequest
		owner string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "validate a local video, create a job and enqueue it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner != "" {
				id, err := uuid.Parse(owner)
				if err != nil {
					return fmt.Errorf("invalid --owner: %w", err)
				}
				req.OwnerId = id
			}

			ctx := server2.SetupLogger(cfg)
			db, repo, err := server2.OpenRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
			if err != nil {
				return err
			}
			defer conn.Close()

			submission := service.NewSubmissionService(
				repo,
				ffprobe.NewProber(cfg.FFmpeg.FFprobeBinary),
				rabbitmq.NewPublisher(conn, rabbitmq.TopologyFromConfig(cfg.Queue)),
				cfg.Limits,
				cfg.Assets.Template,
			)
			job, err := submission.Submit(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), job.ID.String())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&owner, "owner", "", "owner id (uuid)")
	flags.StringVar(&req.Name, "name", "", "doctor name, without the Dr. prefix")
	flags.StringVar(&req.Speciality, "speciality", "", "speciality")
	flags.StringVar(&req.Hospital, "hospital", "", "hospital")
	flags.StringVar(&req.City, "city", "", "city")
	flags.StringVar(&req.VideoPath, "video", "", "path to the source mp4")
	flags.StringVar(&req.TemplatePath, "template", "", "overlay template image, defaults to assets.template")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}
