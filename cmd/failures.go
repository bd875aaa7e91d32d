package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"video-branding-worker/config"
	"video-branding-worker/repository"
	server2 "video-branding-worker/server"
)

var failureColumns = []column{
	{title: "Job"},
	{title: "Kind"},
	{title: "When"},
	{title: "Error", width: 60},
}

func failures(cfg *config.Config) *cobra.Command {
	var jobId string
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "list failed jobs from the failure journal (the worker must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)
			journal, err := repository.OpenFailureJournal(cfg.Worker.FailureJournalPath, nil)
			if err != nil {
				return err
			}
			defer journal.Close()

			out := cmd.OutOrStdout()
			if jobId != "" {
				id, err := uuid.Parse(jobId)
				if err != nil {
					return fmt.Errorf("invalid --job: %w", err)
				}
				record, err := journal.Get(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "job:    %s\nkind:   %s\nwhen:   %s\nerror:  %s\n\n%s\n",
					record.JobId, record.Kind, record.Timestamp.Format(time.RFC3339), record.Error, record.EngineStderr)
				return nil
			}

			records, err := journal.List(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "no failures recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(failureColumns, failureRows(records, time.Now())))
			return nil
		},
	}
	cmd.Flags().StringVar(&jobId, "job", "", "show the full record, including engine output, for one job")
	return cmd
}

func failureRows(records []repository.FailureRecord, now time.Time) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.JobId.String(),
			r.Kind,
			humanize.RelTime(r.Timestamp, now, "ago", "from now"),
			r.Error,
		})
	}
	return rows
}
