package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/boulder/internal/api/request"
	"github.com/mcoot/boulder/internal/api/response"
)

func newPushCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the boulder one meter for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}

			var result response.Progress
			if err := client.Post("/api/push", request.PushRequest{LocalDate: date}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", today(), "Local date (YYYY-MM-DD)")

	return cmd
}

func newAckCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:     "ack",
		Aliases: []string{"acknowledge"},
		Short:   "Accept a pending rollback so you can climb again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}

			var result response.Progress
			body := request.AcknowledgeRollbackRequest{LocalDate: date}
			if err := client.Post("/api/push/acknowledge-rollback", body, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", today(), "Local date (YYYY-MM-DD)")

	return cmd
}
