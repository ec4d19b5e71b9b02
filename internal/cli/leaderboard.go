package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/boulder/internal/api/response"
)

func newLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the highest climbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/leaderboard"
			if limit > 0 {
				path = fmt.Sprintf("%s?limit=%d", path, limit)
			}

			var result response.Leaderboard
			if err := client.Get(path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of players (1-100, default 10)")

	return cmd
}

func newSurvivorshipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "survivorship",
		Short: "Show how many players are still climbing",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Survivorship
			if err := client.Get("/api/survivorship", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
