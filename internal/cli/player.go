package cli

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/boulder/internal/api/response"
)

// dateLayout is the YYYY-MM-DD form the API expects
const dateLayout = "2006-01-02"

// errNotRegistered is returned by commands that need an identity
var errNotRegistered = errors.New("no player id: run `boulder register` or pass --player")

// today is the caller's local calendar date
func today() string {
	return time.Now().Format(dateLayout)
}

func requirePlayer() error {
	if cfg.PlayerID == "" {
		return errNotRegistered
	}
	return nil
}

func newRegisterCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new player and save its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.PlayerID != "" && !force {
				return fmt.Errorf("already registered as %s (use --force to replace)", cfg.PlayerID)
			}

			var result response.Registered
			if err := client.Post("/api/player/register", nil, &result); err != nil {
				return err
			}

			// Save player id
			if err := cfg.SavePlayerID(result.ID); err != nil {
				return fmt.Errorf("failed to save player id: %w", err)
			}
			client.SetPlayerID(result.ID)

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace the saved player id")

	return cmd
}

func newStateCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show your height, streak and whether you can push today",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}

			var result response.PlayerState
			path := "/api/player?localDate=" + url.QueryEscape(date)
			if err := client.Get(path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", today(), "Local date (YYYY-MM-DD)")

	return cmd
}

func newDeathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deaths",
		Short: "List every time your boulder rolled back",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}

			var result response.Deaths
			if err := client.Get("/api/player/deaths", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
