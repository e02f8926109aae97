package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/auth"
	"github.com/md-rashed-zaman/oneonone/libs/config"
	"github.com/md-rashed-zaman/oneonone/libs/db"
	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "oneonone-admin",
		Short:         "Operator tooling for the oneonone services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), tokenCmd(), mergeCmd())
	return root
}

func migrateCmd() *cobra.Command {
	var dbURL string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := db.Open(ctx, dbURL)
			if err != nil {
				return fmt.Errorf("connecting: %w", err)
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool)
			if err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "applied %s\n", v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbURL, "database-url", config.String("DATABASE_URL", ""), "postgres connection string")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID   string
		username string
		secret   string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Print a development HS256 access token",
		Example: `  oneonone-admin token --user-id 6f1c... --username olivia`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user-id is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			token, err := auth.SignHS256(auth.NewClaims(userID, username, time.Now(), ttl), secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "subject claim")
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	cmd.Flags().StringVar(&secret, "secret", config.String("JWT_SECRET", "dev-secret"), "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge time slots read from stdin into contiguous ranges",
		Long: `Reads a JSON array of time slots ({"start_time": RFC3339, "priority": 0|1})
and prints the merged availability ranges as JSON.`,
		Example: `  echo '[{"start_time":"2026-09-02T09:00:00Z","priority":1}]' | oneonone-admin merge`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranges, err := mergeSlots(cmd.InOrStdin())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ranges)
		},
	}
}

func mergeSlots(r io.Reader) ([]slots.TimeRange, error) {
	var in []slots.TimeSlot
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decoding slots: %w", err)
	}
	return slots.MergeToRanges(in), nil
}
