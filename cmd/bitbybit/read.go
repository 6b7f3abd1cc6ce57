package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/reader"
	"github.com/jackzampolin/bitbybit/internal/tracking"
)

var readSection string

var readCmd = &cobra.Command{
	Use:   "read <book-id>",
	Short: "Read a book in the terminal",
	Long: `Open a book in a full screen reader.

The reader starts at the first unread section. Sections are marked read
using the server's tracking mode: after a dwell time, or when you scroll to
the end.

Controls:
  ↑/↓, pgup/pgdn   Scroll
  ←/→ or p/n       Previous/next section
  m                Toggle read
  q                Quit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := reader.NewAPIClient(getServerURL())

		cfg, err := client.TrackingConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load tracking settings: %w", err)
		}

		// The terminal belongs to the reader.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		tracker := tracking.NewTracker(tracking.TrackerConfig{
			Config: cfg,
			Marker: tracking.NewRetryMarker(client, tracking.RetryOptions{Logger: logger}),
			Logger: logger,
		})

		return reader.Run(ctx, reader.Options{
			Client:    client,
			Tracker:   tracker,
			BookID:    args[0],
			SectionID: readSection,
		})
	},
}

func init() {
	readCmd.Flags().StringVar(&readSection, "section", "", "Section ID to open first")
	rootCmd.AddCommand(readCmd)
}
