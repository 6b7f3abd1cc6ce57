package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/config"
	"github.com/jackzampolin/bitbybit/internal/home"
	"github.com/jackzampolin/bitbybit/internal/server"
)

var (
	serveHost      string
	servePort      string
	serveMaxUpload int64
	serveDebug     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bitbybit server",
	Long: `Start the bitbybit HTTP server.

The server stores books in the configured database (SQLite in the home
directory by default), runs structuring jobs in the background and tracks
reading sessions. Config file changes are picked up while it runs.

The server provides:
  - /health   - Basic server health check
  - /ready    - Readiness check (includes store status)
  - /api/...  - Books, chapters, sections, jobs and progress
  - /swagger  - API documentation

Examples:
  bitbybit serve                    # Start on default port 8080
  bitbybit serve --port 3000        # Start on custom port
  bitbybit serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level := slog.LevelInfo
		if serveDebug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		file := cfgFile
		if file == "" && h.ConfigExists() {
			file = h.ConfigPath()
		}
		cfgMgr, err := config.NewManager(file, logger)
		if err != nil {
			return err
		}
		if f := cfgMgr.File(); f != "" {
			logger.Info("loaded config", "file", f)
		}

		srv, err := server.New(server.Config{
			Host:           serveHost,
			Port:           servePort,
			Home:           h,
			ConfigManager:  cfgMgr,
			MaxUploadBytes: serveMaxUpload,
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().Int64Var(&serveMaxUpload, "max-upload", 500<<20, "Largest accepted PDF in bytes")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
}
