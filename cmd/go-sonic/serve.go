package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opd-ai/go-sonic/internal/downloader"
	"github.com/opd-ai/go-sonic/internal/server"
	"github.com/opd-ai/go-sonic/internal/storage"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the now playing feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.client.Ping(ctx); err != nil {
			return fmt.Errorf("subsonic server unreachable: %w", err)
		}

		if err := a.config.Download.CreateDirectories(); err != nil {
			return err
		}
		store, err := storage.NewManager(a.config.Download.Database, a.logger)
		if err != nil {
			return err
		}
		defer store.Close()

		files := storage.NewFileManager(a.config.Download.Directory, a.logger)
		downloads := downloader.New(&a.config.Download, files, store, a.logger)

		srv := server.New(&a.config.Server, a.client, store, downloads, a.logger)
		return srv.Start(ctx)
	},
}
