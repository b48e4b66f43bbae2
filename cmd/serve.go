package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/estateops/taskdesk/internal/logger"
	"github.com/estateops/taskdesk/internal/server"
	"github.com/estateops/taskdesk/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskdesk HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		taskStore, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = taskStore.Close() }()

		archiveStore, err := GetArchiveStore()
		if err != nil {
			return err
		}
		defer func() { _ = archiveStore.Close() }()

		port := servePort
		if port == 0 {
			port = GetConfig().Server.Port
		}

		srv := server.New(port, taskStore, archiveStore)
		log := logger.Get()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if viper.GetBool("server.watchDataFile") {
			if fileStore, ok := taskStore.(*store.FileTaskStore); ok {
				go func() {
					if err := fileStore.WatchDataFile(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Warn().Err(err).Msg("data file watcher stopped")
					}
				}()
			}
		}

		errChan := make(chan error, 1)
		go func() { errChan <- srv.Start() }()

		select {
		case err := <-errChan:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (defaults to server.port from config)")
	rootCmd.AddCommand(serveCmd)
}
