package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/router"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 默认使用 release，避免线上以 debug 模式启动
		if gin.Mode() == gin.DebugMode {
			gin.SetMode(gin.ReleaseMode)
		}

		a, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		port := config.AppConfig.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router.SetupRouter(a.reports, a.dataProducts),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			config.EnsureLoggerInitialized().Info("server is running", "port", port)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server run failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultServerPort, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
