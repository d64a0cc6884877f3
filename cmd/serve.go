// cmd/serve.go
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Bitlatte/blogserve/internal/server"
	"github.com/Bitlatte/blogserve/internal/site"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the blog over HTTP",
	Long: `The serve command starts an HTTP server for the blog. Posts are read
from the content directory and rendered on first request; the home page
listing is refreshed whenever the content directory changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := logEnv.Logger
		a, err := newApp(ctx, appConfig, logEnv)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		logger.Info("post index loaded", "posts", len(a.index.Posts()))

		if appConfig.Watch {
			if _, statErr := os.Stat(appConfig.ContentDir); statErr == nil {
				if err := site.Watch(ctx, appConfig.ContentDir, a.index, logger); err != nil {
					return err
				}
			} else {
				logger.Warn("content directory not found, not watching", "dir", appConfig.ContentDir)
			}
		}

		handler, err := server.NewHandler(server.Options{
			Env:            logEnv,
			Cache:          a.cache,
			Builder:        a.builder,
			Index:          a.index,
			Static:         a.static,
			NotFoundStatus: appConfig.NotFoundStatus,
		})
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Addr:            appConfig.Addr(),
			ReadTimeout:     appConfig.ReadTimeout,
			WriteTimeout:    appConfig.WriteTimeout,
			ShutdownTimeout: appConfig.ShutdownTimeout,
		}, handler, logger)
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve the site on")
	rootCmd.AddCommand(serveCmd)
}
