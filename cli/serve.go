package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbolis/dynamic-forms/app"
	"github.com/mbolis/dynamic-forms/config"
	"github.com/mbolis/dynamic-forms/database"
	"github.com/mbolis/dynamic-forms/httpx"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/mbolis/dynamic-forms/routes"
	"github.com/spf13/cobra"
)

func NewServe(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cfg.Validate()
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.DBUrl)
			if err != nil {
				return err
			}
			defer db.Close()

			app := app.App{
				DB:           db,
				BearerServer: httpx.NewBearerServer(db, *cfg),
				Config:       *cfg,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = runServer(ctx, *cfg, routes.Wire(app))
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	cfg.BindServer(cmd.Flags())
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("main.server.shutdown:", err)
		}
	}()

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
