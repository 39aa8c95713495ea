package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"uxpulse/api/app"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the UXPulse API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("GIN_MODE") == "release" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		application, err := app.Bootstrap(ctx)
		cancel()
		if err != nil {
			return err
		}
		defer application.Close()

		port := servePort
		if port == "" {
			port = os.Getenv("PORT")
		}
		if port == "" {
			port = "8080"
		}

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: app.NewRouter(application),
		}

		go func() {
			log.Printf("UXPulse API server starting on http://localhost:%s", port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("UXPulse API server failed to start: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (defaults to PORT env, then 8080)")
	rootCmd.AddCommand(serveCmd)
}
