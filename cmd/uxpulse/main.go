// The uxpulse CLI runs the analysis pipeline from the command line: ingest
// analytics exports, discover and calculate funnels, run the detector
// suite. The HTTP API exposes the same operations for the dashboard.
package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"uxpulse/api/app"
	"uxpulse/api/models"
)

var rootCmd = &cobra.Command{
	Use:   "uxpulse",
	Short: "UX analytics pipeline for versioned web products",
	Long: `uxpulse ingests web analytics exports per product version, mines user
paths into conversion funnels, runs the UX anomaly detectors, and tracks
issue lifecycles across versions.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			log.Printf("No .env file found or error loading .env: %v", err)
		}
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// withApp bootstraps the databases for one command run and tears them down
// afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := app.Bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// resolveVersion looks a version up by the --version flag value.
func resolveVersion(ctx context.Context, a *app.App, name string) (*models.ProductVersion, error) {
	return a.Versions.GetVersionByName(ctx, name)
}
