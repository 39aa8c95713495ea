package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"uxpulse/api/app"
	"uxpulse/api/models"
)

var (
	ingestFile        string
	ingestVersion     string
	ingestReleaseDate string
)

// exportFile is the on-disk form of an analytics export: the sessions and
// hits pulled from the counter API, plus an optional version label that the
// flags can override.
type exportFile struct {
	VersionName string                `json:"version_name"`
	ReleaseDate time.Time             `json:"release_date"`
	Sessions    []models.VisitSession `json:"sessions"`
	Hits        []models.PageHit      `json:"hits"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load an analytics export file under a product version",
	Long: `Reads a JSON export of visit sessions and page hits and loads it under
the named product version. Re-ingesting a version replaces its events and
recomputes the derived page and daily aggregates.

Examples:
  uxpulse ingest -f export.json --version v2.3.0
  uxpulse ingest -f export.json --version v2.3.0 --release-date 2026-03-01`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "Path to the JSON export file (required)")
	ingestCmd.Flags().StringVar(&ingestVersion, "version", "", "Version name (overrides the file's version_name)")
	ingestCmd.Flags().StringVar(&ingestReleaseDate, "release-date", "", "Release date as YYYY-MM-DD (defaults to the file's, then today)")
	ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(ingestFile)
	if err != nil {
		return fmt.Errorf("failed to read export file: %w", err)
	}
	var export exportFile
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("failed to parse export file: %w", err)
	}

	name := export.VersionName
	if ingestVersion != "" {
		name = ingestVersion
	}
	if name == "" {
		return fmt.Errorf("no version name: set version_name in the file or pass --version")
	}

	releaseDate := export.ReleaseDate
	if ingestReleaseDate != "" {
		releaseDate, err = time.Parse("2006-01-02", ingestReleaseDate)
		if err != nil {
			return fmt.Errorf("invalid --release-date %q: %w", ingestReleaseDate, err)
		}
	}
	if releaseDate.IsZero() {
		releaseDate = time.Now().UTC()
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		version, err := a.Runner.Ingest(ctx, name, releaseDate, export.Sessions, export.Hits)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d sessions and %d hits into version %q (id %d).\n",
			len(export.Sessions), len(export.Hits), version.Name, version.ID)
		return nil
	})
}
