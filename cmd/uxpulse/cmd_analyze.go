package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"uxpulse/api/app"
)

var analyzeVersion string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the UX anomaly detectors for a version",
	Long: `Runs the full detector suite over the version's sessions and page
aggregates, generates a hypothesis and fix for each finding, and diffs the
issues against the previous version to track their lifecycle.

Examples:
  uxpulse analyze --version v2.3.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			version, err := resolveVersion(ctx, a, analyzeVersion)
			if err != nil {
				return err
			}
			issues, err := a.Runner.Analyze(ctx, version)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				fmt.Printf("  [%s] %-22s impact %4.1f  %s  %s\n",
					issue.Priority, issue.IssueType, issue.ImpactScore, issue.Trend, issue.Location)
			}
			fmt.Printf("Found %d issues in version %q.\n", len(issues), version.Name)
			return nil
		})
	},
}

var refreshHypothesesCmd = &cobra.Command{
	Use:   "refresh-hypotheses",
	Short: "Regenerate hypothesis and fix texts for a version's issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			version, err := resolveVersion(ctx, a, analyzeVersion)
			if err != nil {
				return err
			}
			refreshed, err := a.Runner.RefreshHypotheses(ctx, version)
			if err != nil {
				return err
			}
			fmt.Printf("Refreshed hypotheses for %d issues of version %q.\n", refreshed, version.Name)
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{analyzeCmd, refreshHypothesesCmd} {
		cmd.Flags().StringVar(&analyzeVersion, "version", "", "Version name (required)")
		cmd.MarkFlagRequired("version")
		rootCmd.AddCommand(cmd)
	}
}
