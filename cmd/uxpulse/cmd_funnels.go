package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"uxpulse/api/app"
	"uxpulse/api/pipeline"
)

var (
	funnelsVersion  string
	funnelsCohorts  bool
	funnelsForce    bool
	funnelsFunnelID string
	discoverSupport int
	discoverPercent float64
	discoverMax     int
	discoverDryRun  bool
	topPathsLimit   int
)

var discoverFunnelsCmd = &cobra.Command{
	Use:   "discover-funnels",
	Short: "Mine a version's sessions into conversion funnels",
	Long: `Extracts navigation paths from the version's sessions, mines the frequent
sequences, and stores the survivors as auto-discovered funnels. Previously
discovered funnels for the version are replaced. Preset funnels are kept.

Examples:
  uxpulse discover-funnels --version v2.3.0
  uxpulse discover-funnels --version v2.3.0 --min-support 10 --max-funnels 5
  uxpulse discover-funnels --version v2.3.0 --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			version, err := resolveVersion(ctx, a, funnelsVersion)
			if err != nil {
				return err
			}
			funnels, err := a.Runner.DiscoverFunnels(ctx, version, pipeline.DiscoverOptions{
				MinSupport:    discoverSupport,
				MinPercentage: discoverPercent,
				MaxFunnels:    discoverMax,
				DryRun:        discoverDryRun,
			})
			if err != nil {
				return err
			}
			for _, f := range funnels {
				scope := "all users"
				if f.CohortName != "" {
					scope = "cohort " + f.CohortName
				}
				fmt.Printf("  %-60s %4d sessions  %5.1f%%  (%s)\n", f.Name, f.Frequency, f.Percentage, scope)
			}
			verb := "Discovered"
			if discoverDryRun {
				verb = "Would discover"
			}
			fmt.Printf("%s %d funnels for version %q.\n", verb, len(funnels), version.Name)
			return nil
		})
	},
}

var createFunnelsCmd = &cobra.Command{
	Use:   "create-funnels",
	Short: "Create the preset funnels from the goal registry",
	Long: `Builds one preset funnel per configured URL or identifier goal (home page
entry followed by the goal). Presets that already exist are left alone.

Examples:
  uxpulse create-funnels --version v2.3.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			version, err := resolveVersion(ctx, a, funnelsVersion)
			if err != nil {
				return err
			}
			funnels, err := a.Runner.CreatePresetFunnels(ctx, version)
			if err != nil {
				return err
			}
			for _, f := range funnels {
				fmt.Printf("  %s\n", f.Name)
			}
			fmt.Printf("Created %d preset funnels for version %q.\n", len(funnels), version.Name)
			return nil
		})
	},
}

var calculateFunnelsCmd = &cobra.Command{
	Use:   "calculate-funnels",
	Short: "Calculate step metrics for a version's funnels",
	Long: `Computes entered, completed, per-step conversion, and drop-off for every
funnel of the version. Results are cached for a day; --force recalculates.

Examples:
  uxpulse calculate-funnels --version v2.3.0
  uxpulse calculate-funnels --version v2.3.0 --by-cohorts --force
  uxpulse calculate-funnels --version v2.3.0 --funnel-id <uuid>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			version, err := resolveVersion(ctx, a, funnelsVersion)
			if err != nil {
				return err
			}
			results, err := a.Runner.CalculateFunnels(ctx, version, pipeline.CalcOptions{
				IncludeCohorts: funnelsCohorts,
				Force:          funnelsForce,
				FunnelID:       funnelsFunnelID,
			})
			if err != nil {
				return err
			}
			for _, stored := range results {
				fmt.Printf("  funnel %s: %d entered, %d completed (%.1f%%)\n",
					stored.FunnelID, stored.Metrics.TotalEntered, stored.Metrics.TotalCompleted,
					stored.Metrics.OverallConversion)
			}
			fmt.Printf("Calculated metrics for %d funnels of version %q.\n", len(results), version.Name)
			return nil
		})
	},
}

var topPathsCmd = &cobra.Command{
	Use:   "top-paths",
	Short: "Show a version's most traveled short paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			version, err := resolveVersion(ctx, a, funnelsVersion)
			if err != nil {
				return err
			}
			paths, err := a.Runner.TopPaths(ctx, version, topPathsLimit)
			if err != nil {
				return err
			}
			for _, seq := range paths {
				steps := make([]string, len(seq.Steps))
				for i, step := range seq.Steps {
					steps[i] = step.Value
				}
				fmt.Printf("  %5d  %s\n", seq.Count, strings.Join(steps, " -> "))
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{discoverFunnelsCmd, createFunnelsCmd, calculateFunnelsCmd, topPathsCmd} {
		cmd.Flags().StringVar(&funnelsVersion, "version", "", "Version name (required)")
		cmd.MarkFlagRequired("version")
		rootCmd.AddCommand(cmd)
	}
	discoverFunnelsCmd.Flags().IntVar(&discoverSupport, "min-support", 0, "Minimum session count per sequence (default adaptive)")
	discoverFunnelsCmd.Flags().Float64Var(&discoverPercent, "min-percentage", 0, "Minimum share of sessions per sequence (default 1.0)")
	discoverFunnelsCmd.Flags().IntVar(&discoverMax, "max-funnels", 0, "Cap on funnels per scope (default 15)")
	discoverFunnelsCmd.Flags().BoolVar(&discoverDryRun, "dry-run", false, "Mine and print without storing anything")
	calculateFunnelsCmd.Flags().BoolVar(&funnelsCohorts, "by-cohorts", false, "Include the per-cohort breakdown")
	calculateFunnelsCmd.Flags().BoolVar(&funnelsForce, "force", false, "Recalculate even when cached metrics are fresh")
	calculateFunnelsCmd.Flags().StringVar(&funnelsFunnelID, "funnel-id", "", "Restrict to one funnel")
	topPathsCmd.Flags().IntVar(&topPathsLimit, "limit", 20, "Maximum number of paths to show")
}
