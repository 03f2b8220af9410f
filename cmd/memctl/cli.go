package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"memgov/internal/chunk"
	"memgov/internal/probe"
	"memgov/internal/tier"
)

// buildRootCmd constructs the memctl command tree.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "memctl",
		Short:         "Inspect accelerator capacity, tiers and chunk plans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var asJSON bool
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")

	probeCmd := &cobra.Command{
		Use:     "probe",
		Short:   "Detect memory capacity and show the tier it selects",
		Example: "  memctl probe\n  memctl probe --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			snap := probe.New(probe.WithLogger(zerolog.Nop())).Detect(ctx)
			profile, _, err := tier.Select(snap, "")
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(map[string]any{"snapshot": snap, "tier": profile.Name})
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "device\t%s\n", snap.DeviceName)
			fmt.Fprintf(w, "accelerator\t%v\n", !snap.Unavailable)
			fmt.Fprintf(w, "total\t%s\n", fmtBytes(snap.TotalBytes))
			fmt.Fprintf(w, "used\t%s\n", fmtBytes(snap.UsedBytes))
			fmt.Fprintf(w, "free\t%s\n", fmtBytes(snap.FreeBytes))
			fmt.Fprintf(w, "tier\t%s\n", profile.Name)
			return w.Flush()
		},
	}

	tiersCmd := &cobra.Command{
		Use:     "tiers",
		Short:   "List every tier and its knobs",
		Example: "  memctl tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			all := tier.Profiles()
			if asJSON {
				return printJSON(all)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "tier\tres\tseq_len\tbatch\tsteps\tchunks\toffload\tprec_reduce\tsequential\twatermark")
			for _, p := range all {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%v\t%v\t%v\t%.2f\n",
					p.Name, p.Resolution, p.SequenceLength, p.BatchSize, p.InferenceSteps,
					p.ChunkCount, p.EnableOffload, p.EnablePrecisionReduction, p.Sequential, p.HighWatermark)
			}
			return w.Flush()
		},
	}

	var planTier string
	planCmd := &cobra.Command{
		Use:     "plan <elements>",
		Short:   "Show how a tensor of N elements is chunked at a tier",
		Example: "  memctl plan 1000000 --tier ultra_low",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var total int
			if _, err := fmt.Sscanf(args[0], "%d", &total); err != nil {
				return fmt.Errorf("invalid element count %q", args[0])
			}
			p, ok := tier.ByName(tier.Name(planTier))
			if !ok {
				return fmt.Errorf("unknown tier %q", planTier)
			}
			plan, err := chunk.PlanChunks(total, p.ChunkCount)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(plan)
			}
			fmt.Printf("tier=%s elements=%d chunks=%d sizes=%v\n",
				p.Name, plan.TotalElements, plan.ChunkCount, plan.Sizes)
			return nil
		},
	}
	planCmd.Flags().StringVar(&planTier, "tier", string(tier.Balanced), "Tier whose chunk count to use")

	root.AddCommand(probeCmd, tiersCmd, planCmd)
	return root
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtBytes(n uint64) string {
	const gib = 1 << 30
	const mib = 1 << 20
	switch {
	case n >= gib:
		return fmt.Sprintf("%.1f GiB", float64(n)/float64(gib))
	case n >= mib:
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(mib))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
