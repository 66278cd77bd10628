package cmd

import (
	"github.com/spf13/cobra"
)

func newEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Fetch descriptions for stored postings that have none",
		Long: `Runs one enrichment sweep. Postings whose detail page moved permanently are
deleted; postings that fail for any other reason are kept for the next sweep,
so an interrupted sweep can simply be run again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := resolveServices(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := svc.Harvester().RunEnrichmentSweep(cmd.Context())
			if err != nil {
				return err
			}
			printSweep(cmd.OutOrStdout(), stats.Described, stats.Retired, stats.Transient)
			return nil
		},
	}
}
