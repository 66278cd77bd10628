package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
	"github.com/JakeFAU/jobpost-harvester/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	var location, language string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Harvest every saved organization on the configured schedule",
		Long: `Crawls every saved organization record followed by one enrichment sweep,
immediately and then on every tick of schedule.spec, until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			region, err := crawler.ParseRegion(location)
			if err != nil {
				return usagef("%v", err)
			}
			if err := validateLanguage(language); err != nil {
				return err
			}
			svc, err := resolveServices(cmd.Context())
			if err != nil {
				return err
			}
			s, err := scheduler.New(svc.Organizations(), svc.Harvester(), scheduler.Config{
				Spec:     svc.Config().Schedule.Spec,
				Region:   region,
				Language: language,
			}, svc.Logger().Named("scheduler"))
			if err != nil {
				return usagef("%v", err)
			}
			return s.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "region code applied to every organization")
	cmd.Flags().StringVarP(&language, "set-lang", "s", "", "language tag stored with new postings")
	return cmd
}
