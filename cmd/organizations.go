package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newOrganizationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "organizations",
		Aliases: []string{"orgs"},
		Short:   "List saved organization records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := resolveServices(cmd.Context())
			if err != nil {
				return err
			}
			records, err := svc.Organizations().List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSLUG\tJOBS URL")
			for _, rec := range records {
				url := rec.JobsURL
				if url == "" {
					url = "(unresolved)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", rec.Name, rec.Slug, url)
			}
			return w.Flush()
		},
	}
}
