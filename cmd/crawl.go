package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

type crawlOptions struct {
	company  string
	location string
	language string
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one organization's postings, then enrich stored postings",
		Long: `Resolves the organization's feed, walks it page by page storing every
new posting, then fetches descriptions for every stored posting still missing
one. The company is prompted for when --company is omitted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.company, "company", "c", "", "organization name")
	cmd.Flags().StringVarP(&opts.location, "location", "l", "",
		"region code, one of "+strings.Join(crawler.RegionCodes(), ", "))
	cmd.Flags().StringVarP(&opts.language, "set-lang", "s", "", "language tag stored with new postings")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts crawlOptions) error {
	region, err := crawler.ParseRegion(opts.location)
	if err != nil {
		return usagef("%v", err)
	}
	if err := validateLanguage(opts.language); err != nil {
		return err
	}
	svc, err := resolveServices(cmd.Context())
	if err != nil {
		return err
	}

	company := strings.TrimSpace(opts.company)
	if company == "" {
		company, err = promptLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Company name: ")
		if err != nil {
			return err
		}
		if company == "" {
			return usagef("a company name is required")
		}
	}

	target, err := svc.Organizations().Resolve(cmd.Context(), company)
	if errors.Is(err, crawler.ErrOrganizationUnresolvable) {
		svc.Logger().Warn("organization unresolvable", zap.String("organization", company), zap.Error(err))
		return usagef("unable to find jobs for this company: %s", company)
	}
	if err != nil {
		return fmt.Errorf("resolve organization: %w", err)
	}

	harvester := svc.Harvester()
	crawlStats, err := harvester.RunListingCrawl(cmd.Context(), target, region, opts.language)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages, %d new postings, %d already stored (%s)\n",
		target.Name, crawlStats.Pages, crawlStats.Inserted, crawlStats.Skipped, crawlStats.Stop)

	sweepStats, err := harvester.RunEnrichmentSweep(cmd.Context())
	if err != nil {
		return err
	}
	printSweep(cmd.OutOrStdout(), sweepStats.Described, sweepStats.Retired, sweepStats.Transient)
	return nil
}

func printSweep(w io.Writer, described, retired, transient int) {
	fmt.Fprintf(w, "descriptions: %d attached, %d retired postings removed, %d left for later\n",
		described, retired, transient)
}

func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
