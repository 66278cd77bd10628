// Package cmd defines the harvester CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/app"
	"github.com/JakeFAU/jobpost-harvester/internal/config"
	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
	"github.com/JakeFAU/jobpost-harvester/internal/logging"
	"github.com/JakeFAU/jobpost-harvester/internal/organization"
	"github.com/JakeFAU/jobpost-harvester/internal/scheduler"
)

// Organizations resolves and lists organization records.
type Organizations interface {
	Resolve(ctx context.Context, name string) (crawler.Target, error)
	List() ([]organization.Record, error)
}

// Services is what the commands need from the application container. Tests
// inject a fake through the factory passed to newRootCmd.
type Services interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Organizations() Organizations
	Harvester() scheduler.Harvester
}

// Factory builds Services from a config file path.
type Factory func(ctx context.Context, cfgPath string) (Services, error)

type servicesKeyType string

const servicesKey servicesKeyType = "services"

// usageError marks parameter validation failures, which exit with code 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// maxLanguageLen matches the width of the stored language column.
const maxLanguageLen = 5

func validateLanguage(language string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(language)); n > maxLanguageLen {
		return usagef("language %q is longer than %d characters", language, maxLanguageLen)
	}
	return nil
}

// newRootCmd builds the command tree. The returned func closes the services
// created for the executed command and must run even when it fails.
func newRootCmd(factory Factory) (*cobra.Command, func()) {
	var (
		cfgFile string
		svc     Services
	)
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests job postings into a deduplicated store",
		Long: `harvester walks the paginated job feed of an organization, stores every
posting once per (source id, title) and later enriches stored postings with
their descriptions.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			built, err := factory(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			svc = built
			cmd.SetContext(context.WithValue(cmd.Context(), servicesKey, built))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newEnrichCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newOrganizationsCmd())
	return cmd, func() {
		if svc != nil {
			svc.Close()
		}
	}
}

func resolveServices(ctx context.Context) (Services, error) {
	svc, ok := ctx.Value(servicesKey).(Services)
	if !ok || svc == nil {
		return nil, errors.New("application services not initialized")
	}
	return svc, nil
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root, closeServices := newRootCmd(defaultFactory)
	err := root.ExecuteContext(ctx)
	closeServices()
	stop()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	var usage *usageError
	if errors.As(err, &usage) {
		os.Exit(2)
	}
	os.Exit(1)
}

type appServices struct {
	*app.App
}

func (s appServices) Organizations() Organizations {
	return s.Registry()
}

func (s appServices) Harvester() scheduler.Harvester {
	return s.Pipeline()
}

func (s appServices) Close() {
	s.App.Close()
	_ = logging.Sync(s.Logger())
}

func defaultFactory(ctx context.Context, cfgPath string) (Services, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logging.Sync(logger)
		return nil, err
	}
	return appServices{App: a}, nil
}
