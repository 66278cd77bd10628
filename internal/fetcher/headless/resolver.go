// Package headless resolves organization feed locators with an authenticated
// headless Chrome session.
package headless

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultLoginSettle       = 5 * time.Second

	usernameSelector = "#username"
	passwordSelector = "#password"
	jobsLinkSelector = ".org-jobs-recently-posted-jobs-module a[href]"
)

// Config controls the behavior of the headless resolver.
type Config struct {
	LoginURL          string
	Username          string
	Password          string
	UserAgent         string
	NavigationTimeout time.Duration
	// LoginSettle is how long to wait after submitting credentials.
	LoginSettle time.Duration
}

// Resolver implements crawler.LocatorResolver using chromedp. Lookups are
// serialized so only one browser session logs in at a time.
type Resolver struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewChromedp creates a resolver backed by a headless Chrome allocator.
func NewChromedp(cfg Config, logger *zap.Logger) (*Resolver, error) {
	if cfg.LoginURL == "" {
		return nil, fmt.Errorf("login url is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("login credentials are required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.LoginSettle < 0 {
		cfg.LoginSettle = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Resolver{
		cfg:         cfg,
		limiter:     make(chan struct{}, 1),
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context.
func (r *Resolver) Close() {
	r.allocCancel()
}

// ResolveLocator logs in, opens the organization's jobs page and returns the
// "see all jobs" link. It returns an empty string when the page has none.
func (r *Resolver) ResolveLocator(ctx context.Context, organizationPageURL string) (string, error) {
	if err := r.acquire(ctx); err != nil {
		return "", err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.navTimeout())
	defer cancel()

	var nodes []*cdp.Node
	actions := append(r.loginActions(),
		chromedp.Navigate(organizationPageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Nodes(jobsLinkSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	start := time.Now()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}

	hrefs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		hrefs = append(hrefs, n.AttributeValue("href"))
	}
	locator := pickLocator(organizationPageURL, hrefs)
	r.logger.Info("resolved organization locator",
		zap.String("page", organizationPageURL),
		zap.Bool("found", locator != ""),
		zap.Duration("duration", time.Since(start)),
	)
	return locator, nil
}

func (r *Resolver) loginActions() []chromedp.Action {
	return []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(r.cfg.LoginURL),
		chromedp.WaitVisible(usernameSelector, chromedp.ByID),
		chromedp.SendKeys(usernameSelector, r.cfg.Username, chromedp.ByID),
		chromedp.SendKeys(passwordSelector, r.cfg.Password+kb.Enter, chromedp.ByID),
		chromedp.Sleep(r.cfg.LoginSettle),
	}
}

func (r *Resolver) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Resolver) acquire(ctx context.Context) error {
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Resolver) release() {
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Resolver) navTimeout() time.Duration {
	if r.cfg.NavigationTimeout > 0 {
		return r.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// pickLocator returns the first non-empty href resolved against the page URL.
func pickLocator(pageURL string, hrefs []string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
