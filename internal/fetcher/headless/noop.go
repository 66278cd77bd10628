package headless

import (
	"context"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

// Noop implements crawler.LocatorResolver when headless browsing is disabled.
type Noop struct{}

// NewNoop creates a new Noop resolver.
func NewNoop() *Noop {
	return &Noop{}
}

// ResolveLocator always fails with crawler.ErrResolverDisabled.
func (Noop) ResolveLocator(context.Context, string) (string, error) {
	return "", crawler.ErrResolverDisabled
}
