package headless

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{Username: "u", Password: "p"}, nil)
	require.ErrorContains(t, err, "login url")

	_, err = NewChromedp(Config{LoginURL: "https://example.com/login"}, nil)
	require.ErrorContains(t, err, "credentials")

	r, err := NewChromedp(Config{LoginURL: "https://example.com/login", Username: "u", Password: "p"}, nil)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 1, cap(r.limiter))
	require.Equal(t, defaultNavigationTimeout, r.navTimeout())
	require.Len(t, r.loginActions(), 6)
}

func TestResolverNavTimeoutOverride(t *testing.T) {
	t.Parallel()

	r := &Resolver{}
	require.Equal(t, defaultNavigationTimeout, r.navTimeout())
	r.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, r.navTimeout())
}

func TestResolverAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	r := &Resolver{limiter: make(chan struct{}, 1)}
	require.NoError(t, r.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.acquire(ctx), context.Canceled)

	r.release()
	require.NoError(t, r.acquire(context.Background()))
}

func TestPickLocator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		page  string
		hrefs []string
		want  string
	}{
		{
			name:  "absolute",
			page:  "https://www.linkedin.com/company/acme/jobs",
			hrefs: []string{"https://www.linkedin.com/jobs/search?f_C=1&geoId=2&trk=x"},
			want:  "https://www.linkedin.com/jobs/search?f_C=1&geoId=2&trk=x",
		},
		{
			name:  "relative after blank",
			page:  "https://www.linkedin.com/company/acme/jobs",
			hrefs: []string{"  ", "/jobs/search?f_C=1"},
			want:  "https://www.linkedin.com/jobs/search?f_C=1",
		},
		{
			name: "none",
			page: "https://www.linkedin.com/company/acme/jobs",
			want: "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, pickLocator(tt.page, tt.hrefs))
		})
	}
}

func TestNoopResolver(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().ResolveLocator(context.Background(), "https://example.com")
	require.ErrorIs(t, err, crawler.ErrResolverDisabled)
}
