package dispatcher

import (
	"strings"

	"github.com/orgball2608/comment-pulse/internal/adapters"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"go.uber.org/fx"
)

// Dispatcher maps an incoming URL to the adapter that can ingest it.
// Matching is by domain substring in a fixed priority order; an
// unmatched URL is a hard rejection, never a best-effort guess.
type Dispatcher struct {
	adapters map[domain.Platform]adapters.SourceAdapter
}

type rule struct {
	platform domain.Platform
	hosts    []string
}

// Rule order matters: youtu.be must not fall through, and
// stackoverflow.com carries no "stackexchange" substring.
var rules = []rule{
	{domain.PlatformReddit, []string{"reddit.com"}},
	{domain.PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{domain.PlatformFacebook, []string{"facebook.com"}},
	{domain.PlatformInstagram, []string{"instagram.com"}},
	{domain.PlatformStackExchange, []string{"stackexchange.com", "stackoverflow.com"}},
}

type Opts struct {
	fx.In

	Adapters []adapters.SourceAdapter `group:"adapters"`
}

func New(opts Opts) *Dispatcher {
	d := &Dispatcher{adapters: make(map[domain.Platform]adapters.SourceAdapter)}
	for _, a := range opts.Adapters {
		d.adapters[a.Platform()] = a
	}
	return d
}

// Resolve returns the adapter for the URL or ErrUnsupportedURL.
func (d *Dispatcher) Resolve(url string) (adapters.SourceAdapter, error) {
	platform, err := MatchPlatform(url)
	if err != nil {
		return nil, err
	}

	adapter, ok := d.adapters[platform]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrConfiguration, "no adapter registered for %s", platform)
	}
	return adapter, nil
}

// MatchPlatform applies the domain rules without needing adapter
// instances.
func MatchPlatform(url string) (domain.Platform, error) {
	for _, r := range rules {
		for _, host := range r.hosts {
			if strings.Contains(url, host) {
				return r.platform, nil
			}
		}
	}
	return "", apperrors.UnsupportedURL(url)
}
