// Package source assembles the reference resolver from configuration.
package source

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/app/resolver"
	"github.com/mcarli/jambox/internal/infra/catalog"
	"github.com/mcarli/jambox/internal/infra/config"
	"github.com/mcarli/jambox/internal/infra/youtube"
)

// NewResolverFromConfig builds the resolver with one client per configured
// source. A youtube source is mandatory; a catalog source is optional.
func NewResolverFromConfig(ctx context.Context, cfg *config.Config) (*resolver.Resolver, error) {
	if len(cfg.Resolver.Sources) == 0 {
		return nil, errors.New("no resolution sources configured")
	}

	var (
		yt  *youtube.Client
		cat *catalog.Client
		err error
	)
	for i, scfg := range cfg.Resolver.Sources {
		zlog.Debug().Msgf("creating resolution source: index=%d type=%s", i+1, scfg.Type)
		switch scfg.Type {
		case "youtube":
			yt, err = youtube.New(scfg.Settings)

		case "catalog":
			cat, err = catalog.New(ctx, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}
		zlog.Info().Msgf("registered resolution source: index=%d type=%s", i+1, scfg.Type)
	}
	if yt == nil {
		return nil, errors.New("a youtube source is required")
	}

	opts := []resolver.Option{resolver.WithMirrorRoot(cfg.Resolver.MirrorRoot)}
	if cat != nil {
		opts = append(opts, resolver.WithCatalog(cat))
	}
	return resolver.New(yt, yt, opts...), nil
}
