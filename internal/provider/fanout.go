package provider

import (
	"context"
	"fmt"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"golang.org/x/sync/errgroup"
)

// SearchAliasesFromEnabled queries every source enabled for auxiliary search
// concurrently and returns the union of their aliases. Failing members are
// logged and contribute nothing; the call itself never fails.
func (r *Registry) SearchAliasesFromEnabled(ctx context.Context, keyword string, user User) AliasSet {
	result := AliasSet{}
	if r.sess == nil {
		return result
	}

	enabled, err := r.sess.EnabledAuxSources(ctx)
	if err != nil {
		r.log.Errorw("failed to read enabled auxiliary sources", "error", err)
		return result
	}

	sources := r.current().sources
	targets := make(map[string]Source, len(enabled))
	for _, setting := range enabled {
		name := setting.ProviderName
		src, ok := sources[name]
		if !ok {
			r.log.Warnw("enabled metadata source is not loaded, skipping alias search", "provider", name)
			continue
		}
		targets[name] = src
	}
	if len(targets) == 0 {
		return result
	}

	merged := csmap.Create[string, struct{}]()

	// Members never return an error so one failure cannot cancel the others.
	var g errgroup.Group
	for name, src := range targets {
		g.Go(func() error {
			aliases, err := searchAliases(ctx, src, keyword, user)
			if err != nil {
				r.log.Errorw("auxiliary alias search failed", "provider", name, "error", err)
				return nil
			}
			for alias := range aliases {
				merged.Store(alias, struct{}{})
			}
			return nil
		})
	}
	_ = g.Wait()

	merged.Range(func(alias string, _ struct{}) bool {
		result.Add(alias)
		return false
	})
	return result.Compact()
}

func searchAliases(ctx context.Context, src Source, keyword string, user User) (aliases AliasSet, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			aliases, err = nil, fmt.Errorf("alias search panicked: %v", rec)
		}
	}()
	return src.SearchAliases(ctx, keyword, user)
}
