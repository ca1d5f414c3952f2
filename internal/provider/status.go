package provider

import (
	"context"
	"fmt"
	"sort"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"golang.org/x/sync/errgroup"
)

// SourcesWithStatus probes every loaded source concurrently and merges the
// outcome with the cached settings. Every source present in the settings
// appears in the result, loaded or not, ordered by display order.
func (r *Registry) SourcesWithStatus(ctx context.Context) []SourceStatus {
	snap := r.current()

	outcomes := csmap.Create[string, string]()

	var g errgroup.Group
	for name, src := range snap.sources {
		g.Go(func() error {
			status, err := checkConnectivity(ctx, src)
			if err != nil {
				r.log.Errorw("error checking metadata source connectivity", "provider", name, "error", err)
				return nil
			}
			outcomes.Store(name, status)
			return nil
		})
	}
	_ = g.Wait()

	rows := make([]SourceStatus, 0, len(snap.settings))
	for name, setting := range snap.settings {
		status, ok := outcomes.Load(name)
		if !ok {
			status = StatusCheckFailed
		}
		rows = append(rows, SourceStatus{
			ProviderName:       name,
			IsAuxSearchEnabled: setting.IsAuxSearchEnabled,
			DisplayOrder:       setting.DisplayOrder,
			Status:             status,
			UseProxy:           setting.UseProxy,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DisplayOrder != rows[j].DisplayOrder {
			return rows[i].DisplayOrder < rows[j].DisplayOrder
		}
		return rows[i].ProviderName < rows[j].ProviderName
	})
	return rows
}

func checkConnectivity(ctx context.Context, src Source) (status string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			status, err = "", fmt.Errorf("connectivity check panicked: %v", rec)
		}
	}()
	return src.CheckConnectivity(ctx), nil
}
