package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry owns the lifecycle of every metadata source. All mutation happens
// in Reload and Close, which build a complete snapshot before swapping it in,
// so concurrent readers see either the previous or the next state.
type Registry struct {
	log      *zap.SugaredLogger
	sess     Session
	cfg      Config
	discover func() []Descriptor

	mu   sync.Mutex // serializes Reload and Close
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	sources  map[string]Source
	caps     map[string]Capabilities
	settings map[string]SourceSetting
}

var emptySnapshot = &snapshot{
	sources:  map[string]Source{},
	caps:     map[string]Capabilities{},
	settings: map[string]SourceSetting{},
}

// NewRegistry creates a registry. discover returns the compiled-in catalog
// of source descriptors; nothing is loaded until Reload is called.
func NewRegistry(sess Session, cfg Config, discover func() []Descriptor, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Registry{
		log:      log,
		sess:     sess,
		cfg:      cfg,
		discover: discover,
	}
	r.snap.Store(emptySnapshot)
	return r
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Reload discovers sources, reconciles them with persisted settings and
// instantiates one source per discovered name. Individual failures are
// logged and skipped; Reload itself never fails.
func (r *Registry) Reload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	descriptors := r.discoverDescriptors()

	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)

	next := &snapshot{
		sources:  make(map[string]Source, len(descriptors)),
		caps:     make(map[string]Capabilities, len(descriptors)),
		settings: r.syncSettings(ctx, names),
	}

	for _, name := range names {
		src, err := r.instantiate(descriptors[name])
		if err != nil {
			r.log.Errorw("failed to instantiate metadata source", "provider", name, "error", err)
			continue
		}
		next.sources[name] = src
		next.caps[name] = CapabilitiesOf(src)
		r.log.Infow("loaded metadata source", "provider", name)
	}

	previous := r.snap.Swap(next)
	r.closeSources(previous.sources)
}

// discoverDescriptors walks the catalog. Later descriptors override earlier
// ones with the same name.
func (r *Registry) discoverDescriptors() (found map[string]Descriptor) {
	found = make(map[string]Descriptor)
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("metadata source discovery panicked", "panic", rec)
		}
	}()

	if r.discover == nil {
		return found
	}
	for _, desc := range r.discover() {
		if isTemplateEntry(desc.Name) {
			continue
		}
		if err := ValidateDescriptor(desc); err != nil {
			r.log.Errorw("skipping metadata source", "provider", desc.Name, "error", err)
			continue
		}
		if _, dup := found[desc.Name]; dup {
			r.log.Warnw("duplicate metadata source discovered, overriding", "provider", desc.Name)
		}
		found[desc.Name] = desc
		r.log.Debugw("discovered metadata source", "provider", desc.Name)
	}
	return found
}

// syncSettings inserts missing rows and reads back the snapshot, restricted
// to the discovered names.
func (r *Registry) syncSettings(ctx context.Context, names []string) map[string]SourceSetting {
	settings := make(map[string]SourceSetting, len(names))
	if r.sess == nil {
		return settings
	}

	if err := r.sess.SyncDiscoveredProviders(ctx, names); err != nil {
		r.log.Errorw("failed to sync discovered metadata sources", "error", err)
	}
	rows, err := r.sess.AllSourceSettings(ctx)
	if err != nil {
		r.log.Errorw("failed to load metadata source settings", "error", err)
		return settings
	}

	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}
	for _, row := range rows {
		if known[row.ProviderName] {
			settings[row.ProviderName] = row
		}
	}
	return settings
}

func (r *Registry) instantiate(desc Descriptor) (src Source, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			src, err = nil, fmt.Errorf("constructor panicked: %v", rec)
		}
	}()

	src = desc.New(r.sess, r.cfg)
	if src == nil {
		return nil, fmt.Errorf("constructor returned nil")
	}
	if got := src.Name(); got != desc.Name {
		r.log.Warnw("metadata source reports a different name than its descriptor", "provider", desc.Name, "reported", got)
	}
	return src, nil
}

// Close closes every loaded source. Failures are logged, never returned,
// and the registry ends up empty.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("closing all metadata sources")
	previous := r.snap.Swap(emptySnapshot)
	r.closeSources(previous.sources)
	r.log.Info("all metadata sources closed")
}

func (r *Registry) closeSources(sources map[string]Source) {
	if len(sources) == 0 {
		return
	}

	var g errgroup.Group
	for name, src := range sources {
		g.Go(func() error {
			if err := closeSource(src); err != nil {
				r.log.Errorw("error closing metadata source", "provider", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func closeSource(src Source) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("close panicked: %v", rec)
		}
	}()
	return src.Close()
}

// Get returns a loaded source by name
func (r *Registry) Get(name string) (Source, bool) {
	src, ok := r.current().sources[name]
	return src, ok
}

// LoadedNames returns the names of all loaded sources in lexical order
func (r *Registry) LoadedNames() []string {
	sources := r.current().sources
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Settings returns the cached settings snapshot ordered by display order.
func (r *Registry) Settings() []SourceSetting {
	cached := r.current().settings
	out := make([]SourceSetting, 0, len(cached))
	for _, s := range cached {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ProviderName < out[j].ProviderName
	})
	return out
}

func (r *Registry) lookup(name string) (Source, error) {
	src, ok := r.Get(name)
	if !ok {
		return nil, NotFound(name)
	}
	return src, nil
}

// call runs one provider operation, recovering panics and normalizing errors.
func (r *Registry) call(name, op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panicked: %v", op, rec)
		}
		if err != nil {
			perr := normalizeError(name, op, err)
			if perr.Code == CodeUnexpected {
				r.log.Errorw("metadata source call failed", "provider", name, "op", op, "error", err)
			}
			err = perr
		}
	}()
	return fn()
}

// Search searches one source.
func (r *Registry) Search(ctx context.Context, name, keyword string, user User, mediaType MediaType) ([]Record, error) {
	src, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	var records []Record
	err = r.call(name, "search", func() (err error) {
		records, err = src.Search(ctx, keyword, user, mediaType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Details fetches one item from one source. A nil record means the item does
// not exist.
func (r *Registry) Details(ctx context.Context, name, id string, user User, mediaType MediaType) (*Record, error) {
	src, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	var record *Record
	err = r.call(name, "details", func() (err error) {
		record, err = src.Details(ctx, id, user, mediaType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ExecuteAction runs a source specific action.
func (r *Registry) ExecuteAction(ctx context.Context, name, action string, payload map[string]any, user User, req *http.Request) (any, error) {
	src, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	var result any
	err = r.call(name, "action "+action, func() (err error) {
		result, err = src.ExecuteAction(ctx, action, payload, user, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateTMDBMappings delegates an episode group mapping refresh to the tmdb
// source. Missing support is logged and ignored.
func (r *Registry) UpdateTMDBMappings(ctx context.Context, tvID int, groupID string, user User) error {
	snap := r.current()
	src, ok := snap.sources["tmdb"]
	if !ok {
		r.log.Warn("tmdb metadata source is not loaded, skipping mapping update")
		return nil
	}
	if !snap.caps["tmdb"].EpisodeMappings {
		r.log.Warn("tmdb metadata source does not support episode mapping updates")
		return nil
	}

	r.log.Infow("delegating tmdb mapping update", "tv_id", tvID, "group_id", groupID)
	return r.call("tmdb", "update mappings", func() error {
		return src.(EpisodeMappingUpdater).UpdateEpisodeMappings(ctx, tvID, groupID, user)
	})
}
