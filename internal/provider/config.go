package provider

import "context"

// configKeys maps each known source to the configuration keys it consumes.
var configKeys = map[string][]string{
	"tmdb":    {"tmdbApiKey", "tmdbApiBaseUrl", "tmdbImageBaseUrl"},
	"bangumi": {"bangumiClientId", "bangumiClientSecret"},
	"douban":  {"doubanCookie"},
	"tvdb":    {"tvdbApiKey"},
	"omdb":    {"omdbApiKey"},
	"imdb":    {},
	"360":     {},
}

// singleValueSources present their configuration as {"value": ...}.
var singleValueSources = map[string]bool{
	"douban": true,
	"tvdb":   true,
	"omdb":   true,
}

// ProviderConfig returns the configured values of a loaded source.
func (r *Registry) ProviderConfig(ctx context.Context, name string) (map[string]string, error) {
	if _, err := r.lookup(name); err != nil {
		return nil, err
	}

	keys, ok := configKeys[name]
	if !ok {
		r.log.Warnw("metadata source is loaded but has no configuration keys defined", "provider", name)
		return map[string]string{}, nil
	}

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		values[key] = r.configValue(ctx, key)
	}

	if singleValueSources[name] {
		first := ""
		if len(keys) > 0 {
			first = values[keys[0]]
		}
		return map[string]string{"value": first}, nil
	}
	return values, nil
}

func (r *Registry) configValue(ctx context.Context, key string) string {
	if r.cfg == nil {
		return ""
	}
	return r.cfg.Get(ctx, key, "")
}
