// Package providertest provides in-memory fakes for exercising metadata
// sources and the registry without a database.
package providertest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// Session is an in-memory provider.Session
type Session struct {
	mu       sync.Mutex
	settings map[string]provider.SourceSetting
	auth     map[int64]provider.BangumiAuth
	states   map[string]int64
	mappings map[int][]provider.EpisodeMapping
	nextID   int

	// Err, when set, fails every settings call
	Err error
}

// NewSession returns an empty session
func NewSession() *Session {
	return &Session{
		settings: make(map[string]provider.SourceSetting),
		auth:     make(map[int64]provider.BangumiAuth),
		states:   make(map[string]int64),
		mappings: make(map[int][]provider.EpisodeMapping),
	}
}

// Put stores a settings row directly
func (s *Session) Put(setting provider.SourceSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[setting.ProviderName] = setting
}

// SyncDiscoveredProviders implements provider.SettingsStore
func (s *Session) SyncDiscoveredProviders(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	maxOrder := 0
	for _, row := range s.settings {
		maxOrder = max(maxOrder, row.DisplayOrder)
	}
	for _, name := range names {
		if _, ok := s.settings[name]; ok {
			continue
		}
		maxOrder++
		s.settings[name] = provider.SourceSetting{ProviderName: name, DisplayOrder: maxOrder}
	}
	return nil
}

// AllSourceSettings implements provider.SettingsStore
func (s *Session) AllSourceSettings(context.Context) ([]provider.SourceSetting, error) {
	return s.rows(func(provider.SourceSetting) bool { return true })
}

// EnabledAuxSources implements provider.SettingsStore
func (s *Session) EnabledAuxSources(context.Context) ([]provider.SourceSetting, error) {
	return s.rows(func(row provider.SourceSetting) bool { return row.IsAuxSearchEnabled })
}

func (s *Session) rows(keep func(provider.SourceSetting) bool) ([]provider.SourceSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []provider.SourceSetting
	for _, row := range s.settings {
		if keep(row) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ProviderName < out[j].ProviderName
	})
	return out, nil
}

// BangumiAuth implements provider.AuthStore
func (s *Session) BangumiAuth(_ context.Context, userID int64) (*provider.BangumiAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.auth[userID]
	if !ok {
		return &provider.BangumiAuth{UserID: userID}, nil
	}
	auth.IsAuthenticated = auth.AccessToken != ""
	return &auth, nil
}

// SaveBangumiAuth implements provider.AuthStore
func (s *Session) SaveBangumiAuth(_ context.Context, auth provider.BangumiAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth[auth.UserID] = auth
	return nil
}

// DeleteBangumiAuth implements provider.AuthStore
func (s *Session) DeleteBangumiAuth(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.auth, userID)
	return nil
}

// CreateOAuthState implements provider.AuthStore
func (s *Session) CreateOAuthState(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	state := fmt.Sprintf("state-%d", s.nextID)
	s.states[state] = userID
	return state, nil
}

// ConsumeOAuthState implements provider.AuthStore
func (s *Session) ConsumeOAuthState(_ context.Context, state string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.states[state]
	if !ok {
		return 0, errors.New("invalid or expired oauth state")
	}
	delete(s.states, state)
	return userID, nil
}

// ReplaceEpisodeMappings implements provider.MappingStore
func (s *Session) ReplaceEpisodeMappings(_ context.Context, tvID int, groupID string, mappings []provider.EpisodeMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]provider.EpisodeMapping, len(mappings))
	for i, m := range mappings {
		m.TMDBTVID = tvID
		m.GroupID = groupID
		stored[i] = m
	}
	s.mappings[tvID] = stored
	return nil
}

// Mappings returns the stored mappings of a show
func (s *Session) Mappings(tvID int) []provider.EpisodeMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappings[tvID]
}

// Config is a map backed provider.Config
type Config map[string]string

// Get implements provider.Config
func (c Config) Get(_ context.Context, key, def string) string {
	if v, ok := c[key]; ok {
		return v
	}
	return def
}

// Source is a provider.Source whose behavior is set through function fields.
// Unset lookups return empty results.
type Source struct {
	SourceName string

	SearchFunc        func(ctx context.Context, keyword string, user provider.User, mediaType provider.MediaType) ([]provider.Record, error)
	DetailsFunc       func(ctx context.Context, id string, user provider.User, mediaType provider.MediaType) (*provider.Record, error)
	SearchAliasesFunc func(ctx context.Context, keyword string, user provider.User) (provider.AliasSet, error)
	CheckFunc         func(ctx context.Context) string
	ActionFunc        func(ctx context.Context, action string, payload map[string]any, user provider.User, req *http.Request) (any, error)
	CloseFunc         func() error

	mu     sync.Mutex
	closed int
}

// Name implements provider.Source
func (s *Source) Name() string { return s.SourceName }

// Search implements provider.Source
func (s *Source) Search(ctx context.Context, keyword string, user provider.User, mediaType provider.MediaType) ([]provider.Record, error) {
	if s.SearchFunc == nil {
		return nil, nil
	}
	return s.SearchFunc(ctx, keyword, user, mediaType)
}

// Details implements provider.Source
func (s *Source) Details(ctx context.Context, id string, user provider.User, mediaType provider.MediaType) (*provider.Record, error) {
	if s.DetailsFunc == nil {
		return nil, nil
	}
	return s.DetailsFunc(ctx, id, user, mediaType)
}

// SearchAliases implements provider.Source
func (s *Source) SearchAliases(ctx context.Context, keyword string, user provider.User) (provider.AliasSet, error) {
	if s.SearchAliasesFunc == nil {
		return provider.NewAliasSet(), nil
	}
	return s.SearchAliasesFunc(ctx, keyword, user)
}

// CheckConnectivity implements provider.Source
func (s *Source) CheckConnectivity(ctx context.Context) string {
	if s.CheckFunc == nil {
		return provider.StatusConnected
	}
	return s.CheckFunc(ctx)
}

// ExecuteAction implements provider.Source
func (s *Source) ExecuteAction(ctx context.Context, action string, payload map[string]any, user provider.User, req *http.Request) (any, error) {
	if s.ActionFunc == nil {
		return nil, provider.UnsupportedAction(s.SourceName, action)
	}
	return s.ActionFunc(ctx, action, payload, user, req)
}

// Close implements provider.Source
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	if s.CloseFunc == nil {
		return nil
	}
	return s.CloseFunc()
}

// Closed returns how many times Close was called
func (s *Source) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Descriptor returns a descriptor whose factory always yields src
func Descriptor(src *Source) provider.Descriptor {
	return provider.Descriptor{
		Name: src.SourceName,
		New:  func(provider.Session, provider.Config) provider.Source { return src },
	}
}
