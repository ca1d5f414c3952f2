package provider

import (
	"context"
	"net/http"
)

// MediaType represents the type of media content a lookup targets
type MediaType string

const (
	MediaTypeAny   MediaType = ""
	MediaTypeTV    MediaType = "tv"
	MediaTypeMovie MediaType = "movie"
)

// Valid reports whether the media type is one of the concrete kinds.
func (m MediaType) Valid() bool {
	return m == MediaTypeTV || m == MediaTypeMovie
}

// User identifies the caller on whose behalf a source is queried.
type User struct {
	ID       int64
	Username string
}

// Source is the interface every metadata source plugin must implement
type Source interface {
	// Identification
	Name() string

	// Lookups
	Search(ctx context.Context, keyword string, user User, mediaType MediaType) ([]Record, error)
	Details(ctx context.Context, id string, user User, mediaType MediaType) (*Record, error)
	SearchAliases(ctx context.Context, keyword string, user User) (AliasSet, error)

	// CheckConnectivity returns a human readable status and never fails.
	CheckConnectivity(ctx context.Context) string

	// ExecuteAction runs a provider specific action. Unknown actions return
	// an UNSUPPORTED_ACTION error.
	ExecuteAction(ctx context.Context, action string, payload map[string]any, user User, req *http.Request) (any, error)

	// Close releases owned resources. It is safe to call more than once.
	Close() error
}

// RouteProvider is implemented by sources that expose their own HTTP routes.
type RouteProvider interface {
	Routes() http.Handler
}

// EpisodeMappingUpdater is implemented by sources that can rebuild stored
// episode group mappings for a show.
type EpisodeMappingUpdater interface {
	UpdateEpisodeMappings(ctx context.Context, tvID int, groupID string, user User) error
}

// Factory constructs a source bound to the shared session and configuration.
// Factories must not perform I/O.
type Factory func(sess Session, cfg Config) Source

// Descriptor identifies a discoverable source implementation
type Descriptor struct {
	Name string
	New  Factory
}

// Record is the normalized search result and details shape shared by all
// sources.
type Record struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	SourceID string `json:"sourceId,omitempty"` // Provider-specific id
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
	Details  string `json:"details,omitempty"`

	// Crosswalk ids into other catalogs
	ImdbID string `json:"imdbId,omitempty"`
	TvdbID string `json:"tvdbId,omitempty"`

	// Alternate names used for alias matching
	NameEn     string   `json:"nameEn,omitempty"`
	NameJp     string   `json:"nameJp,omitempty"`
	NameRomaji string   `json:"nameRomaji,omitempty"`
	AliasesCN  []string `json:"aliasesCn,omitempty"`
}

// SourceSetting is the persisted per-source configuration row.
type SourceSetting struct {
	ProviderName       string `json:"providerName"`
	IsAuxSearchEnabled bool   `json:"isAuxSearchEnabled"`
	DisplayOrder       int    `json:"displayOrder"`
	UseProxy           bool   `json:"useProxy"`
}

// DefaultDisplayOrder is used for sources without a persisted order.
const DefaultDisplayOrder = 99

// SourceStatus is one row of the merged settings and connectivity view.
type SourceStatus struct {
	ProviderName       string `json:"providerName"`
	IsAuxSearchEnabled bool   `json:"isAuxSearchEnabled"`
	DisplayOrder       int    `json:"displayOrder"`
	Status             string `json:"status"`
	UseProxy           bool   `json:"useProxy"`
}

// SettingsStore persists source settings.
type SettingsStore interface {
	SyncDiscoveredProviders(ctx context.Context, names []string) error
	AllSourceSettings(ctx context.Context) ([]SourceSetting, error)
	EnabledAuxSources(ctx context.Context) ([]SourceSetting, error)
}

// BangumiAuth is the stored OAuth state for one user.
type BangumiAuth struct {
	UserID          int64  `json:"-"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	BangumiUserID   int64  `json:"bangumiUserId,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
	AvatarURL       string `json:"avatarUrl,omitempty"`
	AccessToken     string `json:"-"`
	RefreshToken    string `json:"-"`
	ExpiresAt       int64  `json:"expiresAt,omitempty"`
}

// AuthStore persists per-user OAuth credentials and pending OAuth states.
type AuthStore interface {
	BangumiAuth(ctx context.Context, userID int64) (*BangumiAuth, error)
	SaveBangumiAuth(ctx context.Context, auth BangumiAuth) error
	DeleteBangumiAuth(ctx context.Context, userID int64) error
	CreateOAuthState(ctx context.Context, userID int64) (string, error)
	ConsumeOAuthState(ctx context.Context, state string) (int64, error)
}

// EpisodeMapping maps one episode of a TMDB episode group to its position.
type EpisodeMapping struct {
	TMDBTVID      int
	GroupID       string
	EpisodeID     int
	SeasonNumber  int
	EpisodeNumber int
	CustomSeason  int
	CustomEpisode int
	AbsoluteIndex int
}

// MappingStore persists TMDB episode group mappings.
type MappingStore interface {
	ReplaceEpisodeMappings(ctx context.Context, tvID int, groupID string, mappings []EpisodeMapping) error
}

// Session is the shared persistence access handed to every source.
type Session interface {
	SettingsStore
	AuthStore
	MappingStore
}

// Config is the shared key/value configuration access.
type Config interface {
	Get(ctx context.Context, key, def string) string
}
