package tmdb

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ryanbradynd05/go-tmdb"
	"golang.org/x/sync/errgroup"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// Search looks up shows or movies by title. TMDB needs a concrete media type.
func (p *Provider) Search(ctx context.Context, keyword string, _ provider.User, mediaType provider.MediaType) ([]provider.Record, error) {
	if !mediaType.Valid() {
		return nil, provider.InvalidRequest(providerName, "TMDB search requires a media type of tv or movie")
	}
	api, err := p.api(ctx)
	if err != nil {
		return nil, err
	}
	images := p.imageBaseURL(ctx)

	params := url.Values{"query": {keyword}, "include_adult": {"false"}, "language": {"zh-CN"}}
	if mediaType == provider.MediaTypeTV {
		var results tmdb.TvSearchResults
		if err := api.get(ctx, "/search/tv", params, &results); err != nil {
			return nil, err
		}
		records := make([]provider.Record, 0, len(results.Results))
		for _, show := range results.Results {
			records = append(records, provider.Record{
				Provider: providerName,
				ID:       strconv.Itoa(show.ID),
				SourceID: strconv.Itoa(show.ID),
				Title:    show.Name,
				ImageURL: imageURL(images, show.PosterPath),
				Details:  searchDetails(show.FirstAirDate, show.OriginalName),
			})
		}
		return records, nil
	}

	var results tmdb.MovieSearchResults
	if err := api.get(ctx, "/search/movie", params, &results); err != nil {
		return nil, err
	}
	records := make([]provider.Record, 0, len(results.Results))
	for _, movie := range results.Results {
		records = append(records, provider.Record{
			Provider: providerName,
			ID:       strconv.Itoa(movie.ID),
			SourceID: strconv.Itoa(movie.ID),
			Title:    movie.Title,
			ImageURL: imageURL(images, movie.PosterPath),
			Details:  searchDetails(movie.ReleaseDate, movie.OriginalTitle),
		})
	}
	return records, nil
}

func searchDetails(date, original string) string {
	if date == "" {
		date = "unknown year"
	}
	if original == "" {
		original = "N/A"
	}
	return date + " / " + original
}

type alternativeTitle struct {
	Country string `json:"iso_3166_1"`
	Title   string `json:"title"`
	Type    string `json:"type"`
}

// detailsResponse is the zh-CN details payload with appended responses.
// Shows list alternative titles under results, movies under titles.
type detailsResponse struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Title             string `json:"title"`
	Overview          string `json:"overview"`
	PosterPath        string `json:"poster_path"`
	AlternativeTitles struct {
		Titles  []alternativeTitle `json:"titles"`
		Results []alternativeTitle `json:"results"`
	} `json:"alternative_titles"`
	ExternalIDs struct {
		ImdbID string `json:"imdb_id"`
		TvdbID int    `json:"tvdb_id"`
	} `json:"external_ids"`
}

// Details fetches one show or movie with its localized names. A missing item
// yields nil.
func (p *Provider) Details(ctx context.Context, id string, _ provider.User, mediaType provider.MediaType) (*provider.Record, error) {
	if !mediaType.Valid() {
		return nil, provider.InvalidRequest(providerName, "TMDB details require a media type of tv or movie")
	}

	cacheKey := string(mediaType) + "/" + id
	if cached, found := p.cache.Get(cacheKey); found {
		if record, ok := cached.(provider.Record); ok {
			return &record, nil
		}
	}

	api, err := p.api(ctx)
	if err != nil {
		return nil, err
	}

	path := "/" + string(mediaType) + "/" + url.PathEscape(id)
	var details detailsResponse
	err = api.get(ctx, path, url.Values{"append_to_response": {"alternative_titles,external_ids"}, "language": {"zh-CN"}}, &details)
	if err != nil {
		if provider.IsUpstreamStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}

	names := p.localizedNames(ctx, api, path, mediaType)

	title := details.Name
	if mediaType == provider.MediaTypeMovie {
		title = details.Title
	}

	var romaji string
	var aliasesCN []string
	alternatives := append(details.AlternativeTitles.Titles, details.AlternativeTitles.Results...)
	for _, alt := range alternatives {
		if alt.Title == "" {
			continue
		}
		switch {
		case alt.Country == "JP" && alt.Type == "Romaji" && romaji == "" && !provider.ContainsCJK(alt.Title):
			romaji = alt.Title
		case (alt.Country == "CN" || alt.Country == "HK" || alt.Country == "TW") && provider.ContainsCJK(alt.Title):
			aliasesCN = append(aliasesCN, alt.Title)
		}
	}
	if tw := names["zh-TW"]; tw != "" && provider.ContainsCJK(tw) {
		aliasesCN = append(aliasesCN, tw)
	}
	if title != "" {
		aliasesCN = append(aliasesCN, title)
	}

	record := provider.Record{
		Provider:   providerName,
		ID:         strconv.Itoa(details.ID),
		SourceID:   strconv.Itoa(details.ID),
		Title:      title,
		ImageURL:   imageURL(p.imageBaseURL(ctx), details.PosterPath),
		Details:    details.Overview,
		ImdbID:     details.ExternalIDs.ImdbID,
		NameEn:     provider.CleanMovieTitle(names["en-US"]),
		NameJp:     provider.CleanMovieTitle(names["ja-JP"]),
		NameRomaji: provider.CleanMovieTitle(romaji),
		AliasesCN:  uniqueCleaned(aliasesCN),
	}
	if details.ExternalIDs.TvdbID != 0 {
		record.TvdbID = strconv.Itoa(details.ExternalIDs.TvdbID)
	}

	p.cache.SetDefault(cacheKey, record)
	return &record, nil
}

var localizedLanguages = []string{"en-US", "ja-JP", "zh-TW"}

// localizedNames fetches the title in each extra language. Failed lookups
// are logged and left out.
func (p *Provider) localizedNames(ctx context.Context, api *apiClient, path string, mediaType provider.MediaType) map[string]string {
	found := make([]string, len(localizedLanguages))

	var g errgroup.Group
	for i, lang := range localizedLanguages {
		g.Go(func() error {
			params := url.Values{"language": {lang}}
			if mediaType == provider.MediaTypeTV {
				var show tmdb.TV
				if err := api.get(ctx, path, params, &show); err != nil {
					p.log.Debugw("localized details lookup failed", "path", path, "language", lang, "error", err)
					return nil
				}
				found[i] = show.Name
				return nil
			}
			var movie tmdb.Movie
			if err := api.get(ctx, path, params, &movie); err != nil {
				p.log.Debugw("localized details lookup failed", "path", path, "language", lang, "error", err)
				return nil
			}
			found[i] = movie.Title
			return nil
		})
	}
	_ = g.Wait()

	names := make(map[string]string, len(localizedLanguages))
	for i, lang := range localizedLanguages {
		names[lang] = found[i]
	}
	return names
}

func uniqueCleaned(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		cleaned := provider.CleanMovieTitle(v)
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
	}
	return out
}

// SearchAliases searches shows and movies, then collects the names of the
// best match.
func (p *Provider) SearchAliases(ctx context.Context, keyword string, user provider.User) (provider.AliasSet, error) {
	api, err := p.api(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{"query": {keyword}, "language": {"zh-CN"}}
	var (
		shows     tmdb.TvSearchResults
		movies    tmdb.MovieSearchResults
		showErr   error
		moviesErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		showErr = api.get(ctx, "/search/tv", params, &shows)
		return nil
	})
	g.Go(func() error {
		moviesErr = api.get(ctx, "/search/movie", params, &movies)
		return nil
	})
	_ = g.Wait()

	if showErr != nil && moviesErr != nil {
		return nil, showErr
	}

	var id string
	var mediaType provider.MediaType
	switch {
	case showErr == nil && len(shows.Results) > 0:
		id, mediaType = strconv.Itoa(shows.Results[0].ID), provider.MediaTypeTV
	case moviesErr == nil && len(movies.Results) > 0:
		id, mediaType = strconv.Itoa(movies.Results[0].ID), provider.MediaTypeMovie
	default:
		return provider.NewAliasSet(), nil
	}

	record, err := p.Details(ctx, id, user, mediaType)
	if err != nil {
		return nil, err
	}
	aliases := provider.NewAliasSet()
	if record == nil {
		return aliases, nil
	}
	aliases.Add(record.Title, record.NameEn, record.NameJp)
	aliases.Add(record.AliasesCN...)
	return aliases.Compact(), nil
}
