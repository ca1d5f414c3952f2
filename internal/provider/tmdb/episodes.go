package tmdb

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// EpisodeGroup is one entry of a show's episode group list
type EpisodeGroup struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	EpisodeCount int    `json:"episode_count"`
	GroupCount   int    `json:"group_count"`
	Type         int    `json:"type"`
}

type groupEpisode struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
	AirDate       string `json:"air_date"`
	Overview      string `json:"overview"`
	Order         int    `json:"order"`
}

type groupDetails struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	EpisodeCount int    `json:"episode_count"`
	GroupCount   int    `json:"group_count"`
	Type         int    `json:"type"`
	Groups       []struct {
		ID       string         `json:"id"`
		Name     string         `json:"name"`
		Order    int            `json:"order"`
		Episodes []groupEpisode `json:"episodes"`
	} `json:"groups"`
}

// GroupEpisode is an episode group entry enriched with its Japanese name
// and still image
type GroupEpisode struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	EpisodeNumber int    `json:"episodeNumber"`
	SeasonNumber  int    `json:"seasonNumber"`
	AirDate       string `json:"airDate,omitempty"`
	Overview      string `json:"overview,omitempty"`
	Order         int    `json:"order"`
	NameJp        string `json:"nameJp,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

// GroupSection is one ordered section of an episode group
type GroupSection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Order    int            `json:"order"`
	Episodes []GroupEpisode `json:"episodes"`
}

// GroupWithEpisodes is the enriched result of get_all_episodes
type GroupWithEpisodes struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	EpisodeCount int            `json:"episodeCount"`
	GroupCount   int            `json:"groupCount"`
	Type         int            `json:"type"`
	Groups       []GroupSection `json:"groups"`
}

func (p *Provider) episodeGroups(ctx context.Context, tvID string) ([]EpisodeGroup, error) {
	api, err := p.api(ctx)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Results []EpisodeGroup `json:"results"`
	}
	if err := api.get(ctx, "/tv/"+url.PathEscape(tvID)+"/episode_groups", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []EpisodeGroup{}
	}
	return resp.Results, nil
}

func (p *Provider) groupDetails(ctx context.Context, api *apiClient, groupID, language string) (*groupDetails, error) {
	var details groupDetails
	if err := api.get(ctx, "/tv/episode_group/"+url.PathEscape(groupID), url.Values{"language": {language}}, &details); err != nil {
		return nil, err
	}
	sort.SliceStable(details.Groups, func(i, j int) bool {
		return details.Groups[i].Order < details.Groups[j].Order
	})
	return &details, nil
}

// allEpisodes returns an episode group with Japanese episode names and
// stills from the regular season listings
func (p *Provider) allEpisodes(ctx context.Context, tvID, groupID string) (*GroupWithEpisodes, error) {
	api, err := p.api(ctx)
	if err != nil {
		return nil, err
	}

	var (
		details *groupDetails
		ja      *groupDetails
		zhErr   error
	)
	var g errgroup.Group
	g.Go(func() error {
		details, zhErr = p.groupDetails(ctx, api, groupID, "zh-CN")
		return nil
	})
	g.Go(func() error {
		var err error
		if ja, err = p.groupDetails(ctx, api, groupID, "ja-JP"); err != nil {
			p.log.Debugw("japanese episode group lookup failed", "group_id", groupID, "error", err)
		}
		return nil
	})
	_ = g.Wait()
	if zhErr != nil {
		return nil, zhErr
	}

	jaNames := make(map[int]string)
	if ja != nil {
		for _, group := range ja.Groups {
			for _, ep := range group.Episodes {
				jaNames[ep.ID] = ep.Name
			}
		}
	}

	stills := p.seasonStills(ctx, api, tvID, details)
	images := p.imageBaseURL(ctx)

	out := &GroupWithEpisodes{
		ID:           details.ID,
		Name:         details.Name,
		Description:  details.Description,
		EpisodeCount: details.EpisodeCount,
		GroupCount:   details.GroupCount,
		Type:         details.Type,
		Groups:       make([]GroupSection, 0, len(details.Groups)),
	}
	for _, group := range details.Groups {
		section := GroupSection{ID: group.ID, Name: group.Name, Order: group.Order, Episodes: make([]GroupEpisode, 0, len(group.Episodes))}
		for _, ep := range group.Episodes {
			section.Episodes = append(section.Episodes, GroupEpisode{
				ID:            ep.ID,
				Name:          ep.Name,
				EpisodeNumber: ep.EpisodeNumber,
				SeasonNumber:  ep.SeasonNumber,
				AirDate:       ep.AirDate,
				Overview:      ep.Overview,
				Order:         ep.Order,
				NameJp:        jaNames[ep.ID],
				ImageURL:      imageURL(images, stills[ep.ID]),
			})
		}
		out.Groups = append(out.Groups, section)
	}
	return out, nil
}

// seasonStills maps episode ids to still paths for every season the group
// touches. Seasons that fail to load are skipped.
func (p *Provider) seasonStills(ctx context.Context, api *apiClient, tvID string, details *groupDetails) map[int]string {
	seasons := make(map[int]bool)
	for _, group := range details.Groups {
		for _, ep := range group.Episodes {
			seasons[ep.SeasonNumber] = true
		}
	}

	var mu sync.Mutex
	stills := make(map[int]string)

	var g errgroup.Group
	for season := range seasons {
		g.Go(func() error {
			var resp struct {
				Episodes []struct {
					ID        int    `json:"id"`
					StillPath string `json:"still_path"`
				} `json:"episodes"`
			}
			path := "/tv/" + url.PathEscape(tvID) + "/season/" + strconv.Itoa(season)
			if err := api.get(ctx, path, nil, &resp); err != nil {
				p.log.Debugw("season lookup failed", "path", path, "error", err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ep := range resp.Episodes {
				if ep.StillPath != "" {
					stills[ep.ID] = ep.StillPath
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return stills
}

// UpdateEpisodeMappings stores the positions of every episode of a group.
// Sections become custom seasons in group order and episodes are numbered
// within their section and across the whole group.
func (p *Provider) UpdateEpisodeMappings(ctx context.Context, tvID int, groupID string, _ provider.User) error {
	p.log.Infow("updating episode group mappings", "tv_id", tvID, "group_id", groupID)

	api, err := p.api(ctx)
	if err != nil {
		return err
	}
	details, err := p.groupDetails(ctx, api, groupID, "zh-CN")
	if err != nil {
		return err
	}

	var mappings []provider.EpisodeMapping
	absolute := 0
	for _, group := range details.Groups {
		episodes := append([]groupEpisode(nil), group.Episodes...)
		sort.SliceStable(episodes, func(i, j int) bool { return episodes[i].Order < episodes[j].Order })
		for i, ep := range episodes {
			absolute++
			mappings = append(mappings, provider.EpisodeMapping{
				TMDBTVID:      tvID,
				GroupID:       groupID,
				EpisodeID:     ep.ID,
				SeasonNumber:  ep.SeasonNumber,
				EpisodeNumber: ep.EpisodeNumber,
				CustomSeason:  group.Order,
				CustomEpisode: i + 1,
				AbsoluteIndex: absolute,
			})
		}
	}

	if err := p.sess.ReplaceEpisodeMappings(ctx, tvID, groupID, mappings); err != nil {
		return err
	}
	p.log.Infow("episode group mappings updated", "tv_id", tvID, "group_id", groupID, "episodes", len(mappings))
	return nil
}
