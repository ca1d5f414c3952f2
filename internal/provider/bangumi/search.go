package bangumi

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// subjectTypeAnime is the Bangumi subject type for animation
const subjectTypeAnime = 2

const detailsConcurrency = 5

type searchRequest struct {
	Keyword string       `json:"keyword"`
	Filter  searchFilter `json:"filter"`
}

type searchFilter struct {
	Type []int `json:"type"`
}

type searchResponse struct {
	Data []subject `json:"data"`
}

func (p *Provider) searchSubjects(ctx context.Context, keyword, token string) ([]subject, error) {
	body := searchRequest{Keyword: keyword, Filter: searchFilter{Type: []int{subjectTypeAnime}}}
	var resp searchResponse
	if err := p.call(ctx, http.MethodPost, p.apiBase+"/v0/search/subjects", body, token, &resp); err != nil {
		if provider.IsUpstreamStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Data, nil
}

// Search finds anime subjects and loads the full record of each hit
func (p *Provider) Search(ctx context.Context, keyword string, user provider.User, _ provider.MediaType) ([]provider.Record, error) {
	token := p.token(ctx, user)
	subjects, err := p.searchSubjects(ctx, keyword, token)
	if err != nil {
		return nil, err
	}

	found := make([]*provider.Record, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailsConcurrency)
	for i, s := range subjects {
		g.Go(func() error {
			record, err := p.details(gctx, strconv.Itoa(s.ID), token)
			if err != nil {
				return err
			}
			found[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]provider.Record, 0, len(found))
	for _, record := range found {
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, nil
}

// Details fetches one subject. A missing subject yields nil.
func (p *Provider) Details(ctx context.Context, id string, user provider.User, _ provider.MediaType) (*provider.Record, error) {
	return p.details(ctx, id, p.token(ctx, user))
}

func (p *Provider) details(ctx context.Context, id, token string) (*provider.Record, error) {
	var s subject
	if err := p.call(ctx, http.MethodGet, p.subjectURL(id), nil, token, &s); err != nil {
		if provider.IsUpstreamStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.record(), nil
}

// SearchAliases collects the names of the best matching subject. Failures
// are logged and yield an empty set.
func (p *Provider) SearchAliases(ctx context.Context, keyword string, user provider.User) (provider.AliasSet, error) {
	aliases := provider.NewAliasSet()
	token := p.token(ctx, user)

	subjects, err := p.searchSubjects(ctx, keyword, token)
	if err != nil {
		p.log.Warnw("bangumi alias search failed", "keyword", keyword, "error", err)
		return aliases, nil
	}
	if len(subjects) == 0 {
		return aliases, nil
	}

	var best subject
	if err := p.call(ctx, http.MethodGet, p.subjectURL(strconv.Itoa(subjects[0].ID)), nil, token, &best); err != nil {
		p.log.Warnw("bangumi alias details failed", "subject_id", subjects[0].ID, "error", err)
		return aliases, nil
	}

	aliases.Add(best.Name, best.NameCN)
	for _, item := range best.Infobox {
		if item.Key == "别名" {
			aliases.Add(item.rawValues()...)
		}
	}
	aliases = aliases.Compact()
	p.log.Infow("bangumi alias search succeeded", "keyword", keyword, "aliases", aliases.Sorted())
	return aliases, nil
}
