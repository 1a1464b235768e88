package movies

import (
	"context"
	"net/url"
	"path"
	"sync"

	"github.com/chrisvdg/moviecache/api"
	"github.com/chrisvdg/moviecache/cache"
	"github.com/chrisvdg/moviecache/query"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	listKey   = "movies"
	detailKey = "movieDetail"
)

// NewService returns a movies service using client
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Service reads movies from the movies API
type Service struct {
	client *api.Client
}

// List returns the movies matching search, every movie when search is empty
func (s *Service) List(ctx context.Context, search string) ([]Movie, error) {
	movies, err := api.GetJSON[[]Movie](ctx, s.client, "/movies", url.Values{"search": {search}})
	if err != nil {
		log.Errorf("Error fetching movies: %s", err)
		return nil, errors.Wrap(err, "failed to fetch movies")
	}
	return movies, nil
}

// Detail returns the movie with id
func (s *Service) Detail(ctx context.Context, id string) (*Movie, error) {
	if id == "" {
		return nil, errors.New("movie id is empty")
	}
	movie, err := api.GetJSON[*Movie](ctx, s.client, path.Join("/movies", url.PathEscape(id)), nil)
	if err != nil {
		log.Errorf("Error fetching movie detail: %s", err)
		return nil, errors.Wrapf(err, "failed to fetch movie %s", id)
	}
	return movie, nil
}

// Listing is a movie list query whose search term can change
type Listing struct {
	*query.Query[[]Movie]

	m    sync.Mutex
	term string
}

// ListQuery returns the query listing the movies matching search
func ListQuery(c *cache.Cache, s *Service, search string, opts ...query.Option[[]Movie]) *Listing {
	l := &Listing{term: search}
	l.Query = query.New(c, []any{listKey, search}, func(ctx context.Context) ([]Movie, error) {
		return s.List(ctx, l.Term())
	}, opts...)
	return l
}

// Term returns the current search term
func (l *Listing) Term() string {
	l.m.Lock()
	defer l.m.Unlock()
	return l.term
}

// Search switches the listing to term, fetching when the result is not cached
func (l *Listing) Search(ctx context.Context, term string) {
	l.m.Lock()
	l.term = term
	l.m.Unlock()
	l.SetKey(ctx, listKey, term)
}

// DetailQuery returns the query for the movie with id
func DetailQuery(c *cache.Cache, s *Service, id string, opts ...query.Option[*Movie]) *query.Query[*Movie] {
	return query.New(c, []any{detailKey, id}, func(ctx context.Context) (*Movie, error) {
		return s.Detail(ctx, id)
	}, opts...)
}
