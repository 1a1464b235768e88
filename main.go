package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chrisvdg/moviecache/api"
	"github.com/chrisvdg/moviecache/auth"
	"github.com/chrisvdg/moviecache/cache"
	"github.com/chrisvdg/moviecache/config"
	"github.com/chrisvdg/moviecache/movies"
	"github.com/chrisvdg/moviecache/notify"
	"github.com/chrisvdg/moviecache/server"
	"github.com/chrisvdg/moviecache/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const usage = `Usage: moviecache [flags] <command>

Commands:
  serve                      serve the development movies API
  movies [search]            list movies, optionally filtered
  movie <id>                 show a single movie
  login <email> <password>   sign in against the users endpoint
  cache keys|clear|prune     inspect or clean the local cache

Flags:
`

// prefetchLimit bounds the concurrent detail requests of movies --details
const prefetchLimit = 4

func main() {
	fs := pflag.NewFlagSet("moviecache", pflag.ExitOnError)
	refresh := fs.BoolP("refresh", "r", false, "bypass the cache and fetch again")
	details := fs.BoolP("details", "d", false, "prefetch the details of every listed movie")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	c, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if c.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if args[0] == "serve" {
		if err := serve(c); err != nil {
			log.Fatal(err)
		}
		return
	}

	a, err := newApp(c)
	if err != nil {
		log.Fatal(err)
	}
	defer a.close()

	switch args[0] {
	case "movies":
		err = a.listMovies(ctx, strings.Join(args[1:], " "), *refresh, *details)
	case "movie":
		if len(args) != 2 {
			err = errors.New("usage: moviecache movie <id>")
			break
		}
		err = a.showMovie(ctx, args[1], *refresh)
	case "login":
		if len(args) != 3 {
			err = errors.New("usage: moviecache login <email> <password>")
			break
		}
		err = a.login(ctx, args[1], args[2])
	case "cache":
		if len(args) != 2 {
			err = errors.New("usage: moviecache cache keys|clear|prune")
			break
		}
		err = a.manageCache(args[1])
	default:
		err = errors.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		log.Fatal(err)
	}
}

func serve(c config.Config) error {
	s, err := server.New(&server.Config{
		ListenAddr:    c.ListenAddr,
		TLSListenAddr: c.TLSListenAddr,
		TLSOnly:       c.TLSOnly,
		TLS: &server.TLSConfig{
			KeyFile:  c.TLSKey,
			CertFile: c.TLSCert,
		},
		FixturesFile: c.FixturesFile,
		Latency:      c.Latency,
	})
	if err != nil {
		return err
	}

	s.ListenAndServe()
	return nil
}

// app holds the client side of moviecache
type app struct {
	store   storage.Store
	cache   *cache.Cache
	client  *api.Client
	service *movies.Service
}

func newApp(c config.Config) (*app, error) {
	store, err := storage.Open(c.Store, storage.Options{
		ID:            c.StoreID,
		Path:          c.StorePath,
		EncryptionKey: c.EncryptionKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}

	client, err := api.NewClient(c.BaseURL,
		api.WithTimeout(c.Timeout),
		api.WithRetries(c.Retries),
		api.WithRetryDelay(c.RetryDelay),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		store: store,
		cache: cache.New(store,
			cache.WithPrefix(c.CachePrefix),
			cache.WithTTL(c.CacheTTL),
			cache.WithNotifier(notify.Log()),
		),
		client:  client,
		service: movies.NewService(client),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Errorf("failed to close store: %s", err)
	}
}

func (a *app) listMovies(ctx context.Context, search string, refresh, details bool) error {
	l := movies.ListQuery(a.cache, a.service, search)
	if refresh {
		l.Refetch(ctx)
	} else {
		l.Mount(ctx)
	}
	defer l.Unmount()

	s := l.State()
	if s.Error != "" {
		return errors.New(s.Error)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tYEAR\tDIRECTOR\tRATING")
	for _, m := range s.Data {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.1f\n", m.ID, m.Title, m.Year, m.Director, m.Rating)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if details {
		return a.prefetch(ctx, s.Data)
	}
	return nil
}

// prefetch warms the detail cache of every movie in list
func (a *app) prefetch(ctx context.Context, list []movies.Movie) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for _, m := range list {
		id := strconv.Itoa(m.ID)
		g.Go(func() error {
			q := movies.DetailQuery(a.cache, a.service, id)
			q.Mount(gctx)
			if msg := q.State().Error; msg != "" {
				return errors.Errorf("movie %s: %s", id, msg)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "failed to prefetch movie details")
	}
	log.Debugf("prefetched %d movie details", len(list))
	return nil
}

func (a *app) showMovie(ctx context.Context, id string, refresh bool) error {
	q := movies.DetailQuery(a.cache, a.service, id)
	if refresh {
		q.Refetch(ctx)
	} else {
		q.Mount(ctx)
	}
	defer q.Unmount()

	s := q.State()
	if s.Error != "" {
		return errors.New(s.Error)
	}
	m := s.Data
	if m == nil {
		return errors.Errorf("movie %s not found", id)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Title\t%s (%d)\n", m.Title, m.Year)
	fmt.Fprintf(w, "Director\t%s\n", m.Director)
	fmt.Fprintf(w, "Actors\t%s\n", strings.Join(m.Actors, ", "))
	fmt.Fprintf(w, "Genre\t%s\n", strings.Join(m.Genre, ", "))
	fmt.Fprintf(w, "Rating\t%.1f\n", m.Rating)
	fmt.Fprintf(w, "Runtime\t%d min\n", m.Runtime)
	if m.Awards != "" {
		fmt.Fprintf(w, "Awards\t%s\n", m.Awards)
	}
	if m.BoxOffice != "" {
		fmt.Fprintf(w, "Box office\t%s\n", m.BoxOffice)
	}
	fmt.Fprintf(w, "Plot\t%s\n", m.Plot)
	return w.Flush()
}

func (a *app) login(ctx context.Context, email, password string) error {
	s := auth.NewSession(a.client, notify.Log())
	if err := s.Login(ctx, email, password); err != nil {
		return err
	}
	u := s.State().User
	fmt.Printf("signed in as %s (%s)\n", u.Name, u.Email)
	return nil
}

func (a *app) manageCache(cmd string) error {
	switch cmd {
	case "keys":
		for _, k := range a.cache.Keys() {
			fmt.Println(k)
		}
	case "clear":
		a.cache.ClearAll()
	case "prune":
		fmt.Printf("removed %d stale entries\n", a.cache.Prune())
	default:
		return errors.Errorf("unknown cache command %q", cmd)
	}
	return nil
}
