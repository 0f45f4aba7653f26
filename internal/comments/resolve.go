package comments

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/learnup/learnup/internal/model"
)

// AuthorFetcher loads one author profile.
type AuthorFetcher interface {
	GetAuthor(ctx context.Context, id string) (model.Author, error)
}

// AuthorCache receives resolved profiles.
type AuthorCache interface {
	CacheAuthor(a model.Author)
	Author(id string) (model.Author, bool)
}

// Resolution reports what a Resolve call did.
type Resolution struct {
	Requested int
	Resolved  int
	Failed    map[string]error
}

type ResolverOption func(*Resolver)

// WithConcurrency caps the number of author fetches in flight. Zero or less
// means no cap.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		r.concurrency = n
	}
}

// WithSkipCached makes Resolve skip ids that are already cached.
func WithSkipCached(skip bool) ResolverOption {
	return func(r *Resolver) {
		r.skipCached = skip
	}
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// Resolver fetches the profiles of the authors referenced by a batch of
// comments, one request per distinct author.
type Resolver struct {
	fetcher     AuthorFetcher
	cache       AuthorCache
	concurrency int
	skipCached  bool
	log         *slog.Logger
	group       singleflight.Group
}

func NewResolver(fetcher AuthorFetcher, cache AuthorCache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		cache:   cache,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AuthorIDs returns the distinct author ids of comments that do not embed a
// profile, in first-seen order.
func AuthorIDs(comments []model.Comment) []string {
	seen := make(map[string]struct{}, len(comments))
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		if c.Author.Embedded() || c.Author.ID == "" {
			continue
		}
		if _, ok := seen[c.Author.ID]; ok {
			continue
		}
		seen[c.Author.ID] = struct{}{}
		ids = append(ids, c.Author.ID)
	}
	return ids
}

// Resolve fetches every distinct author concurrently and caches each success.
// It returns once all fetches have settled. A failed fetch leaves that author
// out of the cache and does not affect the others.
func (r *Resolver) Resolve(ctx context.Context, comments []model.Comment) Resolution {
	ids := AuthorIDs(comments)
	if r.skipCached {
		pending := ids[:0]
		for _, id := range ids {
			if _, ok := r.cache.Author(id); !ok {
				pending = append(pending, id)
			}
		}
		ids = pending
	}

	res := Resolution{Requested: len(ids), Failed: map[string]error{}}
	if len(ids) == 0 {
		return res
	}

	var mu sync.Mutex
	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, id := range ids {
		id := id
		g.Go(func() error {
			author, err := r.fetch(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.WarnContext(ctx, "author lookup failed", "author_id", id, "error", err)
				res.Failed[id] = err
				return nil
			}
			r.cache.CacheAuthor(author)
			res.Resolved++
			return nil
		})
	}
	_ = g.Wait()

	r.log.DebugContext(ctx, "authors resolved", "requested", res.Requested, "resolved", res.Resolved, "failed", len(res.Failed))
	return res
}

// fetch shares one lookup per id between concurrent callers. The shared call
// outlives any single caller's cancellation; each caller still stops waiting
// when its own ctx is done.
func (r *Resolver) fetch(ctx context.Context, id string) (model.Author, error) {
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(id, func() (any, error) {
		return r.fetcher.GetAuthor(shared, id)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return model.Author{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return model.Author{}, res.Err
	}
	author := res.Val.(model.Author)
	if author.ID == "" {
		author.ID = id
	}
	return author, nil
}
