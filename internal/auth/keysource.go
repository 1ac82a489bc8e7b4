package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// errNoSuchKey is returned by a KeySource when the key set has no key with
// the requested kid.
var errNoSuchKey = errors.New("no key with matching kid")

// KeySource resolves a signing key by its kid.
type KeySource interface {
	Key(ctx context.Context, kid string) (JSONWebKey, error)
}

var (
	_ KeySource = (*FetchingSource)(nil)
	_ KeySource = (*CachingSource)(nil)
)

// FetchingSource downloads the key set on every lookup.
type FetchingSource struct {
	fetcher KeySetFetcher
}

// NewFetchingSource returns a KeySource without any caching.
func NewFetchingSource(fetcher KeySetFetcher) *FetchingSource {
	return &FetchingSource{fetcher: fetcher}
}

// Key implements KeySource.
func (s *FetchingSource) Key(ctx context.Context, kid string) (JSONWebKey, error) {
	set, err := s.fetcher.FetchKeySet(ctx)
	if err != nil {
		return JSONWebKey{}, err
	}
	k, ok := set.Find(kid)
	if !ok {
		return JSONWebKey{}, errNoSuchKey
	}
	return k, nil
}

type cacheEntry struct {
	key         JSONWebKey
	lastUpdated time.Time
}

// CachingSource keeps fetched keys in an LRU keyed by kid. Entries older than
// the TTL are dropped on access. Concurrent misses share one fetch.
type CachingSource struct {
	fetcher KeySetFetcher
	cache   *lru.Cache
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
}

// NewCachingSource creates a CachingSource holding at most size keys.
func NewCachingSource(fetcher KeySetFetcher, size int, ttl time.Duration) (*CachingSource, error) {
	if size <= 0 {
		size = 16
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "create key cache")
	}
	return &CachingSource{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// Key implements KeySource.
func (s *CachingSource) Key(ctx context.Context, kid string) (JSONWebKey, error) {
	if k, ok := s.lookup(kid); ok {
		return k, nil
	}

	// Slow path: refresh from the identity provider. The fetch is shared by
	// every waiter, so it must outlive the caller that started it. The fetcher's
	// client timeout bounds it.
	shared := context.WithoutCancel(ctx)
	_, err, _ := s.group.Do("keys", func() (any, error) {
		set, err := s.fetcher.FetchKeySet(shared)
		if err != nil {
			return nil, err
		}
		now := s.now()
		seen := make(map[string]struct{}, len(set.Keys))
		for _, k := range set.Keys {
			// First match wins, same as KeySet.Find.
			if _, dup := seen[k.Kid]; dup {
				continue
			}
			seen[k.Kid] = struct{}{}
			s.cache.Add(k.Kid, &cacheEntry{key: k, lastUpdated: now})
		}
		return nil, nil
	})
	if err != nil {
		return JSONWebKey{}, err
	}

	if k, ok := s.lookup(kid); ok {
		return k, nil
	}
	return JSONWebKey{}, errNoSuchKey
}

func (s *CachingSource) lookup(kid string) (JSONWebKey, bool) {
	v, ok := s.cache.Get(kid)
	if !ok {
		return JSONWebKey{}, false
	}
	e := v.(*cacheEntry)
	if s.now().Sub(e.lastUpdated) > s.ttl {
		s.cache.Remove(kid)
		return JSONWebKey{}, false
	}
	return e.key, true
}

// Purge drops every cached key.
func (s *CachingSource) Purge() {
	s.cache.Purge()
}
