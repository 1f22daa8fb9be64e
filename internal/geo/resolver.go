// Package geo resolves free-text addresses into coordinates and
// computes driving routes. Resolution order: curated gazetteer,
// persistent cache, then the geocoder's fallback chain.
package geo

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"funktaxi/internal/domain"

	"go.uber.org/zap"
)

// MaxCandidates caps disambiguation suggestions shown to the user
const MaxCandidates = 5

// Cache persists geocode results across restarts. Implemented by the
// redis store.
type Cache interface {
	LookupGeocode(ctx context.Context, key string) (domain.Place, bool, error)
	SaveGeocode(ctx context.Context, key string, place domain.Place) error
}

// Geocoder turns an address into a place, and suggests candidates for
// ambiguous input.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Place, bool)
	Suggest(ctx context.Context, query string) []domain.Place
}

// Router computes driving routes between two places
type Router interface {
	Route(ctx context.Context, from, to domain.Place) (domain.RouteEstimate, error)
}

// Resolver combines gazetteer, cache, geocoder and router
type Resolver struct {
	cache    Cache
	geocoder Geocoder
	router   Router
	logger   *zap.Logger
}

// NewResolver wires a resolver from its parts
func NewResolver(cache Cache, geocoder Geocoder, router Router, logger *zap.Logger) *Resolver {
	return &Resolver{
		cache:    cache,
		geocoder: geocoder,
		router:   router,
		logger:   logger,
	}
}

var cacheKeyUnsafe = regexp.MustCompile(`[.#$/\[\]]`)

// CacheKey normalizes an address for cache storage
func CacheKey(address string) string {
	return cacheKeyUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(address)), "_")
}

// Resolve turns an address into a place. Gazetteer hits and cache hits
// skip the geocoder entirely; geocoder results are written back to the
// cache.
func (r *Resolver) Resolve(ctx context.Context, address string) (domain.Place, bool) {
	if place, ok := KnownPlace(address); ok {
		return place, true
	}

	key := CacheKey(address)
	if place, ok, err := r.cache.LookupGeocode(ctx, key); err != nil {
		r.logger.Warn("Geocode cache lookup failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return place, true
	}

	place, ok := r.geocoder.Geocode(ctx, address)
	if !ok {
		return domain.Place{}, false
	}

	if err := r.cache.SaveGeocode(ctx, key, place); err != nil {
		r.logger.Warn("Geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
	return place, true
}

// Candidates merges gazetteer matches with geocoder suggestions,
// deduplicates by coordinates, and caps the result for keyboards.
func (r *Resolver) Candidates(ctx context.Context, query string) []domain.Place {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	results := GazetteerMatches(query)
	seen := make(map[string]bool, len(results))
	for _, p := range results {
		seen[coordKey(p)] = true
	}

	for _, p := range r.geocoder.Suggest(ctx, query) {
		key := coordKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, p)
	}

	if len(results) > MaxCandidates {
		results = results[:MaxCandidates]
	}
	return results
}

// Route proxies to the router
func (r *Resolver) Route(ctx context.Context, from, to domain.Place) (domain.RouteEstimate, error) {
	return r.router.Route(ctx, from, to)
}

func coordKey(p domain.Place) string {
	return fmt.Sprintf("%.3f_%.3f", p.Lat, p.Lon)
}
