package geo

import (
	"context"
	"testing"

	"funktaxi/internal/domain"

	"go.uber.org/zap"
)

type fakeCache struct {
	places map[string]domain.Place
	saved  map[string]domain.Place
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		places: make(map[string]domain.Place),
		saved:  make(map[string]domain.Place),
	}
}

func (f *fakeCache) LookupGeocode(ctx context.Context, key string) (domain.Place, bool, error) {
	p, ok := f.places[key]
	return p, ok, nil
}

func (f *fakeCache) SaveGeocode(ctx context.Context, key string, place domain.Place) error {
	f.saved[key] = place
	return nil
}

type fakeGeocoder struct {
	places      map[string]domain.Place
	suggestions []domain.Place
	calls       int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (domain.Place, bool) {
	f.calls++
	p, ok := f.places[address]
	return p, ok
}

func (f *fakeGeocoder) Suggest(ctx context.Context, query string) []domain.Place {
	return f.suggestions
}

type fakeRouter struct{}

func (f *fakeRouter) Route(ctx context.Context, from, to domain.Place) (domain.RouteEstimate, error) {
	return domain.RouteEstimate{DistanceKm: 3.4, Minutes: 8}, nil
}

func newResolver(cache *fakeCache, geocoder *fakeGeocoder) *Resolver {
	return NewResolver(cache, geocoder, &fakeRouter{}, zap.NewNop())
}

func TestResolveGazetteerSkipsGeocoder(t *testing.T) {
	geocoder := &fakeGeocoder{}
	r := newResolver(newFakeCache(), geocoder)

	place, ok := r.Resolve(context.Background(), "Ahlbeck")
	if !ok {
		t.Fatal("expected gazetteer hit")
	}
	if place.Name != "Ahlbeck" || place.Lat != 53.9444 {
		t.Errorf("place = %+v", place)
	}
	if geocoder.calls != 0 {
		t.Errorf("geocoder called %d times, want 0", geocoder.calls)
	}
}

func TestResolveGazetteerCaseInsensitive(t *testing.T) {
	r := newResolver(newFakeCache(), &fakeGeocoder{})

	if _, ok := r.Resolve(context.Background(), "  HERINGSDORF "); !ok {
		t.Error("expected gazetteer hit for uppercase input")
	}
}

func TestResolveCacheHit(t *testing.T) {
	cache := newFakeCache()
	cache.places["strandstraße 12"] = domain.Place{Name: "Strandstraße 12", Lat: 53.95, Lon: 14.16}
	geocoder := &fakeGeocoder{}
	r := newResolver(cache, geocoder)

	place, ok := r.Resolve(context.Background(), "Strandstraße 12")
	if !ok || place.Name != "Strandstraße 12" {
		t.Fatalf("place = %+v, ok = %v", place, ok)
	}
	if geocoder.calls != 0 {
		t.Errorf("geocoder called %d times, want 0", geocoder.calls)
	}
}

func TestResolveGeocodesAndCaches(t *testing.T) {
	cache := newFakeCache()
	geocoder := &fakeGeocoder{
		places: map[string]domain.Place{
			"Neue Straße 5": {Name: "Neue Straße 5, Heringsdorf", Lat: 53.96, Lon: 14.15},
		},
	}
	r := newResolver(cache, geocoder)

	place, ok := r.Resolve(context.Background(), "Neue Straße 5")
	if !ok {
		t.Fatal("expected geocoder hit")
	}
	if place.Lat != 53.96 {
		t.Errorf("place = %+v", place)
	}
	if _, saved := cache.saved["neue straße 5"]; !saved {
		t.Errorf("result not cached, saved = %v", cache.saved)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := newResolver(newFakeCache(), &fakeGeocoder{})

	if _, ok := r.Resolve(context.Background(), "Nirgendwo 99"); ok {
		t.Error("expected resolution failure")
	}
}

func TestCacheKeyStripsUnsafeRunes(t *testing.T) {
	got := CacheKey("Str. 5 [Haus #2]")
	want := "str_ 5 _haus _2_"
	if got != want {
		t.Errorf("CacheKey = %q, want %q", got, want)
	}
}

func TestCandidatesMergeAndDedup(t *testing.T) {
	geocoder := &fakeGeocoder{
		suggestions: []domain.Place{
			// Same coords as the gazetteer's Ahlbeck, must be dropped
			{Name: "Ahlbeck, Heringsdorf", Lat: 53.9444, Lon: 14.1933},
			{Name: "Ahlbecker Straße, Berlin", Lat: 52.55, Lon: 13.40},
		},
	}
	r := newResolver(newFakeCache(), geocoder)

	results := r.Candidates(context.Background(), "ahlbeck")
	for _, p := range results {
		if p.Name == "Ahlbeck, Heringsdorf" {
			t.Error("duplicate coordinates not removed")
		}
	}

	found := false
	for _, p := range results {
		if p.Name == "Ahlbecker Straße, Berlin" {
			found = true
		}
	}
	if !found {
		t.Error("distinct suggestion missing from candidates")
	}
}

func TestCandidatesCap(t *testing.T) {
	var many []domain.Place
	for i := 0; i < 10; i++ {
		many = append(many, domain.Place{Name: "Platz", Lat: float64(i), Lon: float64(i)})
	}
	r := newResolver(newFakeCache(), &fakeGeocoder{suggestions: many})

	if got := len(r.Candidates(context.Background(), "platz")); got > MaxCandidates {
		t.Errorf("len = %d, want at most %d", got, MaxCandidates)
	}
}

func TestCandidatesEmptyQuery(t *testing.T) {
	r := newResolver(newFakeCache(), &fakeGeocoder{})
	if got := r.Candidates(context.Background(), "  "); got != nil {
		t.Errorf("blank query = %v, want nil", got)
	}
}
