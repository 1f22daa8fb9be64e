package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"funktaxi/internal/domain"

	"go.uber.org/zap"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// viewbox around the island for bounded searches
const islandViewbox = "13.5,54.3,14.7,53.5"

// wider viewbox covering the coast, used for suggestions
const coastViewbox = "11.0,54.7,14.5,53.3"

type nominatimItem struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Road         string `json:"road"`
		HouseNumber  string `json:"house_number"`
		Town         string `json:"town"`
		City         string `json:"city"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
	} `json:"address"`
}

// NominatimClient geocodes free-text addresses via the public
// Nominatim instance.
type NominatimClient struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewNominatimClient creates a geocoder with the given request timeout
func NewNominatimClient(timeout time.Duration, logger *zap.Logger) *NominatimClient {
	return &NominatimClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: nominatimBaseURL,
		logger:  logger,
	}
}

func (n *NominatimClient) search(ctx context.Context, query string, extra url.Values) ([]nominatimItem, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "5")
	params.Set("addressdetails", "1")
	for k, vs := range extra {
		for _, v := range vs {
			params.Set(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "funktaxi-bot/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var items []nominatimItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("nominatim decode: %w", err)
	}
	return items, nil
}

// Geocode resolves an address through a fallback chain biased towards
// the service area: island first, then the Polish side, then a bounded
// box, then Germany at large.
func (n *NominatimClient) Geocode(ctx context.Context, address string) (domain.Place, bool) {
	attempts := []struct {
		query string
		extra url.Values
	}{
		{address + ", Usedom, Deutschland", nil},
		{address + ", Świnoujście, Polska", nil},
		{address, url.Values{"viewbox": {islandViewbox}, "bounded": {"1"}}},
		{address + ", Deutschland", nil},
	}

	for _, a := range attempts {
		items, err := n.search(ctx, a.query, a.extra)
		if err != nil {
			n.logger.Warn("Geocoding request failed",
				zap.String("query", a.query),
				zap.Error(err))
			continue
		}
		for _, item := range items {
			lat, err1 := strconv.ParseFloat(item.Lat, 64)
			lon, err2 := strconv.ParseFloat(item.Lon, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			return domain.Place{Name: item.DisplayName, Lat: lat, Lon: lon}, true
		}
	}
	return domain.Place{}, false
}

// Suggest runs two searches, one biased to the island and one bounded
// to the coast, and merges them into display-ready candidates.
func (n *NominatimClient) Suggest(ctx context.Context, query string) []domain.Place {
	var out []domain.Place

	islandItems, err := n.search(ctx, query+", Usedom", nil)
	if err != nil {
		n.logger.Warn("Suggestion search failed", zap.String("query", query), zap.Error(err))
	}
	coastItems, err := n.search(ctx, query, url.Values{
		"countrycodes": {"de,pl"},
		"viewbox":      {coastViewbox},
		"bounded":      {"1"},
	})
	if err != nil {
		n.logger.Warn("Suggestion search failed", zap.String("query", query), zap.Error(err))
	}

	for _, item := range append(islandItems, coastItems...) {
		lat, err1 := strconv.ParseFloat(item.Lat, 64)
		lon, err2 := strconv.ParseFloat(item.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, domain.Place{Name: candidateName(item), Lat: lat, Lon: lon})
	}
	return out
}

func candidateName(item nominatimItem) string {
	name := item.Name
	if name == "" && item.Address.Road != "" {
		name = item.Address.Road
		if item.Address.HouseNumber != "" {
			name += " " + item.Address.HouseNumber
		}
	}
	if name == "" {
		name = strings.SplitN(item.DisplayName, ",", 2)[0]
	}

	town := item.Address.Town
	if town == "" {
		town = item.Address.City
	}
	if town == "" {
		town = item.Address.Village
	}
	if town == "" {
		town = item.Address.Municipality
	}
	if town != "" {
		name += ", " + town
	}
	return name
}
