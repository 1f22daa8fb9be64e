package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"funktaxi/internal/domain"

	"go.uber.org/zap"
)

const osrmBaseURL = "https://router.project-osrm.org"

// OSRMClient computes driving routes via the public OSRM instance
type OSRMClient struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewOSRMClient creates a router with the given request timeout
func NewOSRMClient(timeout time.Duration, logger *zap.Logger) *OSRMClient {
	return &OSRMClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: osrmBaseURL,
		logger:  logger,
	}
}

type osrmResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// Route returns the driving distance and duration between two places.
// Distance is rounded to one decimal kilometer, matching what users
// see in the fare quote.
func (o *OSRMClient) Route(ctx context.Context, from, to domain.Place) (domain.RouteEstimate, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		o.baseURL, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RouteEstimate{}, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.RouteEstimate{}, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.RouteEstimate{}, fmt.Errorf("osrm status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.RouteEstimate{}, fmt.Errorf("osrm decode: %w", err)
	}

	if len(body.Routes) == 0 {
		return domain.RouteEstimate{}, fmt.Errorf("osrm: no route found")
	}

	route := body.Routes[0]
	return domain.RouteEstimate{
		DistanceKm: math.Round(route.Distance/1000*10) / 10,
		Minutes:    int(math.Round(route.Duration / 60)),
	}, nil
}
