package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/LVQT-ss/SHOPC-sub000/config"
)

// Geocoder resolves coordinates to a place name through a Nominatim-style
// reverse endpoint. Lookups are best effort: callers swallow errors and
// proceed without a location name.
type Geocoder struct {
	baseURL string
	client  *http.Client
}

func NewGeocoder(cfg config.GeocoderConfig) *Geocoder {
	return &Geocoder{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *Geocoder) Reverse(ctx context.Context, lat, long float64) (string, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", long))
	q.Set("format", "jsonv2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "shopc-backend")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.DisplayName, nil
}

const kmPerDegreeLat = 111.32

// BoundingBox converts a center point and radius in kilometers to a lat/long
// box using a flat-earth approximation: 111.32 km per degree of latitude,
// longitude scaled by cos(lat). Not a great-circle filter; accurate enough
// for city-scale audit queries.
func BoundingBox(lat, long, radiusKm float64) (minLat, maxLat, minLong, maxLong float64) {
	latDelta := radiusKm / kmPerDegreeLat

	longDelta := latDelta
	if cos := math.Cos(lat * math.Pi / 180); cos > 1e-9 {
		longDelta = radiusKm / (kmPerDegreeLat * cos)
	}

	return lat - latDelta, lat + latDelta, long - longDelta, long + longDelta
}
