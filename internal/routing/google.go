package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"googlemaps.github.io/maps"
)

const googleName = "google"

var googleModes = map[Profile]maps.Mode{
	ProfileCar:        maps.TravelModeDriving,
	ProfileBicycle:    maps.TravelModeBicycling,
	ProfilePedestrian: maps.TravelModeWalking,
}

// GoogleDirections uses the Google Maps Directions API.
type GoogleDirections struct {
	client *maps.Client
}

// NewGoogleDirections creates a Directions router. Extra options (base URL,
// HTTP client) are passed through to the maps client.
func NewGoogleDirections(apiKey string, opts ...maps.ClientOption) (*GoogleDirections, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("maps.NewClient: %w", err)
	}
	return &GoogleDirections{client: client}, nil
}

// Name returns the router name
func (g *GoogleDirections) Name() string {
	return googleName
}

// Route returns the first Directions route with its overview geometry and
// the summed leg duration and distance.
func (g *GoogleDirections) Route(ctx context.Context, from, to orb.Point, profile Profile) (Route, error) {
	mode, ok := googleModes[profile]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnsupportedProfile, profile)
	}

	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        mode,
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") || strings.Contains(err.Error(), "NOT_FOUND") {
			return Route{}, fmt.Errorf("google: %w: %v", ErrNoRoute, err)
		}
		return Route{}, fmt.Errorf("google directions request failed: %w", err)
	}
	if len(routes) == 0 {
		return Route{}, fmt.Errorf("google: %w", ErrNoRoute)
	}

	best := routes[0]
	points, err := best.OverviewPolyline.Decode()
	if err != nil {
		return Route{}, fmt.Errorf("google: decode overview polyline: %w", err)
	}
	geometry := make(orb.LineString, len(points))
	for i, p := range points {
		geometry[i] = orb.Point{p.Lng, p.Lat}
	}

	var duration, distance float64
	for _, leg := range best.Legs {
		duration += leg.Duration.Seconds()
		distance += float64(leg.Distance.Meters)
	}

	return Route{
		Geometry:        geometry,
		DurationSeconds: duration,
		DistanceMeters:  distance,
		Source:          googleName,
	}, nil
}

func latLng(p orb.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat(), p.Lon())
}
