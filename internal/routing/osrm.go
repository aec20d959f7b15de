package routing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"

	"github.com/richxcame/route-traffic/pkg/httpclient"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

const osrmName = "osrm"

var osrmProfiles = map[Profile]string{
	ProfileCar:        "driving",
	ProfileBicycle:    "cycling",
	ProfilePedestrian: "walking",
}

// OSRM queries an OSRM HTTP server.
type OSRM struct {
	client *httpclient.Client
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Duration float64 `json:"duration"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// NewOSRM creates an OSRM router
func NewOSRM(baseURL string, timeout time.Duration, retry resilience.RetryConfig) *OSRM {
	return &OSRM{
		client: httpclient.NewClient(baseURL, timeout, httpclient.WithRetry(osrmName, retry)),
	}
}

// Name returns the router name
func (o *OSRM) Name() string {
	return osrmName
}

// Route requests the full-overview route with polyline geometry.
func (o *OSRM) Route(ctx context.Context, from, to orb.Point, profile Profile) (Route, error) {
	mode, ok := osrmProfiles[profile]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnsupportedProfile, profile)
	}

	path := fmt.Sprintf("/route/v1/%s/%s;%s", mode, lonLat(from), lonLat(to))
	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "polyline")

	var resp osrmResponse
	if err := o.client.GetJSON(ctx, path, params, nil, &resp); err != nil {
		if httpclient.StatusCode(err) == 400 {
			return Route{}, fmt.Errorf("osrm: %w: %v", ErrNoRoute, err)
		}
		return Route{}, fmt.Errorf("osrm route request failed: %w", err)
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		return Route{}, fmt.Errorf("osrm: %w: %s %s", ErrNoRoute, resp.Code, resp.Message)
	}

	best := resp.Routes[0]
	geometry, err := decodePolyline(best.Geometry)
	if err != nil {
		return Route{}, fmt.Errorf("osrm: decode geometry: %w", err)
	}

	return Route{
		Geometry:        geometry,
		DurationSeconds: best.Duration,
		DistanceMeters:  best.Distance,
		Source:          osrmName,
	}, nil
}

// decodePolyline turns a precision-5 encoded polyline into [lon, lat] points.
func decodePolyline(encoded string) (orb.LineString, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	line := make(orb.LineString, len(coords))
	for i, c := range coords {
		line[i] = orb.Point{c[1], c[0]}
	}
	return line, nil
}

func lonLat(p orb.Point) string {
	return strconv.FormatFloat(p.Lon(), 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat(), 'f', 6, 64)
}
