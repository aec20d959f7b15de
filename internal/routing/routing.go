package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// Profile is the travel mode of a route request.
type Profile string

const (
	ProfileCar        Profile = "car"
	ProfileBicycle    Profile = "bicycle"
	ProfilePedestrian Profile = "pedestrian"
)

var (
	// ErrNoRoute is returned when the service finds no route between the points.
	ErrNoRoute = errors.New("no route found")
	// ErrUnsupportedProfile is returned for an unknown travel mode.
	ErrUnsupportedProfile = errors.New("unsupported routing profile")
)

// ParseProfile validates a profile name. Empty means car.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case "", ProfileCar:
		return ProfileCar, nil
	case ProfileBicycle, ProfilePedestrian:
		return Profile(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProfile, s)
}

// Route is the geometry and baseline timing returned by a routing service.
type Route struct {
	Geometry        orb.LineString `json:"geometry"`
	DurationSeconds float64        `json:"durationSeconds"`
	DistanceMeters  float64        `json:"distanceMeters"`
	Source          string         `json:"source"`
}

// Router computes a route between two [lon, lat] points.
type Router interface {
	Name() string
	Route(ctx context.Context, from, to orb.Point, profile Profile) (Route, error)
}
