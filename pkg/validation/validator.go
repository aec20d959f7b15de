package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	routeProfiles    = []string{"car", "bicycle", "pedestrian"}
	trafficProviders = []string{"tomtom", "here"}
)

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("latitude", validateLatitude)
	_ = Validate.RegisterValidation("longitude", validateLongitude)
	_ = Validate.RegisterValidation("route_profile", validateRouteProfile)
	_ = Validate.RegisterValidation("traffic_provider", validateTrafficProvider)
	_ = Validate.RegisterValidation("hour_ranges", validateHourRanges)
	_ = Validate.RegisterValidation("lonlat", validateLonLat)
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// validateLatitude checks if latitude is within valid range (-90 to 90)
func validateLatitude(fl validator.FieldLevel) bool {
	latitude := fl.Field().Float()
	return latitude >= -90.0 && latitude <= 90.0
}

// validateLongitude checks if longitude is within valid range (-180 to 180)
func validateLongitude(fl validator.FieldLevel) bool {
	longitude := fl.Field().Float()
	return longitude >= -180.0 && longitude <= 180.0
}

// validateLonLat checks a [lon, lat] pair held in a slice or array
func validateLonLat(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Len() != 2 {
		return false
	}
	return ValidateCoordinates(field.Index(1).Float(), field.Index(0).Float()) == nil
}

func validateRouteProfile(fl validator.FieldLevel) bool {
	return contains(routeProfiles, fl.Field().String())
}

func validateTrafficProvider(fl validator.FieldLevel) bool {
	for _, name := range strings.Split(fl.Field().String(), ",") {
		if !contains(trafficProviders, name) {
			return false
		}
	}
	return true
}

func validateHourRanges(fl validator.FieldLevel) bool {
	_, err := ParseHourRanges(fl.Field().String())
	return err == nil
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, s := range slice {
		if strings.ToLower(strings.TrimSpace(s)) == item {
			return true
		}
	}
	return false
}

// ValidateCoordinates validates latitude and longitude
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90.0 || latitude > 90.0 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", latitude)
	}
	if longitude < -180.0 || longitude > 180.0 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", longitude)
	}
	return nil
}

// ParseLatLon parses a "lat,lon" query value and checks its range
func ParseLatLon(value string) (lat, lon float64, err error) {
	parts := strings.Split(strings.TrimSpace(value), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("point must be formatted as lat,lon, got: %q", value)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	if err := ValidateCoordinates(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// HourRange is an inclusive range of hours of the day.
type HourRange struct {
	Start int
	End   int
}

// Contains reports whether hour falls inside the range.
func (r HourRange) Contains(hour int) bool {
	return hour >= r.Start && hour <= r.End
}

// ParseHourRanges parses a list such as "7-9,17-19". An empty string yields no ranges.
func ParseHourRanges(value string) ([]HourRange, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var ranges []HourRange
	for _, part := range strings.Split(value, ",") {
		bounds := strings.Split(strings.TrimSpace(part), "-")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("hour range must be formatted as start-end, got: %q", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start hour %q: %w", bounds[0], err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end hour %q: %w", bounds[1], err)
		}
		if start < 0 || end > 23 || start > end {
			return nil, fmt.Errorf("hour range %d-%d out of bounds", start, end)
		}
		ranges = append(ranges, HourRange{Start: start, End: end})
	}
	return ranges, nil
}
