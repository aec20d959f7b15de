package traffic

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"github.com/richxcame/route-traffic/internal/routing"
	"github.com/richxcame/route-traffic/pkg/common"
	"github.com/richxcame/route-traffic/pkg/middleware"
)

const (
	statusProbeTimeout = 5 * time.Second
	formatGeoJSON      = "geojson"
)

// Probe points used by the status endpoints.
var (
	istanbulCenter = orb.Point{28.9784, 41.0082}
	kadikoy        = orb.Point{29.0320, 40.9923}
	uskudar        = orb.Point{29.0158, 41.0265}
)

// ProviderProbe is a raw provider reader used for status checks.
type ProviderProbe interface {
	FlowReader
	Name() string
}

// Handler handles HTTP requests for traffic annotation
type Handler struct {
	service  *Service
	router   routing.Router
	provider ProviderProbe
}

// NewHandler creates a new traffic handler. router and provider may be nil,
// which disables the endpoints that need them.
func NewHandler(service *Service, router routing.Router, provider ProviderProbe) *Handler {
	return &Handler{service: service, router: router, provider: provider}
}

type routeRequest struct {
	Points          [][]float64 `json:"points" validate:"required,min=2,dive,lonlat"`
	DurationSeconds float64     `json:"durationSeconds" validate:"gte=0"`
	DistanceMeters  float64     `json:"distanceMeters" validate:"gte=0"`
}

type annotateRequest struct {
	Start   []float64 `json:"start" validate:"required,lonlat"`
	End     []float64 `json:"end" validate:"required,lonlat"`
	Profile string    `json:"profile" validate:"omitempty,route_profile"`
}

// GetFlow handles a single-point provider reading. Provider failures are
// returned as a fallback sample rather than an error.
func (h *Handler) GetFlow(c *gin.Context) {
	lat, lon, ok := common.ParseLatLonQuery(c, "point")
	if !ok {
		return
	}
	sample := h.service.FlowAt(c.Request.Context(), orb.Point{lon, lat})
	common.SuccessResponse(c, sample)
}

// AnnotateRoute annotates a precomputed route.
func (h *Handler) AnnotateRoute(c *gin.Context) {
	var req routeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	points := make(orb.LineString, len(req.Points))
	for i, p := range req.Points {
		points[i] = orb.Point{p[0], p[1]}
	}
	h.respond(c, Route{Points: points, DurationSeconds: req.DurationSeconds, DistanceMeters: req.DistanceMeters})
}

// RouteAndAnnotate computes a route with the routing service and annotates it.
func (h *Handler) RouteAndAnnotate(c *gin.Context) {
	if h.router == nil {
		common.AppErrorResponse(c, common.NewServiceUnavailableError("routing service not configured"))
		return
	}

	var req annotateRequest
	if !common.BindJSON(c, &req) {
		return
	}
	profile, err := routing.ParseProfile(req.Profile)
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
		return
	}

	computed, err := h.router.Route(c.Request.Context(),
		orb.Point{req.Start[0], req.Start[1]}, orb.Point{req.End[0], req.End[1]}, profile)
	if err != nil {
		switch {
		case errors.Is(err, routing.ErrNoRoute):
			common.AppErrorResponse(c, common.NewNotFoundError("no route between the given points", err))
		case errors.Is(err, routing.ErrUnsupportedProfile):
			common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
		default:
			common.AppErrorResponse(c, common.NewUpstreamError("routing service failed", err))
		}
		return
	}

	h.respond(c, Route{
		Points:          computed.Geometry,
		DurationSeconds: computed.DurationSeconds,
		DistanceMeters:  computed.DistanceMeters,
	})
}

func (h *Handler) respond(c *gin.Context, route Route) {
	result, err := h.service.Annotate(c.Request.Context(), route)
	if err != nil {
		if errors.Is(err, ErrInvalidRoute) {
			common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
			return
		}
		common.HandleServiceError(c, err, "failed to annotate route")
		return
	}

	if c.Query("format") == formatGeoJSON {
		c.JSON(http.StatusOK, RenderGeoJSON(route, result))
		return
	}

	AttachPolylines(route, result)
	common.SuccessResponseWithMeta(c, result, &common.Meta{
		CorrelationID: middleware.GetCorrelationID(c),
		Cache:         h.service.Stats(),
	})
}

// GetStats returns the cache snapshot.
func (h *Handler) GetStats(c *gin.Context) {
	common.SuccessResponse(c, h.service.Stats())
}

// ClearCache empties the segment cache and resets its counters.
func (h *Handler) ClearCache(c *gin.Context) {
	res, err := h.service.Clear(c.Request.Context())
	if err != nil {
		common.HandleServiceError(c, err, "failed to clear shared flow cache")
		return
	}
	common.SuccessResponse(c, res)
}

// ProviderStatus probes the traffic provider at a fixed point.
func (h *Handler) ProviderStatus(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statusProbeTimeout)
	defer cancel()

	start := time.Now()
	flow, err := h.provider.FlowAt(ctx, istanbulCenter)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "error",
			"provider":  h.provider.Name(),
			"reason":    FallbackReason(ctx, err),
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "connected",
		"provider":   h.provider.Name(),
		"answeredBy": flow.Provider,
		"latency_ms": time.Since(start).Milliseconds(),
		"timestamp":  time.Now().UTC(),
	})
}

// RoutingStatus probes the routing service with a short fixed route.
func (h *Handler) RoutingStatus(c *gin.Context) {
	if h.router == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statusProbeTimeout)
	defer cancel()

	start := time.Now()
	if _, err := h.router.Route(ctx, kadikoy, uskudar, routing.ProfileCar); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "disconnected",
			"router":    h.router.Name(),
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "connected",
		"router":     h.router.Name(),
		"latency_ms": time.Since(start).Milliseconds(),
		"timestamp":  time.Now().UTC(),
	})
}

// RegisterRoutes registers traffic routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		t := api.Group("/traffic")
		t.GET("/flow", h.GetFlow)
		t.POST("/route", h.AnnotateRoute)
		t.POST("/annotate", h.RouteAndAnnotate)
		t.GET("/stats", h.GetStats)
		t.DELETE("/cache", h.ClearCache)

		status := api.Group("/status")
		status.GET("/provider", h.ProviderStatus)
		status.GET("/routing", h.RoutingStatus)
	}
}
