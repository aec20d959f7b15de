package provider

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/paulmach/orb"

	"github.com/richxcame/route-traffic/pkg/httpclient"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

const (
	hereFlowPath     = "/v7/flow"
	hereProbeRadiusM = 50
	msToKmh          = 3.6
)

// HERE reads the HERE Traffic API v7 flow endpoint.
type HERE struct {
	apiKey string
	client *httpclient.Client
}

type hereFlowResponse struct {
	Results []struct {
		CurrentFlow *struct {
			Speed          *float64 `json:"speed"`
			FreeFlow       *float64 `json:"freeFlow"`
			JamFactor      float64  `json:"jamFactor"`
			Confidence     *float64 `json:"confidence"`
			Traversability string   `json:"traversability"`
		} `json:"currentFlow"`
	} `json:"results"`
}

// NewHERE creates a HERE traffic client
func NewHERE(baseURL, apiKey string, timeout time.Duration, retry resilience.RetryConfig) *HERE {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HERE{
		apiKey: apiKey,
		client: httpclient.NewClient(baseURL, timeout, httpclient.WithRetry(NameHERE, flowRetry(retry))),
	}
}

// Name returns the provider name
func (h *HERE) Name() string {
	return NameHERE
}

// FlowAt returns the first flow item within a small circle around point.
// HERE reports speeds in m/s; they are converted to km/h.
func (h *HERE) FlowAt(ctx context.Context, point orb.Point) (Flow, error) {
	if h.apiKey == "" {
		return Flow{}, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("apiKey", h.apiKey)
	params.Set("in", fmt.Sprintf("circle:%s;r=%d", formatLatLon(point), hereProbeRadiusM))
	params.Set("locationReferencing", "none")

	var resp hereFlowResponse
	if err := h.client.GetJSON(ctx, hereFlowPath, params, nil, &resp); err != nil {
		return Flow{}, classifyError(NameHERE, err)
	}
	if len(resp.Results) == 0 || resp.Results[0].CurrentFlow == nil {
		return Flow{}, fmt.Errorf("%s: no flow results near %s: %w", NameHERE, formatLatLon(point), ErrMalformedResponse)
	}

	cf := resp.Results[0].CurrentFlow
	flow, err := normalize(NameHERE, toKmh(cf.Speed), toKmh(cf.FreeFlow), cf.Confidence)
	if err != nil {
		return Flow{}, err
	}
	flow.RoadClosure = cf.Traversability == "closed"
	return flow, nil
}

func toKmh(ms *float64) *float64 {
	if ms == nil {
		return nil
	}
	v := math.Round(*ms*msToKmh*100) / 100
	return &v
}
