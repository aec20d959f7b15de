package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/richxcame/route-traffic/pkg/httpclient"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

const (
	tomtomFlowPath = "/traffic/services/4/flowSegmentData/absolute/10/json"
	defaultTimeout = 10 * time.Second
)

// TomTom reads the TomTom Flow Segment Data API.
type TomTom struct {
	apiKey string
	client *httpclient.Client
}

type tomtomFlowResponse struct {
	FlowSegmentData *struct {
		CurrentSpeed  *float64 `json:"currentSpeed"`
		FreeFlowSpeed *float64 `json:"freeFlowSpeed"`
		Confidence    *float64 `json:"confidence"`
		RoadClosure   bool     `json:"roadClosure"`
	} `json:"flowSegmentData"`
}

// NewTomTom creates a TomTom client. Retries apply to transient failures only.
func NewTomTom(baseURL, apiKey string, timeout time.Duration, retry resilience.RetryConfig) *TomTom {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TomTom{
		apiKey: apiKey,
		client: httpclient.NewClient(baseURL, timeout, httpclient.WithRetry(NameTomTom, flowRetry(retry))),
	}
}

// Name returns the provider name
func (t *TomTom) Name() string {
	return NameTomTom
}

// FlowAt returns the flow reading of the road nearest to point.
func (t *TomTom) FlowAt(ctx context.Context, point orb.Point) (Flow, error) {
	if t.apiKey == "" {
		return Flow{}, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("key", t.apiKey)
	params.Set("point", formatLatLon(point))

	var resp tomtomFlowResponse
	if err := t.client.GetJSON(ctx, tomtomFlowPath, params, nil, &resp); err != nil {
		return Flow{}, classifyError(NameTomTom, err)
	}
	if resp.FlowSegmentData == nil {
		return Flow{}, fmt.Errorf("%s: missing flowSegmentData: %w", NameTomTom, ErrMalformedResponse)
	}

	data := resp.FlowSegmentData
	flow, err := normalize(NameTomTom, data.CurrentSpeed, data.FreeFlowSpeed, data.Confidence)
	if err != nil {
		return Flow{}, err
	}
	flow.RoadClosure = data.RoadClosure
	return flow, nil
}

func formatLatLon(p orb.Point) string {
	return strconv.FormatFloat(p.Lat(), 'f', 6, 64) + "," + strconv.FormatFloat(p.Lon(), 'f', 6, 64)
}
