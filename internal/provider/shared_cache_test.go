package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/route-traffic/pkg/cache"
	redisclient "github.com/richxcame/route-traffic/pkg/redis"
)

func newSharedCache(next Client) (*SharedCache, redismock.ClientMock) {
	db, rmock := redismock.NewClientMock()
	return NewSharedCache(next, cache.NewManager(redisclient.NewFromClient(db)), time.Minute), rmock
}

func TestSharedCacheHitSkipsProvider(t *testing.T) {
	next := &mockClient{name: NameTomTom}
	shared, rmock := newSharedCache(next)

	key, ok := shared.key(istanbul)
	require.True(t, ok)
	assert.Contains(t, key, "traffic:flow:tomtom:")

	rmock.ExpectGet(key).SetVal(`{"currentSpeed":30,"freeFlowSpeed":50,"confidence":0.9,"provider":"tomtom"}`)

	flow, err := shared.FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, 30.0, flow.CurrentSpeed)
	next.AssertNotCalled(t, "FlowAt", mock.Anything, mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSharedCacheMissStoresReading(t *testing.T) {
	next := &mockClient{name: NameTomTom}
	next.On("FlowAt", mock.Anything, istanbul).Return(Flow{CurrentSpeed: 40, FreeFlowSpeed: 50, Confidence: 0.9, Provider: NameTomTom}, nil)
	shared, rmock := newSharedCache(next)

	key, _ := shared.key(istanbul)
	rmock.ExpectGet(key).RedisNil()
	rmock.ExpectSet(key, `{"currentSpeed":40,"freeFlowSpeed":50,"confidence":0.9,"provider":"tomtom"}`, time.Minute).SetVal("OK")

	flow, err := shared.FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, 40.0, flow.CurrentSpeed)
	next.AssertExpectations(t)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSharedCacheRedisErrorFallsThrough(t *testing.T) {
	next := &mockClient{name: NameTomTom}
	next.On("FlowAt", mock.Anything, istanbul).Return(Flow{CurrentSpeed: 40, FreeFlowSpeed: 50, Confidence: 0.9, Provider: NameTomTom}, nil)
	shared, rmock := newSharedCache(next)

	key, _ := shared.key(istanbul)
	rmock.ExpectGet(key).SetErr(errors.New("connection refused"))
	rmock.ExpectSet(key, `{"currentSpeed":40,"freeFlowSpeed":50,"confidence":0.9,"provider":"tomtom"}`, time.Minute).SetErr(errors.New("connection refused"))

	flow, err := shared.FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, 40.0, flow.CurrentSpeed)
}

func TestSharedCacheDoesNotStoreFailures(t *testing.T) {
	next := &mockClient{name: NameTomTom}
	next.On("FlowAt", mock.Anything, istanbul).Return(Flow{}, ErrRateLimited)
	shared, rmock := newSharedCache(next)

	key, _ := shared.key(istanbul)
	rmock.ExpectGet(key).RedisNil()

	_, err := shared.FlowAt(context.Background(), istanbul)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSharedCacheInvalidate(t *testing.T) {
	shared, rmock := newSharedCache(&mockClient{name: NameTomTom})

	rmock.ExpectScan(0, cache.Keys.FlowPattern(), 100).SetVal([]string{"traffic:flow:tomtom:a", "traffic:flow:tomtom:b"}, 0)
	rmock.ExpectDel("traffic:flow:tomtom:a", "traffic:flow:tomtom:b").SetVal(2)

	n, err := shared.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLiveBypassesSharedCache(t *testing.T) {
	next := &mockClient{name: NameTomTom}
	next.On("FlowAt", mock.Anything, istanbul).Return(Flow{CurrentSpeed: 45, FreeFlowSpeed: 50, Confidence: 0.9, Provider: NameTomTom}, nil).Once()
	shared, rmock := newSharedCache(next)

	live := Live(shared)
	assert.Same(t, next, live)
	assert.Same(t, next, Live(next))

	flow, err := live.FlowAt(context.Background(), istanbul)
	require.NoError(t, err)
	assert.Equal(t, 45.0, flow.CurrentSpeed)
	next.AssertExpectations(t)
	assert.NoError(t, rmock.ExpectationsWereMet(), "live reads must not touch redis")
}
