package metrics

import (
	"context"
	"testing"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	events []*core.Event
}

func (s *recordingStore) CreateEvent(ctx context.Context, event *core.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingStore) ListEvents(ctx context.Context, scope uuid.UUID, kind core.EventKind, limit int) ([]*core.Event, error) {
	return s.events, nil
}

func TestEventStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	scope := uuid.Must(uuid.NewV4())
	next := &recordingStore{}

	reg := prometheus.NewRegistry()
	store, err := NewEventStore(reg, next)
	require.NoError(t, err)

	require.NoError(t, store.CreateEvent(ctx, core.NewEvent(clk, core.EventDeposit, scope, "debt").WithAmounts(1000, 1000)))
	require.NoError(t, store.CreateEvent(ctx, core.NewEvent(clk, core.EventDeposit, scope, "debt").WithAmounts(500, 400)))
	require.NoError(t, store.CreateEvent(ctx, core.NewEvent(clk, core.EventAccrue, scope, "debt")))

	assert.Equal(t, float64(2), testutil.ToFloat64(store.Events().WithLabelValues(string(core.EventDeposit))))
	assert.Equal(t, float64(1), testutil.ToFloat64(store.Events().WithLabelValues(string(core.EventAccrue))))
	assert.Equal(t, float64(1500), testutil.ToFloat64(store.Amounts().WithLabelValues(string(core.EventDeposit))))
	assert.Equal(t, 1, testutil.CollectAndCount(store.Amounts()))

	events, err := store.ListEvents(ctx, scope, "", 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// the collectors are already taken
	_, err = NewEventStore(reg, next)
	assert.Error(t, err)
}

func TestEventStoreWithoutNext(t *testing.T) {
	store, err := NewEventStore(prometheus.NewRegistry(), nil)
	require.NoError(t, err)

	require.NoError(t, store.CreateEvent(context.Background(), core.NewEvent(clock.NewMock(), core.EventBorrow, uuid.Nil, "debt")))
	events, err := store.ListEvents(context.Background(), uuid.Nil, "", 0)
	assert.NoError(t, err)
	assert.Nil(t, events)
}
