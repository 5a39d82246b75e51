package metrics

import (
	"context"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// EventStore counts every event before handing it to the wrapped store.
type EventStore struct {
	next core.EventStore

	events  *prometheus.CounterVec
	amounts *prometheus.CounterVec
}

// NewEventStore registers its collectors on reg. next may be nil when events
// only need counting.
func NewEventStore(reg prometheus.Registerer, next core.EventStore) (*EventStore, error) {
	s := &EventStore{
		next: next,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "abracadabra",
			Name:      "events_total",
			Help:      "Count of committed engine events segmented by kind.",
		}, []string{"kind"}),
		amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "abracadabra",
			Name:      "event_amount_total",
			Help:      "Sum of token amounts carried by engine events segmented by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{s.events, s.amounts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *EventStore) Events() *prometheus.CounterVec {
	return s.events
}

func (s *EventStore) Amounts() *prometheus.CounterVec {
	return s.amounts
}

func (s *EventStore) CreateEvent(ctx context.Context, event *core.Event) error {
	kind := string(event.Kind)
	s.events.WithLabelValues(kind).Inc()
	if event.Amount.IsPositive() {
		s.amounts.WithLabelValues(kind).Add(event.Amount.InexactFloat64())
	}
	if s.next == nil {
		return nil
	}
	return s.next.CreateEvent(ctx, event)
}

func (s *EventStore) ListEvents(ctx context.Context, scope uuid.UUID, kind core.EventKind, limit int) ([]*core.Event, error) {
	if s.next == nil {
		return nil, nil
	}
	return s.next.ListEvents(ctx, scope, kind, limit)
}

var _ core.EventStore = (*EventStore)(nil)
