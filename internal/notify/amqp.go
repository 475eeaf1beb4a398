package notify

import (
	"context"

	"github.com/slidesmith/slidesmith/pkg/broker"
)

// BrokerDispatcher publishes job lifecycle events to the events exchange.
// Downstream consumers (webhook forwarders, websocket bridges) subscribe
// to the events queue.
type BrokerDispatcher struct {
	publisher *broker.Publisher
}

// NewBrokerDispatcher creates a dispatcher over the broker publisher.
func NewBrokerDispatcher(publisher *broker.Publisher) *BrokerDispatcher {
	return &BrokerDispatcher{publisher: publisher}
}

func (d *BrokerDispatcher) Notify(ctx context.Context, event Event, payload Payload) error {
	return d.publisher.Publish(
		ctx,
		broker.ExchangeEvents,
		broker.RoutingEvent,
		string(event),
		payload,
	)
}
