package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange names.
const (
	ExchangeJobs   = "slidesmith.jobs"
	ExchangeEvents = "slidesmith.events"
	ExchangeDLQ    = "slidesmith.dlq"
)

// Queue names.
const (
	QueueSubmissions = "jobs.submissions"
	QueueEvents      = "jobs.events"
	QueueDLQ         = "dlq.submissions"
)

// Routing keys.
const (
	RoutingSubmit = "submit"
	RoutingEvent  = "event"
	RoutingDLQ    = "submissions"
)

// SetupTopology declares the exchanges, queues, and bindings the service
// relies on. Declarations are idempotent, so every instance runs this at
// startup.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []string{ExchangeJobs, ExchangeEvents, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			name,
			"direct",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	// Submissions that repeatedly fail processing dead-letter rather
	// than cycling through the queue forever.
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeDLQ,
		"x-dead-letter-routing-key": RoutingDLQ,
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{QueueSubmissions, dlqArgs},
		{QueueEvents, nil},
		{QueueDLQ, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			q.args,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      string
		routingKey string
		exchange   string
	}{
		{QueueSubmissions, RoutingSubmit, ExchangeJobs},
		{QueueEvents, RoutingEvent, ExchangeEvents},
		{QueueDLQ, RoutingDLQ, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}
