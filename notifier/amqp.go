package notifier

import (
	"encoding/json"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const billingEventsExchange string = "billing_events"

var _ Sink = &AMQPPublisher{}

// AMQPPublisher publishes billing events to a RabbitMQ topic exchange,
// routed by event kind
type AMQPPublisher struct {
	logger     *zap.Logger
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewAMQPPublisher returns a publisher over RabbitMQ
func NewAMQPPublisher(logger *zap.Logger, amqpURI string) (*AMQPPublisher, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	p := &AMQPPublisher{
		logger:     logger,
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := p.setupExchange(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare exchange for billing events")
	}
	return p, nil
}

func (p *AMQPPublisher) setupExchange() error {
	return p.channel.ExchangeDeclare(
		billingEventsExchange, // name
		"topic",               // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
}

// Publish implements Sink
func (p *AMQPPublisher) Publish(event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode event into bytes")
	}
	if err := p.channel.Publish(
		billingEventsExchange,
		string(event.Kind),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return extErrors.Wrap(err, "Cannot publish billing event")
	}
	return nil
}

// Close will close the channel and connection to release resources
func (p *AMQPPublisher) Close() {
	p.channel.Close()
	p.connection.Close()
}

// AMQPConsumer receives billing events for background processing (e.g. the
// email worker)
type AMQPConsumer struct {
	logger     *zap.Logger
	connection *amqp.Connection
	channel    *amqp.Channel
	queue      string
}

// NewAMQPConsumer returns a consumer bound to the billing events exchange.
// queueName identifies the consumer group; workers sharing a queue split the
// events between them.
func NewAMQPConsumer(logger *zap.Logger, amqpURI, queueName string) (*AMQPConsumer, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	c := &AMQPConsumer{
		logger:     logger,
		connection: amqpConn,
		channel:    amqpChan,
		queue:      queueName,
	}
	if err := c.setupQueue(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare queue for billing events")
	}
	return c, nil
}

func (c *AMQPConsumer) setupQueue() error {
	if err := c.channel.ExchangeDeclare(
		billingEventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	if _, err := c.channel.QueueDeclare(
		c.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return err
	}
	return c.channel.QueueBind(
		c.queue,
		"#", // all event kinds
		billingEventsExchange,
		false,
		nil,
	)
}

// Receive returns a channel of decoded events. Messages that fail to decode
// are acknowledged and dropped with a log line.
func (c *AMQPConsumer) Receive() (<-chan Event, error) {
	deliveries, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot consume billing events")
	}
	events := make(chan Event)
	go func() {
		defer close(events)
		for d := range deliveries {
			var event Event
			if err := json.Unmarshal(d.Body, &event); err != nil {
				c.logger.Error("Unable to decode billing event",
					zap.Error(err),
				)
				d.Ack(false)
				continue
			}
			events <- event
			d.Ack(false)
		}
	}()
	return events, nil
}

// Close will close the channel and connection to release resources
func (c *AMQPConsumer) Close() {
	c.channel.Close()
	c.connection.Close()
}
