package rabbitmq

import (
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Disposition is what a handler wants done with a delivery.
type Disposition int

const (
	// Ack removes the delivery from the queue.
	Ack Disposition = iota
	// Requeue puts the delivery back for another attempt.
	Requeue
	// DeadLetter moves the delivery to the dead-letter queue without retrying it.
	DeadLetter
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case DeadLetter:
		return "dead_letter"
	}
	return fmt.Sprintf("disposition(%d)", int(d))
}

// Handler processes one delivery body.
type Handler func(body []byte) Disposition

const (
	prefetchCount = 16
	// deliveryLimit caps redeliveries of one message; the broker dead-letters it afterwards.
	deliveryLimit  = 10
	requeueBackoff = 500 * time.Millisecond
)

// DeadLetterName is the exchange and queue that receive rejected deliveries of queueName.
func DeadLetterName(queueName string) string {
	return queueName + ".dead_letter"
}

// Consumer delivers messages from one durable quorum queue to per-routing-key handlers.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(amqpURL string) (*Consumer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch}, nil
}

// queueArgs makes queueName a quorum queue whose rejected or over-delivered messages land in
// its dead-letter queue.
func queueArgs(queueName string) amqp.Table {
	return amqp.Table{
		"x-queue-type":           "quorum",
		"x-delivery-limit":       int32(deliveryLimit),
		"x-dead-letter-exchange": DeadLetterName(queueName),
	}
}

func (c *Consumer) declareDeadLetter(queueName string) error {
	name := DeadLetterName(queueName)
	if err := c.ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return err
	}
	return c.ch.QueueBind(name, "", name, false, nil)
}

// ConsumeWithBindings binds queueName to every routing key in bindings and starts delivering.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]Handler) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.declareDeadLetter(queueName); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, queueArgs(queueName))
	if err != nil {
		return err
	}

	handlers := make(map[string]Handler, len(bindings))
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			handler, ok := handlers[d.RoutingKey]
			if !ok {
				log.Printf("level=warn component=rabbitmq_consumer msg=\"no handler; dropping\" routing_key=%s", d.RoutingKey)
				d.Ack(false)
				continue
			}
			settle(d, handler(d.Body))
		}
	}()

	return nil
}

func settle(d amqp.Delivery, disposition Disposition) {
	switch disposition {
	case Ack:
		d.Ack(false)
	case Requeue:
		log.Printf("level=warn component=rabbitmq_consumer msg=\"handler failed; requeueing\" routing_key=%s redelivered=%t", d.RoutingKey, d.Redelivered)
		time.Sleep(requeueBackoff)
		d.Nack(false, true)
	default:
		log.Printf("level=error component=rabbitmq_consumer msg=\"handler rejected message; dead-lettering\" routing_key=%s", d.RoutingKey)
		d.Nack(false, false)
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
