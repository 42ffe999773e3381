package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cache-invalidation event kinds. External projections (widget endpoints and
// the like) listen for these to know when to refresh.
const (
	KindTreeInvalidated     = "tree.invalidated"
	KindTasksInvalidated    = "tasks.invalidated"
	KindCalendarInvalidated = "calendar.invalidated"
)

// Event is the JSON payload published after a successful mutation.
type Event struct {
	Kind   string             `json:"kind"`
	UserID primitive.ObjectID `json:"user_id"`
	At     time.Time          `json:"at"`
}

// Body marshals an invalidation event for the given user, stamped with the
// current time.
func Body(kind string, userID primitive.ObjectID) ([]byte, error) {
	return json.Marshal(Event{Kind: kind, UserID: userID, At: time.Now().UTC()})
}

// Publisher provides the Publish method to publish messages to a broker.
// Publish sends a message body as a byte array.
// Returns an error if there was a problem.
type Publisher interface {
	Publish(body []byte) error
}

// AMQPPublisher publishes mutation events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
}

// NewAMQPPublisher connects to RabbitMQ at the given URL and declares the
// durable queue the events are published to. The channel is put in confirm
// mode so broker-side failures surface as errors instead of silent drops.
func NewAMQPPublisher(url, queueName string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err = ch.Confirm(false); err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return nil, err
	}

	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)

	go func() {
		err := <-notifyClose
		if err != nil {
			log.Printf("ascent: RabbitMQ connection closed: %v", err)
		}
	}()

	return &AMQPPublisher{conn: conn, ch: ch, queueName: queueName}, nil
}

// Publish sends one message to the event queue as a persistent JSON body.
func (p *AMQPPublisher) Publish(body []byte) error {
	return p.ch.Publish(
		"",          // Exchange
		p.queueName, // Routing key
		false,       // Mandatory
		false,       // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Close shuts down the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
