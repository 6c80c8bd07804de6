package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	logging "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

const (
	connectAttempts = 5
	connectBackoff  = 5 * time.Second
)

// Connect dials RabbitMQ, retrying a few times while the broker starts up.
// It gives up early once ctx is done.
func Connect(ctx context.Context, url string, log logging.Logger) (*amqp.Connection, error) {
	var err error
	for attempt := 1; ; attempt++ {
		var conn *amqp.Connection
		if conn, err = amqp.Dial(url); err == nil {
			return conn, nil
		}
		if attempt == connectAttempts {
			break
		}
		log.Warn("could not connect to rabbitmq, retrying", "attempt", attempt, "error", err)
		select {
		case <-time.After(connectBackoff):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "could not connect to rabbitmq")
		}
	}
	return nil, errors.Wrap(err, "could not connect to rabbitmq")
}

// AmqpPublisher publishes poll events as JSON messages to a durable queue.
type AmqpPublisher struct {
	amqpChannel  *amqp.Channel
	amqpQueue    string
	channelMutex sync.Mutex
}

func NewAmqpPublisher(conn *amqp.Connection, queue string) (*AmqpPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "could not open channel")
	}
	if _, err = ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		return nil, errors.Wrapf(err, "could not declare queue %q", queue)
	}
	return &AmqpPublisher{
		amqpChannel: ch,
		amqpQueue:   queue,
	}, nil
}

func (p *AmqpPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	p.channelMutex.Lock()
	defer p.channelMutex.Unlock()

	if err = p.amqpChannel.PublishWithContext(
		ctx,
		"",
		p.amqpQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.ID,
			Type:        string(event.Kind),
			Timestamp:   event.OccurredAt,
			Body:        body,
		},
	); err != nil {
		return errors.Wrapf(err, "could not publish %s", event.Kind)
	}
	return nil
}

func (p *AmqpPublisher) Close() error {
	p.channelMutex.Lock()
	defer p.channelMutex.Unlock()
	return p.amqpChannel.Close()
}

type eventMessage struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Poll       string        `json:"poll"`
	Caller     string        `json:"caller"`
	OccurredAt time.Time     `json:"occurred_at"`
	Voter      *voterMessage `json:"voter,omitempty"`
	Vote       *voteMessage  `json:"vote,omitempty"`
}

type voterMessage struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

type voteMessage struct {
	Voter        string  `json:"voter"`
	Option       int     `json:"option"`
	Contribution float64 `json:"contribution"`
}

// EncodeEvent renders the message body. Voters are reduced to name and contribution.
func EncodeEvent(event domain.Event) ([]byte, error) {
	msg := eventMessage{
		ID:         event.ID,
		Kind:       string(event.Kind),
		Poll:       event.Poll,
		Caller:     string(event.Caller),
		OccurredAt: event.OccurredAt,
	}
	if event.Voter != nil {
		msg.Voter = &voterMessage{Name: event.Voter.Name, Contribution: event.Voter.Contribution}
	}
	if event.Vote != nil {
		msg.Vote = &voteMessage{Voter: event.Vote.Name, Option: event.Vote.Option, Contribution: event.Vote.Contribution}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode event")
	}
	return b, nil
}
