package messenger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrExchangeNotFound = errors.New("exchange not found")

type MessageService interface {
	SendMessage(item Item, routingKey string, body []byte, reliable bool) error
	ConsumeMessages(ctx context.Context, item Item, bindingKey string, callback func(msg string)) error
	Close() error
}

type Messenger struct {
	amqpUri string
	index   string

	lk   sync.Mutex
	conn *amqp.Connection
}

type Item string

var (
	MarketplaceActions Item = "marketplace.actions"
)

// RoutingKey is the topic an action is published under: <index>.<action>.
func RoutingKey(index, action string) string {
	return fmt.Sprintf("%s.%s", index, action)
}

func (i Item) queue(index string) string {
	return fmt.Sprintf("%s.%s", index, i)
}

func NewMessenger(amqpUri, index string) MessageService {
	return &Messenger{amqpUri: amqpUri, index: index}
}

func (m *Messenger) SendMessage(item Item, routingKey string, body []byte, reliable bool) error {
	ex, ok := exchanges[item]
	if !ok {
		zap.L().With(zap.String("item", string(item))).Error("[Queue] Exchange not found")
		return ErrExchangeNotFound
	}

	ch, err := m.openChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDeleted, ex.Internal, ex.NoWait, ex.Arguments); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Declare")
		return err
	}

	if reliable {
		if err := ch.Confirm(false); err != nil {
			zap.L().With(zap.Error(err)).Error("[Queue] Channel could not be put into confirm mode")
			return err
		}

		confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

		defer m.confirmOne(confirms)
	}

	publishing := amqp.Publishing{
		Headers:      amqp.Table{},
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}

	if err = ch.Publish(ex.Name, routingKey, false, false, publishing); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Publish")
		return err
	}

	zap.L().With(zap.String("exchange", ex.Name), zap.String("routingKey", routingKey)).Debug("[Queue] Published message")

	return nil
}

// ConsumeMessages binds the item's queue to bindingKey and hands every
// delivery to callback until ctx is done or the channel closes.
func (m *Messenger) ConsumeMessages(ctx context.Context, item Item, bindingKey string, callback func(msg string)) error {
	ex, ok := exchanges[item]
	if !ok {
		return ErrExchangeNotFound
	}

	ch, err := m.openChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDeleted, ex.Internal, ex.NoWait, ex.Arguments); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Declare")
		return err
	}

	q, err := ch.QueueDeclare(item.queue(m.index), true, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to declare a queue")
		return err
	}

	if err = ch.QueueBind(q.Name, bindingKey, ex.Name, false, nil); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to bind a queue")
		return err
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to consume the queue")
		return err
	}

	zap.L().With(zap.String("exchange", ex.Name), zap.String("bindingKey", bindingKey)).Debug("[Queue] Waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			zap.L().Debug("[Queue] Received message")
			callback(string(d.Body))
		}
	}
}

func (m *Messenger) Close() error {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.conn == nil || m.conn.IsClosed() {
		return nil
	}

	return m.conn.Close()
}

func (m *Messenger) openConnection() (*amqp.Connection, error) {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn, nil
	}

	conn, err := amqp.Dial(m.amqpUri)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to connect to RabbitMQ")
		return nil, err
	}

	m.conn = conn

	return m.conn, nil
}

func (m *Messenger) openChannel() (*amqp.Channel, error) {
	conn, err := m.openConnection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to open channel")
	}

	return ch, err
}

func (m *Messenger) confirmOne(confirms <-chan amqp.Confirmation) {
	zap.L().Debug("[Queue] Waiting for publish confirmation")

	if confirmed := <-confirms; confirmed.Ack {
		zap.L().Debug("[Queue] Publish confirmed")
	} else {
		zap.L().Warn("[Queue] Publish failed")
	}
}
