package amqp

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ConnectionConfig struct {
	User           string
	Password       string
	Host           string
	VHost          string
	ConnectTimeout time.Duration
}

type ExchangeConfig struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Args       amqp.Table
}

func (c ExchangeConfig) declare(channel *amqp.Channel) error {
	return channel.ExchangeDeclare(c.Name, c.Kind, c.Durable, c.AutoDelete, c.Internal, c.NoWait, c.Args)
}

type QueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

func (c QueueConfig) declare(channel *amqp.Channel) error {
	_, err := channel.QueueDeclare(c.Name, c.Durable, c.AutoDelete, c.Exclusive, c.NoWait, c.Args)
	return err
}

// QoSConfig limits unacknowledged deliveries; with manual acks this bounds
// how many records the broker pushes ahead of processing.
type QoSConfig struct {
	PrefetchCount int
	PrefetchSize  int
	Global        bool
}

func (c QoSConfig) declare(channel *amqp.Channel) error {
	return channel.Qos(c.PrefetchCount, c.PrefetchSize, c.Global)
}

type BindConfig struct {
	QueueName    string
	ExchangeName string
	RoutingKeys  []string
	NoWait       bool
	Args         amqp.Table
}

func (c BindConfig) declare(channel *amqp.Channel) error {
	for _, routingKey := range c.RoutingKeys {
		if err := channel.QueueBind(c.QueueName, routingKey, c.ExchangeName, c.NoWait, c.Args); err != nil {
			return err
		}
	}
	return nil
}
