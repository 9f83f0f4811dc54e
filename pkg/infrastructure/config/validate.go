package config

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	KindFile  = "file"
	KindAMQP  = "amqp"
	KindKafka = "kafka"
	KindMySQL = "mysql"
	KindRedis = "redis"
)

// Validate reports every problem at once.
func (c Config) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		fail("log_level: %v", err)
	}

	if !slices.Contains([]string{DriverMySQL, DriverPostgres}, c.Store.Driver) {
		fail("store.driver: unsupported driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		fail("store.dsn: required")
	}
	if c.Store.MaxConnections < 1 {
		fail("store.max_connections: must be at least 1")
	}

	switch c.Source.Kind {
	case KindFile:
		if c.Source.Path == "" {
			fail("source.path: required for the file source")
		}
	case KindAMQP:
		if c.Source.AMQP.Host == "" || c.Source.AMQP.Queue == "" {
			fail("source.amqp: host and queue are required")
		}
	case KindKafka:
		if len(c.Source.Kafka.Brokers) == 0 || c.Source.Kafka.Topic == "" || c.Source.Kafka.GroupID == "" {
			fail("source.kafka: brokers, topic and group_id are required")
		}
	default:
		fail("source.kind: unsupported source %q", c.Source.Kind)
	}

	p := c.Pipeline
	if p.QueueCapacity < 1 {
		fail("pipeline.queue_capacity: must be at least 1")
	}
	if p.Workers < 1 {
		fail("pipeline.workers: must be at least 1")
	}
	if p.MaxAttempts < 1 {
		fail("pipeline.max_attempts: must be at least 1")
	}
	if p.BaseDelay <= 0 {
		fail("pipeline.base_delay: must be positive")
	}
	if p.MaxDelay < p.BaseDelay {
		fail("pipeline.max_delay: must not be below base_delay")
	}
	if p.WriteTimeout < 0 {
		fail("pipeline.write_timeout: must not be negative")
	}
	if p.DrainTimeout <= 0 {
		fail("pipeline.drain_timeout: must be positive")
	}

	switch c.DeadLetter.Kind {
	case KindFile:
		if c.DeadLetter.Path == "" {
			fail("deadletter.path: required for the file sink")
		}
	case KindMySQL:
		if c.Store.Driver != DriverMySQL {
			fail("deadletter.kind: the mysql sink needs the mysql store")
		}
	case KindAMQP:
		if c.DeadLetter.AMQP.Host == "" || c.DeadLetter.AMQP.Queue == "" {
			fail("deadletter.amqp: host and queue are required")
		}
	case KindRedis:
		if c.DeadLetter.Redis.Addr == "" || c.DeadLetter.Redis.Key == "" {
			fail("deadletter.redis: addr and key are required")
		}
	default:
		fail("deadletter.kind: unsupported sink %q", c.DeadLetter.Kind)
	}

	return result.ErrorOrNil()
}
