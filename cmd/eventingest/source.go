package main

import (
	"context"
	"time"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/common/io"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/amqp"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/config"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/file"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/kafka"
)

func openSource(ctx context.Context, cfg config.Config, logger logging.Logger, closer io.MultiCloser) (ingest.Source, error) {
	switch cfg.Source.Kind {
	case config.KindAMQP:
		return openAMQPSource(ctx, cfg, logger.WithField("source", config.KindAMQP), closer)
	case config.KindKafka:
		source := kafka.NewSource(kafka.NewReader(kafka.Config{
			Brokers:     cfg.Source.Kafka.Brokers,
			Topic:       cfg.Source.Kafka.Topic,
			GroupID:     cfg.Source.Kafka.GroupID,
			StartOffset: cfg.Source.Kafka.StartOffset,
		}))
		closer.AddCloser(source)
		return source, nil
	default:
		return file.NewSource(cfg.Source.Path)
	}
}

func openAMQPSource(ctx context.Context, cfg config.Config, logger logging.Logger, closer io.MultiCloser) (ingest.Source, error) {
	settings := cfg.Source.AMQP
	conn := amqp.NewAMQPConnection(cfg.AppName, newConnectionConfig(settings, cfg.Store.ConnectTimeout), logger)

	queueConfig := &amqp.QueueConfig{Name: settings.Queue, Durable: true}
	var bindConfig *amqp.BindConfig
	if settings.Exchange != "" {
		bindConfig = &amqp.BindConfig{
			QueueName:    settings.Queue,
			ExchangeName: settings.Exchange,
			RoutingKeys:  []string{settings.RoutingKey},
		}
	}
	// prefetch matches the queue so the broker never pushes more than the pipeline can hold
	source := amqp.NewSource(ctx, conn, queueConfig, bindConfig, cfg.Pipeline.QueueCapacity)

	if err := conn.Start(ctx); err != nil {
		return nil, err
	}
	closer.AddCloser(io.CloserFunc(conn.Stop))
	return source, nil
}

func newConnectionConfig(settings config.AMQPConfig, connectTimeout time.Duration) *amqp.ConnectionConfig {
	return &amqp.ConnectionConfig{
		User:           settings.User,
		Password:       settings.Password,
		Host:           settings.Host,
		VHost:          settings.VHost,
		ConnectTimeout: connectTimeout,
	}
}
