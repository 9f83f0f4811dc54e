package main

import (
	"context"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/common/io"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/amqp"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/config"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/file"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/mysql"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/redis"
)

func openDeadLetters(
	ctx context.Context,
	cfg config.Config,
	store store,
	logger logging.Logger,
	closer io.MultiCloser,
) (ingest.DeadLetterSink, error) {
	switch cfg.DeadLetter.Kind {
	case config.KindMySQL:
		return mysql.NewDeadLetterStorage(cfg.AppName, store.mysqlPool), nil
	case config.KindAMQP:
		return openAMQPDeadLetters(ctx, cfg, logger.WithField("deadletter", config.KindAMQP), closer)
	case config.KindRedis:
		settings := cfg.DeadLetter.Redis
		client, err := redis.Connect(ctx, redis.Config{
			Addr:     settings.Addr,
			Password: settings.Password,
			DB:       settings.DB,
		})
		if err != nil {
			return nil, err
		}
		closer.AddCloser(client)
		return redis.NewDeadLetterList(client, settings.Key, settings.MaxLen), nil
	default:
		sink, err := file.OpenDeadLetterFile(cfg.DeadLetter.Path)
		if err != nil {
			return nil, err
		}
		closer.AddCloser(sink)
		return sink, nil
	}
}

func openAMQPDeadLetters(ctx context.Context, cfg config.Config, logger logging.Logger, closer io.MultiCloser) (ingest.DeadLetterSink, error) {
	settings := cfg.DeadLetter.AMQP
	conn := amqp.NewAMQPConnection(cfg.AppName, newConnectionConfig(settings, cfg.Store.ConnectTimeout), logger)

	queueConfig := &amqp.QueueConfig{Name: settings.Queue, Durable: true}
	var exchangeConfig *amqp.ExchangeConfig
	var bindConfig *amqp.BindConfig
	routingKey := settings.RoutingKey
	if settings.Exchange != "" {
		exchangeConfig = &amqp.ExchangeConfig{Name: settings.Exchange, Kind: "direct", Durable: true}
		if routingKey == "" {
			routingKey = settings.Queue
		}
		bindConfig = &amqp.BindConfig{
			QueueName:    settings.Queue,
			ExchangeName: settings.Exchange,
			RoutingKeys:  []string{routingKey},
		}
	}
	producer := conn.Producer(exchangeConfig, queueConfig, bindConfig)

	if err := conn.Start(ctx); err != nil {
		return nil, err
	}
	closer.AddCloser(io.CloserFunc(conn.Stop))
	return amqp.NewDeadLetterPublisher(producer, routingKey), nil
}
