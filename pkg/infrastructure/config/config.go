package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "EVENTINGEST"

type Config struct {
	AppName    string           `mapstructure:"app_name"`
	LogLevel   string           `mapstructure:"log_level"`
	Store      StoreConfig      `mapstructure:"store"`
	Source     SourceConfig     `mapstructure:"source"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	DeadLetter DeadLetterConfig `mapstructure:"deadletter"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	MaxConnections int           `mapstructure:"max_connections"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Migrate        bool          `mapstructure:"migrate"`
}

type SourceConfig struct {
	Kind  string      `mapstructure:"kind"`
	Path  string      `mapstructure:"path"`
	AMQP  AMQPConfig  `mapstructure:"amqp"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type AMQPConfig struct {
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Host       string `mapstructure:"host"`
	VHost      string `mapstructure:"vhost"`
	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	RoutingKey string `mapstructure:"routing_key"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	GroupID     string   `mapstructure:"group_id"`
	StartOffset string   `mapstructure:"start_offset"`
}

type PipelineConfig struct {
	QueueCapacity int           `mapstructure:"queue_capacity"`
	Workers       int           `mapstructure:"workers"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
}

type DeadLetterConfig struct {
	Kind  string      `mapstructure:"kind"`
	Path  string      `mapstructure:"path"`
	AMQP  AMQPConfig  `mapstructure:"amqp"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	MaxLen   int64  `mapstructure:"max_len"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

var defaults = map[string]interface{}{
	"app_name":                    "eventingest",
	"log_level":                   "info",
	"store.driver":                "mysql",
	"store.dsn":                   "",
	"store.max_connections":       8,
	"store.connect_timeout":       30 * time.Second,
	"store.migrate":               true,
	"source.kind":                 "file",
	"source.path":                 "messages.jsonl",
	"source.amqp.user":            "guest",
	"source.amqp.password":        "guest",
	"source.amqp.host":            "localhost:5672",
	"source.amqp.vhost":           "",
	"source.amqp.exchange":        "",
	"source.amqp.queue":           "events",
	"source.amqp.routing_key":     "",
	"source.kafka.brokers":        []string{"localhost:9092"},
	"source.kafka.topic":          "events",
	"source.kafka.group_id":       "eventingest",
	"source.kafka.start_offset":   "earliest",
	"pipeline.queue_capacity":     100,
	"pipeline.workers":            4,
	"pipeline.max_attempts":       3,
	"pipeline.base_delay":         time.Second,
	"pipeline.max_delay":          30 * time.Second,
	"pipeline.write_timeout":      15 * time.Second,
	"pipeline.drain_timeout":      30 * time.Second,
	"deadletter.kind":             "file",
	"deadletter.path":             "deadletter.jsonl",
	"deadletter.amqp.user":        "guest",
	"deadletter.amqp.password":    "guest",
	"deadletter.amqp.host":        "localhost:5672",
	"deadletter.amqp.vhost":       "",
	"deadletter.amqp.exchange":    "",
	"deadletter.amqp.queue":       "events.dead",
	"deadletter.amqp.routing_key": "",
	"deadletter.redis.addr":       "localhost:6379",
	"deadletter.redis.password":   "",
	"deadletter.redis.db":         0,
	"deadletter.redis.key":        "eventingest:dead_letters",
	"deadletter.redis.max_len":    0,
	"metrics.addr":                "",
}

// Load resolves configuration from defaults, an optional file, EVENTINGEST_* variables and flags,
// in increasing order of precedence.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("eventingest", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a configuration file")
	flags.String("log-level", "info", "log level")
	flags.String("source", "messages.jsonl", "path of the input file for the file source")
	flags.String("metrics-addr", "", "listen address of the metrics endpoint")
	flags.Duration("drain-timeout", 30*time.Second, "how long shutdown waits for queued events")
	if err := flags.Parse(args); err != nil {
		return Config{}, errors.WithStack(err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, flag := range map[string]string{
		"log_level":              "log-level",
		"source.path":            "source",
		"metrics.addr":           "metrics-addr",
		"pipeline.drain_timeout": "drain-timeout",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return Config{}, errors.WithStack(err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config file %s", *configFile)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode configuration")
	}
	return config, config.Validate()
}
