package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"camphub/event-relay/log"

	"github.com/alexflint/go-arg"
)

const (
	MySQL    DbDriver = "mysql"
	Postgres DbDriver = "postgres"

	Kafka    BrokerDriver = "kafka"
	RabbitMQ BrokerDriver = "rabbitmq"
)

type DbDriver string

type BrokerDriver string

var supportedDbTypes = map[DbDriver]bool{
	Postgres: true,
	MySQL:    true,
}

var supportedBrokerTypes = map[BrokerDriver]bool{
	Kafka:    true,
	RabbitMQ: true,
}

type Config struct {
	SkipMigrations      bool         `arg:"--skip-migrations,env:SKIP_MIGRATIONS"`
	ServiceName         string       `arg:"--service-name,env:SERVICE_NAME"`
	DBHost              string       `arg:"--db-host,env:DB_HOST,required"`
	DBPort              uint32       `arg:"--db-port,env:DB_PORT,required"`
	DBUser              string       `arg:"--db-user,env:DB_USER,required"`
	DBPass              string       `arg:"--db-pass,env:DB_PASS,required"`
	DBName              string       `arg:"--db-name,env:DB_NAME,required"`
	DBDriver            DbDriver     `arg:"--db-driver,env:DB_DRIVER,required"`
	DBOutboxTable       string       `arg:"--db-outbox-table,env:DB_OUTBOX_TABLE"`
	DBTLSEnable         bool         `arg:"--db-tls,env:DB_TLS_ENABLE"`
	DBTLSSkipVerifyPeer bool         `arg:"--db-tls-skip-verify-peer,env:DB_TLS_SKIP_VERIFY_PEER"`
	Broker              BrokerDriver `arg:"--broker,env:BROKER"`
	KafkaHost           []string     `arg:"--kafka-host,env:KAFKA_HOST"`
	KafkaTLSEnable      bool         `arg:"--kafka-tls,env:KAFKA_TLS_ENABLE"`
	KafkaTLSSkipVerify  bool         `arg:"--kafka-tls-skip-verify-peer,env:KAFKA_TLS_SKIP_VERIFY_PEER"`
	AmqpUrl             string       `arg:"--amqp-url,env:AMQP_URL"`
	AmqpExchange        string       `arg:"--amqp-exchange,env:AMQP_EXCHANGE"`
	PublishAttempts     int          `arg:"--publish-attempts,env:PUBLISH_ATTEMPTS"`
	WriteConcurrency    int          `arg:"--write-concurrency,env:WRITE_CONCURRENCY"`
	PollFrequencyMs     int          `arg:"--poll-frequency-ms,env:POLL_FREQUENCY_MS"`
	ListenNotify        bool         `arg:"--listen-notify,env:LISTEN_NOTIFY"`
	NotifyWatchdogMs    int          `arg:"--notify-watchdog-ms,env:NOTIFY_WATCHDOG_MS"`
	BatchSize           int          `arg:"--batch-size,env:BATCH_SIZE"`
	RunCleanup          bool         `arg:"--cleanup,env:RUN_CLEANUP"`
	RunOptimize         bool         `arg:"--optimize,env:RUN_OPTIMIZE"`
	RunConsumer         bool         `arg:"--consume,env:RUN_CONSUMER"`
	ConsumerQueue       string       `arg:"--consumer-queue,env:CONSUMER_QUEUE"`
	ConsumerBindingKeys []string     `arg:"--consumer-binding-key,env:CONSUMER_BINDING_KEYS"`
	ConsumerPrefetch    int          `arg:"--consumer-prefetch,env:CONSUMER_PREFETCH"`
	ConsumerMaxAttempts int          `arg:"--consumer-max-attempts,env:CONSUMER_MAX_ATTEMPTS"`
	PaymentLinkBaseUrl  string       `arg:"--payment-link-base-url,env:PAYMENT_LINK_BASE_URL"`
	SidecarProxyUrl     string       `arg:"--sidecar-proxy-url,env:SIDECAR_PROXY_URL"`
}

func NewConfig() (*Config, error) {
	c := &Config{
		ServiceName:         "camp-event-relay",
		DBOutboxTable:       "event_outbox",
		Broker:              RabbitMQ,
		AmqpExchange:        "camp.events",
		PublishAttempts:     3,
		WriteConcurrency:    1,
		PollFrequencyMs:     500,
		NotifyWatchdogMs:    10000,
		BatchSize:           250,
		ConsumerQueue:       "camp-payments",
		ConsumerPrefetch:    50,
		ConsumerMaxAttempts: 3,
		PaymentLinkBaseUrl:  "https://pay.camphub.org",
	}
	arg.MustParse(c)

	if !supportedDbTypes[c.DBDriver] {
		return nil, fmt.Errorf("the DB_DRIVER provided (%s) is not supported", c.DBDriver)
	}

	if !supportedBrokerTypes[c.Broker] {
		return nil, fmt.Errorf("the BROKER provided (%s) is not supported", c.Broker)
	}

	return c, nil
}

func (c *Config) GetPollIntervalDurationInMs() time.Duration {
	return time.Duration(c.PollFrequencyMs) * time.Millisecond
}

func (c *Config) GetNotifyWatchdogDuration() time.Duration {
	return time.Duration(c.NotifyWatchdogMs) * time.Millisecond
}

func (c *Config) GetDSN() string {
	switch c.DBDriver {
	case MySQL:
		tls := "false"
		if c.DBTLSEnable {
			if c.DBTLSSkipVerifyPeer {
				tls = "skip-verify"
			} else {
				tls = "true"
			}
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s&multiStatements=true", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, tls)
	case Postgres:
		sslMode := "disable"
		if c.DBTLSEnable {
			if c.DBTLSSkipVerifyPeer {
				sslMode = "require"
			} else {
				sslMode = "verify-full"
			}
		}
		return fmt.Sprintf("%s://%s@%s:%d/%s?sslmode=%s", c.DBDriver, url.UserPassword(c.DBUser, c.DBPass), c.DBHost, c.DBPort, c.DBName, sslMode)
	default:
		log.Logger.Fatalf("the DB driver configured (%s) is not supported", c.DBDriver)
		return ""
	}
}

// GetDependencySystemAddresses returns the broker addresses that the healthz
// readiness check must be able to reach.
func (c *Config) GetDependencySystemAddresses() []string {
	if c.Broker.Kafka() {
		return c.KafkaHost
	}

	u, err := url.Parse(c.AmqpUrl)
	if err != nil || u.Host == "" {
		return nil
	}

	return []string{u.Host}
}

func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"SkipMigrations":      c.SkipMigrations,
		"ServiceName":         c.ServiceName,
		"DBHost":              c.DBHost,
		"DBPort":              c.DBPort,
		"DBUser":              c.DBUser,
		"DBPass":              "xxxxx",
		"DBName":              c.DBName,
		"DBDriver":            c.DBDriver,
		"DBOutboxTable":       c.DBOutboxTable,
		"Broker":              c.Broker,
		"KafkaHost":           c.KafkaHost,
		"AmqpUrl":             "xxxxx",
		"AmqpExchange":        c.AmqpExchange,
		"PublishAttempts":     c.PublishAttempts,
		"WriteConcurrency":    c.WriteConcurrency,
		"PollFrequencyMs":     c.PollFrequencyMs,
		"ListenNotify":        c.ListenNotify,
		"NotifyWatchdogMs":    c.NotifyWatchdogMs,
		"BatchSize":           c.BatchSize,
		"RunCleanup":          c.RunCleanup,
		"RunOptimize":         c.RunOptimize,
		"RunConsumer":         c.RunConsumer,
		"ConsumerQueue":       c.ConsumerQueue,
		"ConsumerBindingKeys": c.ConsumerBindingKeys,
		"ConsumerPrefetch":    c.ConsumerPrefetch,
		"ConsumerMaxAttempts": c.ConsumerMaxAttempts,
		"PaymentLinkBaseUrl":  c.PaymentLinkBaseUrl,
		"SidecarProxyUrl":     c.SidecarProxyUrl,
	})
}

func (d DbDriver) MySQL() bool {
	return d == MySQL
}

func (d DbDriver) Postgres() bool {
	return d == Postgres
}

func (d DbDriver) String() string {
	return string(d)
}

func (b BrokerDriver) Kafka() bool {
	return b == Kafka
}

func (b BrokerDriver) RabbitMQ() bool {
	return b == RabbitMQ
}

func (b BrokerDriver) String() string {
	return string(b)
}
