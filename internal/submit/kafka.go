package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"healthbench/internal/config"
	"healthbench/internal/workload"
)

// messageWriter is the part of *kafka.Writer the submitter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes request envelopes to a topic for an external relay to
// execute. Writes are synchronous so every error reaches the caller.
type Kafka struct {
	writer  messageWriter
	logger  *logrus.Logger
	topic   string
	brokers []string
}

// NewKafka creates a Kafka submitter from cfg.
func NewKafka(cfg config.KafkaConfig, logger *logrus.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka submitter configuration incomplete: both brokers and topic are required")
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 10 * time.Millisecond
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		RequiredAcks: requiredAcks(cfg.RequiredAcks),
		WriteTimeout: writeTimeout,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Errorf("kafka writer: "+msg, args...)
		}),
	}

	k := newKafkaWithWriter(w, cfg.Topic, logger)
	k.brokers = cfg.Brokers
	return k, nil
}

func newKafkaWithWriter(w messageWriter, topic string, logger *logrus.Logger) *Kafka {
	return &Kafka{writer: w, logger: logger, topic: topic}
}

func requiredAcks(s string) kafka.RequiredAcks {
	switch s {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}

// Submit publishes req keyed by its envelope ID.
func (k *Kafka) Submit(ctx context.Context, req workload.Request) error {
	env := NewEnvelope(req)
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", req.Verb, err)
	}

	msg := kafka.Message{
		Key:   []byte(env.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "verb", Value: []byte(req.Verb)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.WithFields(logrus.Fields{"verb": req.Verb, "id": env.ID}).Debugf("kafka write failed: %v", err)
		return fmt.Errorf("publishing %s request to %s: %w", req.Verb, k.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	k.logger.WithField("topic", k.topic).Debug("closing kafka submitter")
	return k.writer.Close()
}

// CheckHealth succeeds when any configured broker accepts a connection.
func (k *Kafka) CheckHealth(ctx context.Context) error {
	if len(k.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var errs []error
	for _, broker := range k.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("broker %s: %w", broker, err))
			continue
		}
		return conn.Close()
	}
	return errors.Join(errs...)
}
