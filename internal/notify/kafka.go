package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

// KafkaConfig configura el Publisher.
type KafkaConfig struct {
	Brokers      []string
	WriteTimeout time.Duration
	MaxRetries   uint64
}

// KafkaPublisher implementa Publisher con un kafka.Writer compartido.
type KafkaPublisher struct {
	w       *kafka.Writer
	retries uint64
}

// NewKafkaPublisher crea el writer. No se conecta hasta el primer mensaje.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           cfg.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
		retries: cfg.MaxRetries,
	}, nil
}

func toKafka(m Message) kafka.Message {
	km := kafka.Message{Topic: m.Topic, Value: m.Value}
	if m.Key != "" {
		km.Key = []byte(m.Key)
	}
	for k, v := range m.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return km
}

// Publish escribe los mensajes con reintentos exponenciales acotados.
func (p *KafkaPublisher) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	batch := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Topic == "" {
			return errors.New("kafka: message without topic")
		}
		batch = append(batch, toKafka(m))
	}

	log := logger.From(ctx).With(logger.Component("kafka"))
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.retries), ctx)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := p.w.WriteMessages(ctx, batch...)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Warn("kafka write failed", logger.Int("attempt", attempt), logger.Err(err))
		}
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	log.Debug("kafka messages published", logger.Int("messages", len(batch)))
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
