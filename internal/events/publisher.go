// Package events relays appointment domain events from the store outbox to
// Kafka.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"clinic-scheduler/internal/scheduling"
)

// Outbox is implemented by both stores.
type Outbox interface {
	PublishPending(ctx context.Context, limit int, send func(context.Context, []scheduling.Event) error) (int, error)
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

type Publisher struct {
	outbox    Outbox
	writer    MessageWriter
	logger    zerolog.Logger
	pollEvery time.Duration
	batchSize int
}

func SplitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(outbox Outbox, logger zerolog.Logger, cfg Config) *Publisher {
	brokers := SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		logger.Warn().Msg("event publisher disabled (no kafka brokers configured)")
		return nil
	}
	return NewPublisherWithWriter(outbox, &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, logger, cfg)
}

func NewPublisherWithWriter(outbox Outbox, writer MessageWriter, logger zerolog.Logger, cfg Config) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		outbox:    outbox,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run polls the outbox until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error().Err(err).Msg("close kafka writer")
		}
	}()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishOnce(ctx)
			if err != nil {
				p.logger.Error().Err(err).Msg("outbox publish failed")
				continue
			}
			if n > 0 {
				p.logger.Debug().Int("count", n).Msg("outbox events published")
			}
		}
	}
}

func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	return p.outbox.PublishPending(ctx, p.batchSize, func(ctx context.Context, batch []scheduling.Event) error {
		msgs := make([]kafka.Message, 0, len(batch))
		for _, e := range batch {
			msgs = append(msgs, toMessage(e))
		}
		return p.writer.WriteMessages(ctx, msgs...)
	})
}

func toMessage(e scheduling.Event) kafka.Message {
	return kafka.Message{
		Topic: e.Type,
		Key:   []byte(e.AggregateID.String()),
		Value: e.Payload,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID.String())},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
}

// ReadyCheck dials the first broker.
func ReadyCheck(brokers string) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return nil
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", list[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
