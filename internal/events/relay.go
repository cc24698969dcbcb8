package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Outbox hands out unpublished records. The batch stays claimed until fn
// returns; records are marked published only when fn returns nil.
type Outbox interface {
	PublishBatch(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type RelayConfig struct {
	PollEvery time.Duration
	BatchSize int
}

// Relay ships outbox records to Kafka. The topic is the event type and the
// key is the booking id, so one booking's events stay ordered.
type Relay struct {
	outbox    Outbox
	writer    MessageWriter
	log       *slog.Logger
	pollEvery time.Duration
	batchSize int
}

func NewRelay(outbox Outbox, writer MessageWriter, log *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		outbox:    outbox,
		writer:    writer,
		log:       log.With(slog.String("component", "events.relay")),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// NewKafkaWriter returns nil when no brokers are configured.
func NewKafkaWriter(brokers string) *kafka.Writer {
	addrs := SplitBrokers(brokers)
	if len(addrs) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (r *Relay) Run(ctx context.Context) {
	if r.writer == nil {
		r.log.Warn("outbox relay disabled (no kafka brokers configured)")
		return
	}

	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Flush(ctx)
			if err != nil {
				r.log.Error("outbox publish failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				r.log.Debug("outbox published", slog.Int("count", n))
			}
		}
	}
}

// Flush publishes at most one batch and reports how many records it sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	return r.outbox.PublishBatch(ctx, r.batchSize, func(ctx context.Context, records []Record) error {
		msgs := make([]kafka.Message, 0, len(records))
		for _, rec := range records {
			msgs = append(msgs, kafka.Message{
				Topic: rec.EventType,
				Key:   []byte(rec.AggregateID),
				Value: rec.Payload,
				Headers: injectTraceHeaders(ctx, []kafka.Header{
					{Key: "event_id", Value: []byte(rec.EventID.String())},
					{Key: "event_type", Value: []byte(rec.EventType)},
				}),
			})
		}
		return r.writer.WriteMessages(ctx, msgs...)
	})
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range c.headers {
		if h.Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
