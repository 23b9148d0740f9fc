package messaging

import (
	"context"
	"encoding/json"
	"time"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase/interfaces"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns a writer that hashes on the message key, so all
// events of one order land on the same partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// OrderKafkaPublisher writes order events as JSON keyed by order id and
// carries the trace context in the message headers.
type OrderKafkaPublisher struct {
	writer MessageWriter
	topic  string
	tracer trace.Tracer
}

var _ interfaces.IOrderEventPublisher = (*OrderKafkaPublisher)(nil)

func NewOrderKafkaPublisher(writer MessageWriter, topic string) *OrderKafkaPublisher {
	return &OrderKafkaPublisher{writer: writer, topic: topic, tracer: otel.Tracer("restbucks/messaging")}
}

func (p *OrderKafkaPublisher) Publish(ctx context.Context, ev entities.OrderEvent) error {
	ctx, span := p.tracer.Start(ctx, "order-events.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", p.topic),
			attribute.String("messaging.kafka.message.key", ev.OrderID),
			attribute.String("order.event", string(ev.Type)),
		),
	)
	defer span.End()

	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}

	var headers KafkaHeaderCarrier
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	msg := kafka.Message{
		Key:     []byte(ev.OrderID),
		Value:   payload,
		Headers: headers,
		Time:    ev.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "write %s for order %s", ev.Type, ev.OrderID)
	}
	return nil
}

// KafkaHeaderCarrier adapts kafka headers to the OpenTelemetry propagator.
type KafkaHeaderCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*KafkaHeaderCarrier)(nil)

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
