package events

import (
    "context"
    "encoding/json"
    "time"

    "github.com/segmentio/kafka-go"
    "go.uber.org/zap"
)

type messageWriter interface {
    WriteMessages(ctx context.Context, msgs ...kafka.Message) error
    Close() error
}

type KafkaProducer struct {
    writer  messageWriter
    logger  *zap.Logger
    timeout time.Duration
}

func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
    writer := &kafka.Writer{
        Addr:         kafka.TCP(brokers...),
        Topic:        topic,
        Balancer:     &kafka.LeastBytes{},
        BatchTimeout: 10 * time.Millisecond,
    }

    return &KafkaProducer{
        writer:  writer,
        logger:  logger,
        timeout: 10 * time.Second,
    }
}

func (p *KafkaProducer) PublishBillSaved(ctx context.Context, event BillSavedEvent) error {
    eventBytes, err := json.Marshal(event)
    if err != nil {
        p.logger.Error("Failed to marshal event", zap.Error(err))
        return err
    }

    msg := kafka.Message{
        Key:   []byte(event.BillNumber),
        Value: eventBytes,
        Headers: []kafka.Header{
            {Key: "event_type", Value: []byte(event.EventType)},
            {Key: "event_id", Value: []byte(event.EventID)},
        },
    }

    ctx, cancel := context.WithTimeout(ctx, p.timeout)
    defer cancel()

    if err := p.writer.WriteMessages(ctx, msg); err != nil {
        p.logger.Error("Failed to publish message",
            zap.String("event_id", event.EventID),
            zap.Error(err))
        return err
    }

    p.logger.Info("Event published successfully",
        zap.String("event_id", event.EventID),
        zap.String("bill_number", event.BillNumber))

    return nil
}

func (p *KafkaProducer) Close() error {
    if p.writer != nil {
        return p.writer.Close()
    }
    return nil
}

// NopPublisher 는 Kafka 브로커가 설정되지 않았을 때 사용
type NopPublisher struct {
    Logger *zap.Logger
}

func (p NopPublisher) PublishBillSaved(ctx context.Context, event BillSavedEvent) error {
    if p.Logger != nil {
        p.Logger.Debug("Bill event not published, no brokers configured",
            zap.String("bill_number", event.BillNumber))
    }
    return nil
}

func (NopPublisher) Close() error { return nil }
