package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/MrEthical07/accesshub"
)

// TopicOTPRequested is the default topic for OTP delivery events.
const TopicOTPRequested = "otp.requested"

// EventOTPRequested is the event_type header and envelope field.
const EventOTPRequested = "otp.requested"

// Event is the envelope written to Kafka.
type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// OTPRequested is the payload of an otp.requested event.
type OTPRequested struct {
	Address string `json:"address"`
	Code    string `json:"code"`
	Channel string `json:"channel"`
}

// MessageWriter is the subset of *kafka.Writer the mailer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds producer settings for [NewKafkaMailer].
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Source       string
	BatchTimeout time.Duration
}

// KafkaMailer publishes OTP delivery requests to Kafka.
type KafkaMailer struct {
	writer MessageWriter
	topic  string
	source string
	logger *slog.Logger
	now    func() time.Time
}

var _ accesshub.Mailer = (*KafkaMailer)(nil)

// NewKafkaMailer creates a synchronous producer; SendOTP returns only after
// every in-sync replica has acknowledged the event.
func NewKafkaMailer(cfg KafkaConfig, logger *slog.Logger) *KafkaMailer {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return NewKafkaMailerWithWriter(w, cfg.Topic, cfg.Source, logger)
}

// NewKafkaMailerWithWriter builds a mailer around an existing writer.
func NewKafkaMailerWithWriter(w MessageWriter, topic, source string, logger *slog.Logger) *KafkaMailer {
	if topic == "" {
		topic = TopicOTPRequested
	}
	if source == "" {
		source = "accesshub"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaMailer{writer: w, topic: topic, source: source, logger: logger, now: time.Now}
}

// SendOTP publishes the code keyed by address, so all codes for one
// recipient land on the same partition in issue order.
func (m *KafkaMailer) SendOTP(ctx context.Context, address, code string) error {
	data, err := json.Marshal(OTPRequested{Address: address, Code: code, Channel: "email"})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	event := Event{
		EventID:   uuid.NewString(),
		EventType: EventOTPRequested,
		Version:   1,
		Timestamp: m.now().UTC(),
		Source:    m.source,
		Data:      data,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: m.topic,
		Key:   []byte(address),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOTPRequested)},
			{Key: "source", Value: []byte(m.source)},
		},
	}

	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish otp event",
			slog.String("topic", m.topic),
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish event to %s: %w", m.topic, err)
	}

	m.logger.DebugContext(ctx, "otp event published",
		slog.String("topic", m.topic),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}
