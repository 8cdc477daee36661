package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"homehelper/internal/config"
	"homehelper/internal/logging"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	forwardBuffer  = 256
	forwardTimeout = 10 * time.Second
)

// MessageWriter is the part of kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a synchronous writer bound to the configured topic.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaForwarder copies lifecycle events to a Kafka topic. Publishing never
// blocks the bus: events are queued and written by Run; a full queue drops.
type KafkaForwarder struct {
	writer MessageWriter
	logger *zerolog.Logger
	queue  chan kafka.Message

	mu     sync.RWMutex
	closed bool
}

func NewKafkaForwarder(writer MessageWriter, logger *zerolog.Logger) *KafkaForwarder {
	return &KafkaForwarder{
		writer: writer,
		logger: logging.Component(logger, "kafka_forwarder"),
		queue:  make(chan kafka.Message, forwardBuffer),
	}
}

// Attach subscribes the forwarder to every lifecycle event on bus.
func (f *KafkaForwarder) Attach(bus *EventBus) {
	bus.SubscribeMany(LifecycleEvents, f.Enqueue)
}

// Enqueue converts an event into a message keyed by booking id.
func (f *KafkaForwarder) Enqueue(event *Event) error {
	var payload struct {
		BookingID string `json:"booking_id"`
	}
	_ = json.Unmarshal(event.Payload, &payload)

	msg := kafka.Message{
		Key:   []byte(payload.BookingID),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return errors.New("kafka forwarder closed")
	}

	select {
	case f.queue <- msg:
		return nil
	default:
		f.logger.Warn().Str("event", event.Type).Msg("kafka queue full, event dropped")
		return errors.New("kafka queue full")
	}
}

// Run writes queued messages until ctx is done or Close drains the queue.
func (f *KafkaForwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.queue:
			if !ok {
				return
			}
			f.write(ctx, msg)
		}
	}
}

func (f *KafkaForwarder) write(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.logger.Error().Err(err).Str("key", string(msg.Key)).Msg("failed to write event to Kafka")
		return
	}
	f.logger.Debug().Str("key", string(msg.Key)).Msg("event forwarded")
}

// Close stops accepting events, flushes what is queued and closes the writer.
// Call it after Run has returned.
func (f *KafkaForwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	for msg := range f.queue {
		f.write(context.Background(), msg)
	}
	return f.writer.Close()
}
