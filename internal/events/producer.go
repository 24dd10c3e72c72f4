package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("event producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes envelopes to Kafka from a single background loop.
// Publish only enqueues; write failures are logged by the loop.
//
// Publishers hold mu for reading while they enqueue. The loop takes it for
// writing and sets closed before its final drain, so an accepted event is
// always written.
type Producer struct {
	w       messageWriter
	inbox   chan kafka.Message
	done    chan struct{}
	closeCh chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	logger  *zap.Logger
}

func NewProducer(brokers []string, buf int, logger *zap.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, buf, logger)
}

func newProducer(w messageWriter, buf int, logger *zap.Logger) *Producer {
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
		closeCh: make(chan struct{}),
		logger:  logger,
	}
}

// Start runs the write loop until ctx is cancelled or Close is called, then
// flushes whatever is still queued.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-ctx.Done():
				p.Close()
				p.shutdown()
				return
			case <-p.done:
				p.shutdown()
				return
			}
		}
	}()
}

// shutdown waits for in-flight publishers, refuses new ones and flushes the
// queue. done must already be closed so blocked publishers can leave.
func (p *Producer) shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.drain()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.logger.Warn("Failed to close kafka writer", zap.Error(err))
			}
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("topic", m.Topic),
			zap.String("key", string(m.Key)),
			zap.Error(err),
		)
	}
}

func (p *Producer) Publish(ctx context.Context, ev Envelope) error {
	topic, ok := TopicFor(ev.EventType)
	if !ok {
		return fmt.Errorf("publish: unknown event type %q", ev.EventType)
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish: encode envelope: %w", err)
	}

	m := kafka.Message{
		Topic: topic,
		Key:   []byte(ev.CorrelationID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(ev.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	select {
	case p.inbox <- m:
		return nil
	case <-p.done:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events; the loop flushes the queue and exits.
func (p *Producer) Close() {
	p.once.Do(func() { close(p.done) })
}

// WaitClosed blocks until the loop has flushed and closed the writer.
func (p *Producer) WaitClosed() { <-p.closeCh }
