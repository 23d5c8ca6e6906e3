package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/streadway/amqp"
)

var (
	// ErrProducerClosed completes sends that were still unconfirmed when the producer closed.
	ErrProducerClosed = errors.New("producer is closed")
	// ErrNacked completes a send the broker refused to take responsibility for.
	ErrNacked = errors.New("broker nacked the message")
)

// KeyHeader carries the message key next to the correlation id.
const KeyHeader = "x-message-key"

// Channel is the part of *amqp.Channel the producer needs.
type Channel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Message is a keyed payload to send.
type Message struct {
	ID          string
	ContentType string
	Body        []byte
}

// SendHandle completes once the broker confirms or fails a sent message.
type SendHandle struct {
	topic string
	key   string
	done  chan struct{}
	once  sync.Once
	err   error
}

func newSendHandle(topic, key string) *SendHandle {
	return &SendHandle{
		topic: topic,
		key:   key,
		done:  make(chan struct{}),
	}
}

// Done is closed when the outcome is known.
func (h *SendHandle) Done() <-chan struct{} {
	return h.done
}

// Err returns the outcome. It is nil until Done is closed and after a confirmed delivery.
func (h *SendHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the outcome is known or ctx ends.
func (h *SendHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *SendHandle) complete(err error) {
	h.once.Do(func() {
		if err != nil {
			h.err = &errs.DeliveryError{Topic: h.topic, Key: h.key, Err: err}
		}
		close(h.done)
	})
}

// Producer publishes on a single confirm-mode channel. Publishes are serialized,
// so messages sharing a key reach their queue in send order.
//
// publishMu is held across Channel.Publish and guards lastTag; mu guards only the
// pending map. Confirmations never wait for an in-flight Publish, which would
// otherwise block the channel's reader once the confirm buffer fills.
type Producer struct {
	ch       Channel
	exchange string

	publishMu sync.Mutex
	lastTag   uint64

	mu      sync.Mutex
	pending map[uint64]*SendHandle
	closed  bool

	closeOnce sync.Once
	stopped   chan struct{}
}

// NewProducer puts the channel into confirm mode and starts tracking confirmations.
func NewProducer(ch Channel, exchange string) (*Producer, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to put channel into confirm mode: %w", err)
	}

	p := &Producer{
		ch:       ch,
		exchange: exchange,
		pending:  make(map[uint64]*SendHandle),
		stopped:  make(chan struct{}),
	}

	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 256))
	closes := ch.NotifyClose(make(chan *amqp.Error, 1))

	go p.listen(confirms, closes)

	return p, nil
}

// Send publishes msg under topic. A rejection before the broker accepted the
// message is returned as *errs.ProducerSubmissionError; later failures complete
// the handle with *errs.DeliveryError.
func (p *Producer) Send(topic, key string, msg Message) (*SendHandle, error) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	tag := p.lastTag + 1
	handle := newSendHandle(topic, key)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil, &errs.ProducerSubmissionError{Topic: topic, Key: key, Err: ErrProducerClosed}
	}
	p.pending[tag] = handle
	p.mu.Unlock()

	err := p.ch.Publish(p.exchange, topic, false, false, amqp.Publishing{
		Headers:       amqp.Table{KeyHeader: key},
		ContentType:   msg.ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: key,
		MessageId:     msg.ID,
		Timestamp:     time.Now().UTC(),
		Body:          msg.Body,
	})
	if err != nil {
		p.mu.Lock()
		delete(p.pending, tag)
		p.mu.Unlock()

		return nil, &errs.ProducerSubmissionError{Topic: topic, Key: key, Err: err}
	}

	p.lastTag = tag

	return handle, nil
}

// Close fails every unconfirmed send and closes the channel. It is safe to call
// more than once.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.failPending(ErrProducerClosed)

		if cerr := p.ch.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			err = fmt.Errorf("failed to close producer channel: %w", cerr)
		}
	})

	return err
}

// Stopped is closed once the producer can no longer confirm anything.
func (p *Producer) Stopped() <-chan struct{} {
	return p.stopped
}

func (p *Producer) listen(confirms <-chan amqp.Confirmation, closes <-chan *amqp.Error) {
	defer close(p.stopped)

	for {
		select {
		case c, ok := <-confirms:
			if !ok {
				p.failPending(ErrProducerClosed)

				return
			}
			p.confirm(c)
		case amqpErr, ok := <-closes:
			if ok && amqpErr != nil {
				slog.Error("Producer channel closed", "error", amqpErr)
				p.failPending(amqpErr)
			} else {
				p.failPending(ErrProducerClosed)
			}

			return
		}
	}
}

func (p *Producer) confirm(c amqp.Confirmation) {
	p.mu.Lock()
	handle, ok := p.pending[c.DeliveryTag]
	delete(p.pending, c.DeliveryTag)
	p.mu.Unlock()

	if !ok {
		return
	}

	if c.Ack {
		handle.complete(nil)
	} else {
		handle.complete(ErrNacked)
	}
}

func (p *Producer) failPending(err error) {
	p.mu.Lock()
	p.closed = true
	pending := p.pending
	p.pending = make(map[uint64]*SendHandle)
	p.mu.Unlock()

	for _, handle := range pending {
		handle.complete(err)
	}
}
