package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spacebook/reservation-core/internal/metrics"
	"github.com/spacebook/reservation-core/internal/model"
)

const publishBuffer = 256

// Publisher mirrors events onto a durable fanout exchange, routed by event
// name.  Publish only enqueues; a background goroutine owns the connection
// and redials with backoff when the broker goes away.  Events that arrive
// while the buffer is full are dropped.
type Publisher struct {
	url      string
	exchange string
	logger   *zap.Logger
	events   chan model.Event

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewPublisher(url, exchange string, logger *zap.Logger) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
		logger:   logger,
		events:   make(chan model.Event, publishBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues ev without blocking.
func (p *Publisher) Publish(_ context.Context, ev model.Event) {
	select {
	case <-p.stop:
		return
	default:
	}
	select {
	case p.events <- ev:
	default:
		metrics.NotifierDropped.WithLabelValues("amqp").Inc()
		p.logger.Warn("publish buffer full, event dropped", zap.String("event", ev.Name), zap.String("id", ev.ID))
	}
}

// Close stops the publisher after flushing what can be sent within the
// context deadline.
func (p *Publisher) Close(ctx context.Context) {
	p.closeOnce.Do(func() { close(p.stop) })
	select {
	case <-p.done:
	case <-ctx.Done():
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	backoff := time.Second
	for {
		conn, ch, err := p.dial()
		if err != nil {
			p.logger.Warn("broker unavailable", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-p.stop:
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		stopped := p.pump(ch, conn.NotifyClose(make(chan *amqp.Error, 1)))
		_ = ch.Close()
		_ = conn.Close()
		if stopped {
			return
		}
	}
}

func (p *Publisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	p.logger.Info("publisher connected", zap.String("exchange", p.exchange))
	return conn, ch, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// pump sends queued events until the connection drops (false) or the
// publisher is closed (true).  On close it drains what is already queued.
func (p *Publisher) pump(ch *amqp.Channel, closed <-chan *amqp.Error) bool {
	for {
		select {
		case err := <-closed:
			p.logger.Warn("broker connection closed", zap.Error(err))
			return false
		case ev := <-p.events:
			if err := p.send(ch, ev); err != nil {
				return false
			}
		case <-p.stop:
			for {
				select {
				case ev := <-p.events:
					if err := p.send(ch, ev); err != nil {
						return true
					}
				default:
					return true
				}
			}
		}
	}
}

func (p *Publisher) send(ch *amqp.Channel, ev model.Event) error {
	msg, err := encode(ev)
	if err != nil {
		p.logger.Error("encode event", zap.String("event", ev.Name), zap.Error(err))
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.PublishWithContext(ctx, p.exchange, ev.Name, false, false, msg); err != nil {
		metrics.NotifierDropped.WithLabelValues("amqp").Inc()
		p.logger.Warn("publish failed", zap.String("event", ev.Name), zap.Error(err))
		return err
	}
	return nil
}
