// Package events publishes booking events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const (
	BookingConfirmedQueue = "booking.confirmed"
	DefaultDialTimeout    = 3 * time.Second
)

type BookingConfirmedEvent struct {
	BookingID     int                  `json:"bookingId"`
	BookingCode   string               `json:"bookingCode"`
	UserID        int                  `json:"userId"`
	ShowtimeID    int                  `json:"showtimeId"`
	TheaterID     int                  `json:"theaterId"`
	MovieTitle    string               `json:"movieTitle"`
	StartsAt      time.Time            `json:"startsAt"`
	SeatNumbers   []string             `json:"seatNumbers"`
	Total         decimal.Decimal      `json:"total"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	ConfirmedAt   time.Time            `json:"confirmedAt"`
}

func NewBookingConfirmedEvent(b domain.Booking) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingID:     b.ID,
		BookingCode:   b.Code,
		UserID:        b.UserID,
		ShowtimeID:    b.ShowtimeID,
		TheaterID:     b.TheaterID,
		MovieTitle:    b.MovieTitle,
		StartsAt:      b.StartsAt,
		SeatNumbers:   b.SeatNumbers(),
		Total:         b.Total,
		PaymentMethod: b.PaymentMethod,
		PaymentStatus: b.PaymentStatus,
		ConfirmedAt:   b.CreatedAt,
	}
}

// Channel is the subset of *amqp.Channel used by the publisher.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Dialer opens a channel with the queue already declared.
type Dialer func() (Channel, io.Closer, error)

// Publisher sends booking.confirmed events. It keeps one connection open and
// reconnects on the next publish after the broker drops it. Callers waiting for the
// connection give up when their context is done.
type Publisher struct {
	sem    chan struct{}
	dial   Dialer
	ch     Channel
	conn   io.Closer
	logger *slog.Logger
}

// DialURL returns a Dialer for a RabbitMQ URL. The timeout covers the TCP connect and
// the AMQP handshake.
func DialURL(url string, timeout time.Duration) Dialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	return func() (Channel, io.Closer, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(timeout),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}

		return ch, conn, nil
	}
}

func NewPublisher(dial Dialer, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Publisher{sem: make(chan struct{}, 1), dial: dial, logger: logger}
}

// Record implements domain.HistoryRecorder.
func (p *Publisher) Record(ctx context.Context, booking domain.Booking) error {
	body, err := json.Marshal(NewBookingConfirmedEvent(booking))
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to publish booking event: %w", ctx.Err())
	}
	defer func() { <-p.sem }()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",
		BookingConfirmedQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    booking.Code,
			Body:         body,
		})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("failed to publish booking event: %w", err)
	}

	p.logger.Debug("booking event published", "booking_code", booking.Code)

	return nil
}

func (p *Publisher) channelLocked() (Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	p.resetLocked()

	ch, conn, err := p.dial()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("failed to declare %s queue: %w", BookingConfirmedQueue, err)
	}

	p.ch, p.conn = ch, conn

	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}

	p.ch, p.conn = nil, nil
}

func (p *Publisher) Close() error {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	p.resetLocked()

	return nil
}
