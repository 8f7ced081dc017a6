package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StartConsumer connects to RabbitMQ, declares the three event queues and
// drains them, writing each event as a structured log line.  Actual
// notification delivery lives outside this service; the consumer is the
// boundary where events leave the engine.  It runs a reconnect loop with
// capped backoff and never returns under normal operation, so callers
// run it on its own goroutine.
func StartConsumer(url string, log *zap.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("event consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, log); err != nil {
			log.Warn("event consume loop ended, reconnecting", zap.Error(err))
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}

	queues := []string{QueueBookingConfirmed, QueueBookingCancelled, QueueAttendanceClosed}
	deliveries := make(chan amqp.Delivery)
	for _, name := range queues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(name string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				d.RoutingKey = name
				deliveries <- d
			}
		}(name, msgs)
	}

	closed := make(chan *amqp.Error, 1)
	conn.NotifyClose(closed)
	for {
		select {
		case d := <-deliveries:
			if err := handleDelivery(d, log); err != nil {
				log.Warn("event handling failed", zap.String("queue", d.RoutingKey), zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		case err := <-closed:
			if err != nil {
				return err
			}
			return errors.New("connection closed")
		}
	}
}

func handleDelivery(d amqp.Delivery, log *zap.Logger) error {
	switch d.RoutingKey {
	case QueueBookingConfirmed:
		var ev BookingConfirmedEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		log.Info("booking confirmed",
			zap.String("event_id", ev.EventID),
			zap.Uint64("booking_id", ev.BookingID),
			zap.Uint64("worker_id", ev.WorkerID),
			zap.Uint64("site_id", ev.SiteID),
			zap.String("start_at", ev.StartAt),
			zap.String("end_at", ev.EndAt),
			zap.String("rate", ev.Rate),
			zap.String("rate_tier", ev.RateTier))
	case QueueBookingCancelled:
		var ev BookingCancelledEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		log.Info("booking cancelled",
			zap.String("event_id", ev.EventID),
			zap.Uint64("booking_id", ev.BookingID),
			zap.Uint64("worker_id", ev.WorkerID),
			zap.String("reason", ev.Reason))
	case QueueAttendanceClosed:
		var ev AttendanceClosedEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		log.Info("attendance closed",
			zap.String("event_id", ev.EventID),
			zap.Uint64("session_id", ev.SessionID),
			zap.Uint64("worker_id", ev.WorkerID),
			zap.String("total_hours", ev.TotalHours),
			zap.String("total_payment", ev.TotalPayment),
			zap.Bool("late", ev.Late),
			zap.Bool("forced_close", ev.ForcedClose))
	default:
		return fmt.Errorf("unknown queue %q", d.RoutingKey)
	}
	return nil
}
