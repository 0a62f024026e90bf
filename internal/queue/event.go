// Package queue carries reservation events over RabbitMQ: a publisher that
// mirrors every event onto a fanout exchange, and an audit consumer that
// appends the events it receives to a log file.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/spacebook/reservation-core/internal/model"
)

const (
	DefaultExchange   = "reservation.events"
	DefaultAuditQueue = "reservation.events.audit"
	DefaultAuditLog   = "logs/reservation-events.log"
)

// Envelope is an event as read back from the broker.  Data stays raw so the
// consumer does not depend on the payload type of each event name.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"event"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// encode turns ev into a persistent JSON publishing.
func encode(ev model.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Name,
		Timestamp:    ev.OccurredAt.UTC(),
		Body:         body,
	}, nil
}

func decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal: %w", err)
	}
	if env.Name == "" {
		return Envelope{}, fmt.Errorf("event without name")
	}
	return env, nil
}

// auditLine renders env as a single human readable line.
func auditLine(env Envelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | id=%s", env.OccurredAt.UTC().Format(time.RFC3339), env.Name, env.ID)

	switch env.Name {
	case model.EventReservationCreated, model.EventReservationUpdated:
		var c struct {
			ReservationID uint64 `json:"reservationId"`
			OldState      string `json:"oldState"`
			NewState      string `json:"newState"`
			Actor         string `json:"actor"`
		}
		if json.Unmarshal(env.Data, &c) == nil {
			fmt.Fprintf(&b, " | reservation_id=%d", c.ReservationID)
			if c.OldState != "" {
				fmt.Fprintf(&b, " | from=%s", c.OldState)
			}
			fmt.Fprintf(&b, " | to=%s | actor=%s", c.NewState, c.Actor)
		}
	case model.EventWithdrawalCreated:
		var w struct {
			Payment struct {
				ID               uint64 `json:"id"`
				UserID           uint64 `json:"userId"`
				WithdrawAmount   string `json:"withdrawAmount"`
				ReservationCount int    `json:"reservationCount"`
			} `json:"payment"`
		}
		if json.Unmarshal(env.Data, &w) == nil {
			fmt.Fprintf(&b, " | payment_id=%d | user_id=%d | amount=%s | reservations=%d",
				w.Payment.ID, w.Payment.UserID, w.Payment.WithdrawAmount, w.Payment.ReservationCount)
		}
	}
	b.WriteByte('\n')
	return b.String()
}
