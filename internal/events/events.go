// Package events publishes booking lifecycle events to MQTT.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/models"
)

// Topics.
const (
	TopicBookingCreated = "feresegna/bookings/created"
	TopicBookingCleared = "feresegna/bookings/cleared"
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// BookingEvent is the payload of every booking topic.
type BookingEvent struct {
	Type       string          `json:"type"`
	ClientID   string          `json:"client_id"`
	UserID     string          `json:"user_id,omitempty"`
	BookingID  string          `json:"booking_id,omitempty"`
	Booking    *models.Booking `json:"booking,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher emits booking events.
type Publisher interface {
	BookingCreated(ctx context.Context, clientID, userID string, booking models.Booking) error
	BookingCleared(ctx context.Context, clientID, userID, bookingID string) error
	Close()
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) BookingCreated(context.Context, string, string, models.Booking) error { return nil }
func (Nop) BookingCleared(context.Context, string, string, string) error         { return nil }
func (Nop) Close()                                                               {}

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes events with QoS 1.
type MQTTPublisher struct {
	client  mqttClient
	timeout time.Duration
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewMQTTPublisher connects to broker (for example tcp://mqtt:1883).
func NewMQTTPublisher(broker, clientID string, logger logrus.FieldLogger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WithError(err).Warn("mqtt connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	logger.WithField("broker", broker).Info("connected to mqtt broker")
	return newMQTTPublisher(client, logger), nil
}

func newMQTTPublisher(client mqttClient, logger logrus.FieldLogger) *MQTTPublisher {
	return &MQTTPublisher{client: client, timeout: 5 * time.Second, logger: logger, now: time.Now}
}

// BookingCreated publishes a created draft booking.
func (p *MQTTPublisher) BookingCreated(ctx context.Context, clientID, userID string, booking models.Booking) error {
	return p.publish(ctx, TopicBookingCreated, BookingEvent{
		Type:      "booking.created",
		ClientID:  clientID,
		UserID:    userID,
		BookingID: booking.ID,
		Booking:   &booking,
	})
}

// BookingCleared publishes that a client discarded its selection. bookingID
// is empty when no draft had been created.
func (p *MQTTPublisher) BookingCleared(ctx context.Context, clientID, userID, bookingID string) error {
	return p.publish(ctx, TopicBookingCleared, BookingEvent{
		Type:      "booking.cleared",
		ClientID:  clientID,
		UserID:    userID,
		BookingID: bookingID,
	})
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, event BookingEvent) error {
	event.OccurredAt = p.now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	token := p.client.Publish(topic, 1, false, payload)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":      topic,
		"booking_id": event.BookingID,
		"client_id":  event.ClientID,
	}).Debug("booking event published")
	return nil
}

// Close disconnects from the broker after in-flight messages drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
