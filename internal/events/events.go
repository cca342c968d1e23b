// Package events publishes domain events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source identifies this service in published envelopes.
const Source = "hazardhub-api"

// Event types.
const (
	TypeRouteSelected = "route.selected"
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("publisher closed")

// Envelope is the CloudEvents-style wrapper every event is published in.
type Envelope struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Subject     string          `json:"subject,omitempty"`
	Time        time.Time       `json:"time"`
	ContentType string          `json:"datacontenttype"`
	Data        json.RawMessage `json:"data"`
}

// NewEnvelope wraps data in an envelope. The subject is used as the partition
// or ordering key by publishers that support one.
func NewEnvelope(eventType, subject string, data any) (*Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	return &Envelope{
		ID:          uuid.New().String(),
		Source:      Source,
		Type:        eventType,
		Subject:     subject,
		Time:        time.Now().UTC(),
		ContentType: "application/json",
		Data:        payload,
	}, nil
}

// DecodeData unmarshals the envelope's data into v.
func (e *Envelope) DecodeData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher delivers envelopes to a broker.
type Publisher interface {
	// Publish blocks until the broker has accepted the event or ctx is done.
	Publish(ctx context.Context, e *Envelope) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, *Envelope) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// RouteSelected is the payload of a route.selected event.
type RouteSelected struct {
	RouteID     string    `json:"routeId"`
	TripID      string    `json:"tripId"`
	SafetyScore float64   `json:"safetyScore"`
	SelectedAt  time.Time `json:"selectedAt"`
}
