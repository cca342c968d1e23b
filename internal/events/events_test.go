package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestNewEnvelope(t *testing.T) {
	selectedAt := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	env, err := NewEnvelope(TypeRouteSelected, "trip_1", RouteSelected{
		RouteID:     "rte_1",
		TripID:      "trip_1",
		SafetyScore: 0.8875,
		SelectedAt:  selectedAt,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, Source, env.Source)
	assert.Equal(t, TypeRouteSelected, env.Type)
	assert.Equal(t, "trip_1", env.Subject)
	assert.Equal(t, "application/json", env.ContentType)
	assert.WithinDuration(t, time.Now(), env.Time, time.Minute)

	var got RouteSelected
	require.NoError(t, env.DecodeData(&got))
	assert.Equal(t, "rte_1", got.RouteID)
	assert.Equal(t, 0.8875, got.SafetyScore)
	assert.True(t, selectedAt.Equal(got.SelectedAt))
}

func TestNewEnvelope_UnencodableData(t *testing.T) {
	_, err := NewEnvelope(TypeRouteSelected, "trip_1", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "route-events", zerolog.Nop())

	env, err := NewEnvelope(TypeRouteSelected, "trip_42", RouteSelected{RouteID: "rte_9", TripID: "trip_42"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), env))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "trip_42", string(msg.Key), "messages are keyed by trip")

	var decoded Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, TypeRouteSelected, decoded.Type)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, TypeRouteSelected, headers["ce_type"])
	assert.Equal(t, env.ID, headers["ce_id"])
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newKafkaPublisher(w, "route-events", zerolog.Nop())

	env, err := NewEnvelope(TypeRouteSelected, "trip_1", RouteSelected{})
	require.NoError(t, err)

	err = p.Publish(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route-events")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "route-events", zerolog.Nop())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	env, err := NewEnvelope(TypeRouteSelected, "trip_1", RouteSelected{})
	require.NoError(t, err)
	assert.ErrorIs(t, p.Publish(context.Background(), env), ErrClosed)
	assert.Empty(t, w.msgs)
}

func TestNewKafkaPublisher_RequiresConfig(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "route-events"})
	assert.Error(t, err)

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "route-events"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), &Envelope{}))
	assert.NoError(t, p.Close())
}
