package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type sink struct{ msgs []kafka.Message }

func (s *sink) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func TestBrokers(t *testing.T) {
	require.Equal(t, []string{"a:9092", "b:9092"}, Brokers(" a:9092, ,b:9092"))
	require.Empty(t, Brokers(""))
}

func TestNewWriterUsesKeyHashing(t *testing.T) {
	w := NewWriter("a:9092,b:9092", "escrow_events")
	require.Equal(t, "escrow_events", w.Topic)
	require.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestWriteJSON(t *testing.T) {
	s := &sink{}
	require.NoError(t, WriteJSON(context.Background(), s, "k1", []byte(`{"a":1}`)))
	require.Len(t, s.msgs, 1)
	require.Equal(t, "k1", string(s.msgs[0].Key))
	require.False(t, s.msgs[0].Time.IsZero())
}
