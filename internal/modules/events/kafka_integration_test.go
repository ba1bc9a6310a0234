//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	ctx := context.Background()

	kafkaContainer, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})
	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)

	p := NewKafkaPublisher(brokers, "storefront.orders.test")
	defer p.Close()

	ev := Event{Type: OrderCancelled, OrderID: "o-9", Reason: "payment_failed"}
	require.Eventually(t, func() bool {
		return p.Publish(ctx, ev) == nil
	}, 30*time.Second, time.Second)

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: "storefront.orders.test", Partition: 0})
	defer r.Close()

	readCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	msg, err := r.ReadMessage(readCtx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "o-9", got.OrderID)
	assert.Equal(t, "payment_failed", got.Reason)
}
