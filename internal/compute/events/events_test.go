package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

type mockProducer struct {
	pulsar.Producer
	sendAsyncErr error
	flushed      bool
	closed       bool

	mu       sync.Mutex
	messages []*pulsar.ProducerMessage
}

func (p *mockProducer) SendAsync(_ context.Context, msg *pulsar.ProducerMessage, f func(pulsar.MessageID, *pulsar.ProducerMessage, error)) {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	go f(nil, msg, p.sendAsyncErr)
}

func (p *mockProducer) Flush() error {
	p.flushed = true
	return nil
}

func (p *mockProducer) Close() {
	p.closed = true
}

func TestPulsarPublisher_Publish(t *testing.T) {
	producer := &mockProducer{}
	publisher := NewPulsarPublisher(producer)

	event := Event{
		JobId:    uuid.New(),
		Node:     "node-1",
		State:    job.Failed,
		Priority: 4,
		Time:     time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC),
		Error:    "boom",
	}
	publisher.Publish(armadacontext.Background(), event)
	publisher.Close()

	require.Len(t, producer.messages, 1)
	msg := producer.messages[0]
	assert.Equal(t, event.JobId.String(), msg.Key)
	assert.Equal(t, map[string]string{"state": "FAILED", "node": "node-1"}, msg.Properties)
	assert.Equal(t, event.Time, msg.EventTime)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, event.JobId, decoded.JobId)
	assert.Equal(t, job.Failed, decoded.State)
	assert.Equal(t, "boom", decoded.Error)

	assert.True(t, producer.flushed)
	assert.True(t, producer.closed)
}

func TestPulsarPublisher_SendFailureDoesNotPanic(t *testing.T) {
	producer := &mockProducer{sendAsyncErr: errors.New("broker unavailable")}
	publisher := NewPulsarPublisher(producer)
	publisher.Publish(armadacontext.Background(), Event{JobId: uuid.New(), State: job.Queued})
	assert.Len(t, producer.messages, 1)
}
