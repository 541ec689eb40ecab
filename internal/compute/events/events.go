package events

import (
	"encoding/json"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/logging"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

const (
	stateProperty = "state"
	nodeProperty  = "node"
)

// Event records a job entering a new lifecycle state.
type Event struct {
	JobId    uuid.UUID `json:"jobId"`
	Node     string    `json:"node"`
	State    job.State `json:"state"`
	Priority int64     `json:"priority"`
	Time     time.Time `json:"time"`
	// Set for FAILED events.
	Error string `json:"error,omitempty"`
}

// Publisher publishes job lifecycle events. Publish must not block on delivery.
type Publisher interface {
	Publish(ctx *armadacontext.Context, event Event)
	Close()
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(*armadacontext.Context, Event) {}

func (NoopPublisher) Close() {}

// PulsarPublisher publishes events to a pulsar topic, keyed by job id so events of one job stay ordered.
type PulsarPublisher struct {
	producer pulsar.Producer
}

func NewPulsarPublisher(producer pulsar.Producer) *PulsarPublisher {
	return &PulsarPublisher{producer: producer}
}

func (p *PulsarPublisher) Publish(ctx *armadacontext.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("failed to marshal job event")
		return
	}
	log := ctx.Log
	p.producer.SendAsync(
		ctx,
		&pulsar.ProducerMessage{
			Payload: payload,
			Key:     event.JobId.String(),
			Properties: map[string]string{
				stateProperty: event.State.String(),
				nodeProperty:  event.Node,
			},
			EventTime: event.Time,
		},
		func(_ pulsar.MessageID, _ *pulsar.ProducerMessage, err error) {
			if err != nil {
				log.WithError(err).WithField("jobId", event.JobId).Warn("failed to publish job event")
			}
		},
	)
}

// Close flushes pending events and closes the producer.
func (p *PulsarPublisher) Close() {
	if err := p.producer.Flush(); err != nil {
		logging.WithStacktrace(armadacontext.Background().Log, err).Warn("failed to flush job events")
	}
	p.producer.Close()
}
