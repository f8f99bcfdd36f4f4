package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/parambridge-core/internal/param"
	"github.com/nerrad567/parambridge-core/internal/schema"
)

// fakeBroker records published messages.
type fakeBroker struct {
	connected bool
	err       error

	topics   []string
	payloads [][]byte
	retained []bool
	qos      []byte
}

func (f *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	f.retained = append(f.retained, retained)
	f.qos = append(f.qos, qos)
	return nil
}

func (f *fakeBroker) IsConnected() bool { return f.connected }

func TestPublisher_ParameterEvent(t *testing.T) {
	broker := &fakeBroker{connected: true}
	pub := NewPublisher(broker, "parambridge", 1)

	pub.ParameterEvent(param.Event{
		Kind: param.EventUpdated,
		Parameter: param.Parameter{
			EndpointID: "fp",
			Path:       "config/exposure",
			Type:       schema.TypeFloat,
			Writable:   true,
			Value:      0.2,
			Status:     param.StatusLive,
			Generation: 7,
		},
	})

	if len(broker.topics) != 1 {
		t.Fatalf("published %d messages, want 1", len(broker.topics))
	}
	if broker.topics[0] != "parambridge/event/fp/config/exposure" {
		t.Errorf("topic = %q", broker.topics[0])
	}
	if !broker.retained[0] {
		t.Error("event messages should be retained")
	}
	if broker.qos[0] != 1 {
		t.Errorf("qos = %d, want configured QoS", broker.qos[0])
	}

	var msg map[string]any
	if err := json.Unmarshal(broker.payloads[0], &msg); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if msg["kind"] != "updated" || msg["value"] != 0.2 || msg["generation"] != float64(7) {
		t.Errorf("payload = %v", msg)
	}
}

func TestPublisher_SkipsWhenDisconnected(t *testing.T) {
	broker := &fakeBroker{connected: false}
	pub := NewPublisher(broker, "parambridge", 1)

	pub.ParameterEvent(param.Event{Kind: param.EventUpdated})
	if len(broker.topics) != 0 {
		t.Errorf("published %d messages while disconnected", len(broker.topics))
	}
}

func TestPublisher_PublishErrorDoesNotPropagate(t *testing.T) {
	broker := &fakeBroker{connected: true, err: errors.New("broker down")}
	pub := NewPublisher(broker, "parambridge", 1)

	// Must not panic and must not return anything to the caller.
	pub.ParameterEvent(param.Event{Kind: param.EventUpdated})
}

func TestPublisher_PublishHealth(t *testing.T) {
	broker := &fakeBroker{connected: true}
	pub := NewPublisher(broker, "parambridge", 1)

	if err := pub.PublishHealth("online", "1.2.3", 2); err != nil {
		t.Fatalf("PublishHealth() error = %v", err)
	}
	if broker.topics[0] != "parambridge/health" {
		t.Errorf("topic = %q", broker.topics[0])
	}

	var msg HealthMessage
	if err := json.Unmarshal(broker.payloads[0], &msg); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if msg.Status != "online" || msg.ClientID != "parambridge" || msg.Endpoints != 2 {
		t.Errorf("message = %+v", msg)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}
	if got := topics.ParameterEvent("fp", "status/hdf/frames"); got != "parambridge/event/fp/status/hdf/frames" {
		t.Errorf("ParameterEvent() = %q", got)
	}
	if got := topics.Health(); got != "parambridge/health" {
		t.Errorf("Health() = %q", got)
	}
}
