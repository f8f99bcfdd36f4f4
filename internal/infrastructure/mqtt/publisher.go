package mqtt

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/parambridge-core/internal/param"
)

// Broker is the publishing surface the Publisher needs; implemented by
// Client and by test doubles.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// eventMessage is the wire shape of one parameter event.
type eventMessage struct {
	Kind       string    `json:"kind"`
	EndpointID string    `json:"endpoint_id"`
	Path       string    `json:"path"`
	Type       string    `json:"type"`
	Writable   bool      `json:"writable"`
	Value      any       `json:"value"`
	Units      string    `json:"units,omitempty"`
	Status     string    `json:"status"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
}

// HealthMessage is the wire shape of the bridge health topic.
type HealthMessage struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Version   string    `json:"version,omitempty"`
	Endpoints int       `json:"endpoints"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes parameter events and bridge health to MQTT. It
// implements the sync engine's event sink interface; publish failures are
// logged and dropped, never propagated back into the engine.
type Publisher struct {
	broker   Broker
	clientID string
	qos      byte
	logger   Logger
}

// NewPublisher creates a publisher over an established broker connection.
func NewPublisher(broker Broker, clientID string, qos byte) *Publisher {
	return &Publisher{broker: broker, clientID: clientID, qos: qos}
}

// SetLogger sets the logger for publish failures.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// ParameterEvent publishes one parameter transition, retained, so a new
// subscriber immediately sees the last state of every parameter topic.
func (p *Publisher) ParameterEvent(ev param.Event) {
	if !p.broker.IsConnected() {
		return
	}

	msg := eventMessage{
		Kind:       string(ev.Kind),
		EndpointID: ev.Parameter.EndpointID,
		Path:       ev.Parameter.Path,
		Type:       string(ev.Parameter.Type),
		Writable:   ev.Parameter.Writable,
		Value:      ev.Parameter.Value,
		Units:      ev.Parameter.Units,
		Status:     string(ev.Parameter.Status),
		Generation: ev.Parameter.Generation,
		Timestamp:  time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.logError("encoding parameter event", err)
		return
	}

	topic := Topics{}.ParameterEvent(ev.Parameter.EndpointID, ev.Parameter.Path)
	if err := p.broker.Publish(topic, payload, p.qos, true); err != nil {
		p.logError("publishing parameter event", err)
	}
}

// PublishHealth publishes a health status message, retained on the health
// topic.
func (p *Publisher) PublishHealth(status, version string, endpoints int) error {
	payload, err := json.Marshal(HealthMessage{
		Status:    status,
		ClientID:  p.clientID,
		Version:   version,
		Endpoints: endpoints,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.broker.Publish(Topics{}.Health(), payload, 1, true)
}

func (p *Publisher) logError(msg string, err error) {
	if p.logger != nil {
		p.logger.Error(msg, "error", err)
	}
}
