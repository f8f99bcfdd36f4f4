package mqtt

import "fmt"

// TopicPrefix is the base for all bridge topics.
// Scheme: parambridge/{category}/... with parameter paths appended as-is.
const TopicPrefix = "parambridge"

// Topics provides builders for the bridge's MQTT topics. Using these
// helpers keeps topic naming consistent across publisher and consumers.
type Topics struct{}

// ParameterEvent returns the topic for one parameter's change events.
//
// Example: parambridge/event/fp/config/exposure
func (Topics) ParameterEvent(endpointID, path string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, endpointID, path)
}

// Health returns the topic for bridge health status, also used as the
// Last Will and Testament topic.
func (Topics) Health() string {
	return TopicPrefix + "/health"
}
