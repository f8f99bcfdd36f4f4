// Package mqtt publishes the bridge's parameter events and health status
// to an MQTT broker.
//
// The stream is one-directional: the bridge publishes, consumers
// subscribe. Writes arrive over the HTTP API only. Event topics are
// retained so a new subscriber immediately receives the last state of
// every parameter it watches, and the health topic carries a Last Will
// message for crash detection.
//
// The whole package is optional; with mqtt.enabled false in the
// configuration none of it is constructed.
package mqtt
