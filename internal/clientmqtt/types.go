package clientmqtt

import "time"

type MQTTConf struct {
	ClientID    string        // ClientID - unique client name on the broker.
	Schema      string        // Schema - connection type.
	Host        string        // Host - MQTT server address.
	Port        string        // Port - MQTT server port.
	User        string        // User - broker login.
	Password    string        // Password - broker password.
	Qos         byte          // Qos - quality of service of every publish.
	TopicPrefix string        // TopicPrefix - root of every topic.
	Timeout     time.Duration // Timeout - wait for connect and publish acknowledgements.
}

type DMXCommand struct {
	Channel uint16 `json:"channel"` // Channel is the 1-based DMX address of the value.
	Value   uint8  `json:"value"`   // Value is the value a DMX channel can represent (0-255).
}

type Payload []DMXCommand

// NewPayload converts a DMX slice starting at address into commands.
func NewPayload(address int, data []byte) Payload {
	p := make(Payload, len(data))
	for i, v := range data {
		p[i] = DMXCommand{Channel: uint16(address + i), Value: v}
	}
	return p
}
