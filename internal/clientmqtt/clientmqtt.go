package clientmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"artnetnode/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ErrNotConnected is returned by Publish before Start succeeded.
var ErrNotConnected = errors.New("mqtt client is not connected")

// ClientMQTT publishes node state to an MQTT broker.
type ClientMQTT struct {
	ctx       context.Context
	log       *logger.Log
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
}

// Publisher is what the DMX bridge and peer publishing need from the client.
type Publisher interface {
	Publish(topic string, retained bool, v interface{}) error
	Topic(parts ...string) string
}

// NewClient returns a client that is not connected yet.
func NewClient(log logger.Logger, cfgClient MQTTConf) *ClientMQTT {
	if cfgClient.Schema == "" {
		cfgClient.Schema = "tcp"
	}
	if cfgClient.Timeout == 0 {
		cfgClient.Timeout = 5 * time.Second
	}
	return &ClientMQTT{
		log:       log.With(logger.Fields{"module": "mqtt"}),
		cfgClient: cfgClient,
	}
}

// Start connects to the broker. The connection is kept alive and
// re-established by the client library until Stop.
func (c *ClientMQTT) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" || c.log.GetLevel() == "trace" {
		mqtt.ERROR = log.New(c.log.WriterLevel(logrus.ErrorLevel), "", 0)
		mqtt.CRITICAL = log.New(c.log.WriterLevel(logrus.ErrorLevel), "", 0)
		mqtt.WARN = log.New(c.log.WriterLevel(logrus.WarnLevel), "", 0)
	}

	c.ctx = ctx

	c.opts = mqtt.NewClientOptions().
		AddBroker(c.BrokerURL()).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetWill(c.StatusTopic(), StatusOffline, c.cfgClient.Qos, true).
		SetOrderMatters(false).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.Infof("Status: %v", c.client.IsConnected())
	return nil
}

// Stop publishes the offline status and disconnects.
func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		token := c.client.Publish(c.StatusTopic(), c.cfgClient.Qos, true, StatusOffline)
		token.WaitTimeout(c.cfgClient.Timeout)
		c.client.Disconnect(500)
	}
	return nil
}

// BrokerURL returns schema://host:port.
func (c *ClientMQTT) BrokerURL() string {
	return fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)
}

// Topic joins parts below the configured prefix.
func (c *ClientMQTT) Topic(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.Trim(c.cfgClient.TopicPrefix, "/"); p != "" {
		all = append(all, p)
	}
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			all = append(all, part)
		}
	}
	return strings.Join(all, "/")
}

// StatusTopic is the retained online/offline topic of this client.
func (c *ClientMQTT) StatusTopic() string {
	return c.Topic(c.cfgClient.ClientID, "status")
}

// Publish sends v as JSON (strings and byte slices are sent as is). It does
// not wait for the broker; failures are logged.
func (c *ClientMQTT) Publish(topic string, retained bool, v interface{}) error {
	if c.client == nil {
		return ErrNotConnected
	}

	var msg []byte
	switch v := v.(type) {
	case string:
		msg = []byte(v)
	case []byte:
		msg = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("public topic %s. msg: %w", topic, err)
		}
		msg = b
	}

	token := c.client.Publish(topic, c.cfgClient.Qos, retained, msg)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("error publish topic %s. %v", topic, token.Error())
				return
			}
		}
		c.log.Tracef("published %d bytes to %s", len(msg), topic)
	}()
	return nil
}

func (c *ClientMQTT) connectHandler(client mqtt.Client) {
	c.log.Info("client connected to server")
	client.Publish(c.StatusTopic(), c.cfgClient.Qos, true, StatusOnline)
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.Errorf("server connect lost: %v", err)
}
