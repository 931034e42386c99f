package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the whole configuration file.
type Config struct {
	Logger   LogConf       // Logger - logger settings.
	ArtNet   ArtNetConf    `toml:"artnet"`   // ArtNet - node identity and addressing.
	MQTT     MQTTConf      `toml:"mqtt"`     // MQTT - broker connection for the bridge handlers.
	Monitor  MonitorConf   `toml:"monitor"`  // Monitor - status API.
	Console  ConsoleConf   `toml:"console"`  // Console - test signal generator.
	Handlers []HandlerConf `toml:"handlers"` // Handlers - DMX consumers.
}

// LogConf holds the logger settings.
type LogConf struct {
	Level   string `toml:"log-level"` // Level - log level.
	Format  string `toml:"format"`    // Format - "text" or "json".
	NoColor bool   `toml:"no-color"`
}

// ArtNetConf holds the node addressing.
type ArtNetConf struct {
	Interface  string        `toml:"interface"` // Interface - name ("eth0"), CIDR ("192.168.6.0/24") or empty.
	Network    uint8         `toml:"network"`   // Network - net switch, 0-127.
	SubNet     uint8         `toml:"subnet"`    // SubNet - sub-net switch, 0-15.
	Universe   uint8         `toml:"universe"`  // Universe - universe of the input port, 0-15.
	Port       int           `toml:"port"`
	DMXTimeout time.Duration `toml:"dmx-timeout"`
	ShortName  string        `toml:"short-name"`
	LongName   string        `toml:"long-name"`
}

// MQTTConf holds the broker connection.
type MQTTConf struct {
	Enabled     bool          `toml:"enabled"`
	ClientID    string        `toml:"clientID"`     // ClientID - client name.
	Host        string        `toml:"server"`       // Host - MQTT server address.
	Port        string        `toml:"port"`         // Port - MQTT server port.
	User        string        `toml:"user"`         // User - broker login.
	Password    string        `toml:"password"`     // Password - broker password.
	Qos         byte          `toml:"qos"`          // Qos - quality of service.
	TopicPrefix string        `toml:"topic-prefix"` // TopicPrefix - root of every published topic.
	PeersDelay  time.Duration `toml:"peers-debounce"`
}

// MonitorConf holds the HTTP status API settings.
type MonitorConf struct {
	Enabled     bool     `toml:"enabled"`
	Listen      string   `toml:"listen"`
	CORSOrigins []string `toml:"cors-origins"`
}

// ConsoleConf holds the test signal generator settings.
type ConsoleConf struct {
	Network  uint8         `toml:"network"`
	SubNet   uint8         `toml:"subnet"`
	Universe uint8         `toml:"universe"`
	Pattern  string        `toml:"pattern"` // Pattern - "chase", "full" or "blackout".
	Interval time.Duration `toml:"interval"`
	CIDR     string        `toml:"cidr"`
}

// HandlerConf describes one DMX consumer.
type HandlerConf struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"` // Type - "relay", "mqtt" or "log".
	Universe uint8  `toml:"universe"`
	Address  int    `toml:"address"` // Address - first DMX slot, 1-512.
	Width    int    `toml:"width"`
}

// Default returns a configuration with default values.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info", Format: "text"},
		ArtNet: ArtNetConf{
			Port:       6454,
			DMXTimeout: 10 * time.Second,
			ShortName:  "ArtNetNode",
			LongName:   "ArtNetNode",
		},
		MQTT: MQTTConf{
			ClientID:    "artnetnode",
			Host:        "localhost",
			Port:        "1883",
			TopicPrefix: "artnet",
			PeersDelay:  500 * time.Millisecond,
		},
		Monitor: MonitorConf{
			Listen: ":8080",
		},
		Console: ConsoleConf{
			Pattern:  "chase",
			Interval: 30 * time.Second,
			CIDR:     "192.168.6.0/24",
		},
	}
}

// NewConfig reads the file at path over the defaults, then applies a .env
// file and environment overrides. An empty path skips the file.
func NewConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return &cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return &cfg, err
	}
	return &cfg, cfg.Validate()
}

// Validate checks the ranges that do not depend on other packages.
func (c *Config) Validate() error {
	switch {
	case c.ArtNet.Network > 127:
		return fmt.Errorf("artnet.network %d out of range 0-127", c.ArtNet.Network)
	case c.ArtNet.SubNet > 15:
		return fmt.Errorf("artnet.subnet %d out of range 0-15", c.ArtNet.SubNet)
	case c.ArtNet.Universe > 15:
		return fmt.Errorf("artnet.universe %d out of range 0-15", c.ArtNet.Universe)
	case c.ArtNet.Port < 0 || c.ArtNet.Port > 65535:
		return fmt.Errorf("artnet.port %d out of range", c.ArtNet.Port)
	case c.ArtNet.DMXTimeout <= 0:
		return fmt.Errorf("artnet.dmx-timeout must be positive")
	}

	names := make(map[string]struct{}, len(c.Handlers))
	for i, h := range c.Handlers {
		if h.Name == "" {
			return fmt.Errorf("handlers[%d]: name is required", i)
		}
		if _, ok := names[h.Name]; ok {
			return fmt.Errorf("handlers[%d]: duplicate name %q", i, h.Name)
		}
		names[h.Name] = struct{}{}

		switch h.Type {
		case "relay", "log":
		case "mqtt":
			if !c.MQTT.Enabled {
				return fmt.Errorf("handlers[%d]: %q needs [mqtt] enabled", i, h.Name)
			}
		default:
			return fmt.Errorf("handlers[%d]: unknown type %q", i, h.Type)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)
	c.ArtNet.Interface = getEnv("ARTNET_INTERFACE", c.ArtNet.Interface)
	c.MQTT.Host = getEnv("MQTT_SERVER", c.MQTT.Host)
	c.MQTT.Port = getEnv("MQTT_PORT", c.MQTT.Port)
	c.MQTT.User = getEnv("MQTT_USER", c.MQTT.User)
	c.MQTT.Password = getEnv("MQTT_PASSWORD", c.MQTT.Password)
	c.Monitor.Listen = getEnv("MONITOR_LISTEN", c.Monitor.Listen)

	var err error
	if c.ArtNet.Network, err = getEnvUint8("ARTNET_NETWORK", c.ArtNet.Network); err != nil {
		return err
	}
	if c.ArtNet.SubNet, err = getEnvUint8("ARTNET_SUBNET", c.ArtNet.SubNet); err != nil {
		return err
	}
	if c.ArtNet.Universe, err = getEnvUint8("ARTNET_UNIVERSE", c.ArtNet.Universe); err != nil {
		return err
	}
	if v := os.Getenv("ARTNET_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ARTNET_PORT: %w", err)
		}
		c.ArtNet.Port = port
	}
	if v := os.Getenv("MQTT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MQTT_ENABLED: %w", err)
		}
		c.MQTT.Enabled = enabled
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint8(key string, defaultValue uint8) (uint8, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseUint(value, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint8(n), nil
}
