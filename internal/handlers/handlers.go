// Package handlers contains the DMX consumers the node can drive and the
// MQTT publisher of its peer list.
package handlers

import (
	"fmt"

	"artnetnode/internal/clientmqtt"
	"artnetnode/internal/config"
	"artnetnode/internal/logger"
	"artnetnode/internal/node"
)

// Register builds a handler for every entry of cfgs and registers it in
// order. pub may be nil when no entry has type "mqtt".
func Register(log logger.Logger, reg *node.Registry, cfgs []config.HandlerConf, pub clientmqtt.Publisher) error {
	for _, c := range cfgs {
		width := c.Width
		if width == 0 && c.Type == "relay" {
			width = RelayWidth
		}
		d, err := node.NewDescriptor(c.Name, c.Universe, c.Address, width)
		if err != nil {
			return err
		}

		var h node.Handler
		switch c.Type {
		case "relay":
			count := RelayCount
			if width < count {
				count = width
			}
			h, err = NewRelay(log, c.Name, NewSimulatedOutput(log, c.Name), count)
			if err != nil {
				return err
			}
		case "mqtt":
			if pub == nil {
				return fmt.Errorf("handler %s: mqtt client is not configured", c.Name)
			}
			h = NewBridge(log, pub, c.Name, c.Address)
		case "log":
			h = NewLog(log, c.Name)
		default:
			return fmt.Errorf("handler %s: unknown type %q", c.Name, c.Type)
		}

		if err := reg.Register(d, h); err != nil {
			return err
		}
		log.With(logger.Fields{"module": "dmx"}).Infof("handler %s (%s) on universe %d, address %d-%d",
			c.Name, c.Type, d.Universe, d.Address, d.Address+d.Width-1)
	}
	return nil
}
