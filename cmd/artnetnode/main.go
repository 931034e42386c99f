package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artnetnode/internal/clientmqtt"
	"artnetnode/internal/config"
	"artnetnode/internal/handlers"
	"artnetnode/internal/logger"
	"artnetnode/internal/monitor"
	"artnetnode/internal/node"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/artnetnode.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v\n", err)
		os.Exit(1)
	}
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var (
		n      *node.Node
		sinks  []node.EventSink
		client *clientmqtt.ClientMQTT
		peers  *handlers.PeerPublisher
		hub    *monitor.Hub
	)

	if cfg.MQTT.Enabled {
		client = clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT))
		log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")
		if err = client.Start(ctx); err != nil {
			log.Error("failed to start MQTT service: ", err.Error())
			os.Exit(1)
		}
		peers = handlers.NewPeerPublisher(log, client, cfg.MQTT.PeersDelay, func() []node.Peer {
			return n.Peers().Snapshot()
		})
		sinks = append(sinks, peers)
	}

	if cfg.Monitor.Enabled {
		hub = monitor.NewHub(log)
		sinks = append(sinks, hub)
	}

	n, err = node.New(ConvertConfigNode(cfg.ArtNet), log, node.WithEvents(sinks...))
	if err != nil {
		log.With(logger.Fields{"module": "art-net"}).Errorf("error while creating the art-net node. %v", err)
		os.Exit(1)
	}
	log.With(logger.Fields{"module": "art-net"}).Debugf("node %s created ok", n.ID())

	var pub clientmqtt.Publisher
	if client != nil {
		pub = client
	}
	if err = handlers.Register(log, n.Handlers(), cfg.Handlers, pub); err != nil {
		log.With(logger.Fields{"module": "dmx"}).Errorf("failed to register handlers. %v", err)
		os.Exit(1)
	}

	var mon *monitor.Server
	if hub != nil {
		mon = monitor.New(log, monitor.Conf{Listen: cfg.Monitor.Listen, CORSOrigins: cfg.Monitor.CORSOrigins},
			monitor.NodeSource(n), hub)
		if err = mon.Start(); err != nil {
			log.Error("failed to start monitor: ", err.Error())
			cancel()
		}
	}

	if err = n.Start(ctx); err != nil {
		log.Error("failed to start art-net node: ", err.Error())
		cancel()
	}

	<-ctx.Done()

	n.Stop()

	if peers != nil {
		peers.Close()
	}

	if mon != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mon.Stop(stopCtx); err != nil {
			log.Error("failed to stop monitor: ", err.Error())
		}
		stop()
	}

	if client != nil {
		if err := client.Stop(); err != nil {
			log.Error("failed to stop MQTT service: ", err.Error())
		}
	}

	log.Info("shutdown complete")
}

// ConvertConfigClientMQTT converts the [mqtt] section for the client.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID:    cfg.ClientID,
		Schema:      "tcp",
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		Qos:         cfg.Qos,
		TopicPrefix: cfg.TopicPrefix,
	}
}

// ConvertConfigNode converts the [artnet] section for the node.
func ConvertConfigNode(cfg config.ArtNetConf) node.Config {
	return node.Config{
		Network:    cfg.Network,
		SubNet:     cfg.SubNet,
		Universe:   cfg.Universe,
		Interface:  cfg.Interface,
		Port:       cfg.Port,
		DMXTimeout: cfg.DMXTimeout,
		ShortName:  cfg.ShortName,
		LongName:   cfg.LongName,
	}
}
