package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"artnetnode/internal/config"
	"artnetnode/internal/console"
	"artnetnode/internal/logger"
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

	c, err := console.NewConsole(log, ConvertConfigConsole(cfg.Console))
	if err != nil {
		log.With(logger.Fields{"module": "console"}).Errorf("error while creating a new controller art-net. %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if err = c.Start(ctx); err != nil {
		log.Error("failed to start art-net controller: ", err.Error())
		os.Exit(1)
	}

	<-ctx.Done()

	c.Stop()
	log.Info("shutdown complete")
}

// ConvertConfigConsole converts the [console] section.
func ConvertConfigConsole(cfg config.ConsoleConf) console.Conf {
	return console.Conf{
		Network:  cfg.Network,
		SubNet:   cfg.SubNet,
		Universe: cfg.Universe,
		Pattern:  cfg.Pattern,
		Interval: cfg.Interval,
		CIDR:     cfg.CIDR,
	}
}
