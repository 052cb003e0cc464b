package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Clouded-Sabre/tun-tcp/config"
	"github.com/Clouded-Sabre/tun-tcp/lib"
	"github.com/Clouded-Sabre/tun-tcp/lib/tun"
	"github.com/Clouded-Sabre/tun-tcp/netsetup"
	"github.com/peterbourgon/ff/v3"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.WithError(err).Error("Server stopped")
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("tun-tcp", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "YAML config file; built-in defaults when empty")
		iface      = fs.String("iface", "", "TUN interface name (overrides interface_name)")
		cidr       = fs.String("cidr", "", "local address of the TUN link (overrides local_cidr)")
		logLevel   = fs.String("loglevel", "", "log level (overrides log_level)")
		setup      = fs.Bool("setup", false, "assign the address, set the MTU and bring the link up")
	)
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("TUNTCP")); err != nil {
		return err
	}

	coreConfig, connConfig := lib.DefaultCoreConfig(), lib.DefaultConnectionConfig()
	if *configPath != "" {
		var err error
		coreConfig, connConfig, err = config.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}
	if *iface != "" {
		coreConfig.InterfaceName = *iface
	}
	if *cidr != "" {
		coreConfig.LocalCIDR = *cidr
	}
	if *logLevel != "" {
		coreConfig.LogLevel = *logLevel
	}
	if err := config.Validate(coreConfig, connConfig); err != nil {
		return err
	}

	level, err := log.ParseLevel(coreConfig.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	dev, err := tun.Open(coreConfig.InterfaceName)
	if err != nil {
		return err
	}
	defer dev.Close()
	log.WithField("iface", dev.Name()).Info("TUN device opened")

	if *setup {
		nc, err := netsetup.NewConfigurator()
		if err != nil {
			return err
		}
		if err := nc.Configure(dev.Name(), coreConfig.LocalCIDR, coreConfig.MTU); err != nil {
			return err
		}
		defer func() {
			if err := nc.Teardown(); err != nil {
				log.WithError(err).Warn("Link teardown failed")
			}
		}()
	}

	core, err := lib.NewCore(coreConfig, connConfig, lib.NewConnTable())
	if err != nil {
		return fmt.Errorf("create core: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for interrupt signal (Ctrl+C)
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		select {
		case sig := <-signalChan:
			log.WithField("signal", sig).Info("Shutting down...")
			cancel()
			dev.Close() // unblocks the pending Read
		case <-ctx.Done():
		}
	}()

	log.WithFields(log.Fields{"iface": dev.Name(), "mtu": coreConfig.MTU}).Info("Serving")
	err = core.Serve(ctx, dev)
	log.WithField("connections", core.Table().Len()).Info("Frame loop stopped")
	return err
}
