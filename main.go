package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	bindFlag := flag.String("bind", "", "Override bind address (e.g. 0.0.0.0)")
	portFlag := flag.Int("port", 0, "Override port")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		home, _ := os.UserHomeDir()
		cfgPath = filepath.Join(home, ".btop-quiet", "agent.yaml")
	}

	config, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Apply flag overrides
	if *bindFlag != "" {
		config.Bind = *bindFlag
	}
	if *portFlag != 0 {
		config.Port = *portFlag
	}

	log, err := newLogger(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	src := newOSRawSource(config.CommandTimeout.Std())
	collector := newCollector(
		newCPUSampler(src),
		newMemoryAccountant(src, log),
		newProcessTable(src, log, config.ProcessLimit),
		osHostFacts{},
		log,
	)

	stream := newBroadcaster(collector, config.PollInterval.Std(), log)
	stream.Start()

	srv := newServer(config, collector, stream, log)

	listenAddr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatal("listen failed", zap.String("addr", listenAddr), zap.Error(err))
	}

	httpSrv := &http.Server{Handler: srv.Handler()}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		stream.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}()

	log.Info("btop-quiet agent listening",
		zap.String("version", version),
		zap.String("addr", listenAddr),
		zap.Duration("stream_interval", config.PollInterval.Std()),
	)
	if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		log.Fatal("http serve", zap.Error(err))
	}
}
