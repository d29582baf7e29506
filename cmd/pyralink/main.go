package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pyralink/config"
	"pyralink/export"
	"pyralink/logging"
	"pyralink/messaging"
	"pyralink/sequence"
	"pyralink/store"
	"pyralink/www"
)

func main() {
	configPath := flag.String("config", "pyralink.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Web.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Open database
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Errorf("open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// Export pipeline
	policy, err := export.PolicyForVersion(cfg.Export.PolicyVersion)
	if err != nil {
		log.Errorf("export policy: %v", err)
		os.Exit(1)
	}
	if cfg.Export.ShipDateOffsetDays != 0 {
		policy.ShipDateOffsetDays = cfg.Export.ShipDateOffsetDays
	}

	codec, err := export.NewCodec(cfg.Export.Charset)
	if err != nil {
		log.Errorf("export charset: %v", err)
		os.Exit(1)
	}

	alloc := sequence.New(cfg.Export.CounterPath, cfg.Export.SequenceFloor, cfg.Export.LockTimeout, log.Named("sequence"))
	naming := export.Naming{Dir: cfg.Export.OutputDirs[0], Prefix: cfg.Export.FilePrefix}

	orch := export.NewOrchestrator(export.OrchestratorDeps{
		Store:    db,
		Encoder:  export.NewEncoder(policy, log.Named("encoder")),
		Detector: export.NewDetector(codec, naming, log.Named("detector")),
		Writer:   export.NewWriter(alloc, db, codec, cfg.Export.OutputDirs, cfg.Export.FilePrefix, log.Named("writer")),
		Naming:   naming,
		Audit:    db,
		Notices:  db,
		Log:      log.Named("export"),
	})

	// Messaging: inbound order events, outbound export notices via outbox.
	msgClient := messaging.NewClient(&cfg.Messaging, log.Named("messaging"))
	defer msgClient.Close()
	if err := msgClient.Connect(); err != nil {
		log.Warnf("messaging connect: %v (notices queue in outbox; manual exports still work)", err)
	} else {
		drainer := messaging.NewOutboxDrainer(db, msgClient, &cfg.Messaging, log.Named("outbox"))
		drainer.Start()
		defer drainer.Stop()

		sub := messaging.NewSubscriber(msgClient, cfg, orch, log.Named("subscriber"))
		if err := sub.Start(); err != nil {
			log.Errorf("subscribe %s: %v", cfg.Messaging.OrderEventsTopic, err)
		} else {
			log.Infof("listening for order events on %s", cfg.Messaging.OrderEventsTopic)
		}
	}

	// Operator HTTP API
	router := www.NewRouter(db, orch, alloc, naming, log.Named("www"))
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Infof("pyralink listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("http server shutdown: %v", err)
	}
}
