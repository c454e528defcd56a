package main

import (
	"flag"
	"log"
	"os"

	"FinFuse/internal/di"
	"FinFuse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting finfuse env=%s backend=%s", cfg.Environment, cfg.Backend.Type)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	log.Printf("clickhouse ready db=%s", cfg.ClickHouse.Database)
	log.Printf("kafka ready brokers=%v signals=%s intents=%s",
		cfg.Kafka.Brokers, cfg.Kafka.SignalsTopic, cfg.Kafka.Topic)

	// Run blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
