package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/deskrelay/widget/internal/infrastructure/config"
	"github.com/deskrelay/widget/internal/infrastructure/server"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file overlaying environment values")
	dev := flag.Bool("dev", false, "Development mode (console logging, gin debug)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dev {
		cfg.Logging.Development = true
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
