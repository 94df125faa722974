package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cloudx-io/auctionledger/core"
)

const (
	transportVsock = "vsock"
	transportTCP   = "tcp"

	attesterNSM   = "nsm"
	attesterLocal = "local"
)

// HostConfig is the enclave host configuration, read from the environment.
type HostConfig struct {
	MaxWorkers      int
	Organizer       core.Identity
	Duration        time.Duration
	ExtensionWindow time.Duration
	Transport       string
	Port            uint32
	JournalPath     string
	MetricsAddr     string
	Attester        string
}

func loadHostConfig() (HostConfig, error) {
	var cfg HostConfig
	var err error

	if cfg.MaxWorkers, err = getRequiredEnvInt("ENCLAVE_MAX_WORKERS"); err != nil {
		return cfg, fmt.Errorf("failed to get max workers config: %w", err)
	}
	if cfg.MaxWorkers <= 0 {
		return cfg, fmt.Errorf("ENCLAVE_MAX_WORKERS must be positive, got %d", cfg.MaxWorkers)
	}

	organizer, err := getRequiredEnv("LEDGER_ORGANIZER")
	if err != nil {
		return cfg, fmt.Errorf("failed to get organizer config: %w", err)
	}
	cfg.Organizer = core.Identity(organizer)

	durationSeconds, err := getRequiredEnvInt("LEDGER_DURATION_SECONDS")
	if err != nil {
		return cfg, fmt.Errorf("failed to get auction duration config: %w", err)
	}
	cfg.Duration = time.Duration(durationSeconds) * time.Second

	windowSeconds, err := getEnvInt("LEDGER_EXTENSION_WINDOW_SECONDS", int(core.DefaultExtensionWindow/time.Second))
	if err != nil {
		return cfg, err
	}
	cfg.ExtensionWindow = time.Duration(windowSeconds) * time.Second

	cfg.Transport = getEnv("LEDGER_TRANSPORT", transportVsock)
	if cfg.Transport != transportVsock && cfg.Transport != transportTCP {
		return cfg, fmt.Errorf("invalid value for LEDGER_TRANSPORT: %s (must be vsock or tcp)", cfg.Transport)
	}

	port, err := getEnvInt("LEDGER_PORT", 5000)
	if err != nil {
		return cfg, err
	}
	if port <= 0 || port > 65535 {
		return cfg, fmt.Errorf("invalid value for LEDGER_PORT: %d", port)
	}
	cfg.Port = uint32(port)

	cfg.JournalPath = getEnv("LEDGER_JOURNAL_PATH", "")
	cfg.MetricsAddr = getEnv("LEDGER_METRICS_ADDR", "")

	cfg.Attester = getEnv("LEDGER_ATTESTER", attesterNSM)
	if cfg.Attester != attesterNSM && cfg.Attester != attesterLocal {
		return cfg, fmt.Errorf("invalid value for LEDGER_ATTESTER: %s (must be nsm or local)", cfg.Attester)
	}

	return cfg, nil
}

func (c HostConfig) ledgerConfig() core.Config {
	return core.Config{
		Duration:        c.Duration,
		Organizer:       c.Organizer,
		ExtensionWindow: c.ExtensionWindow,
	}
}

// Helper function for required environment variable parsing
func getRequiredEnvInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}

func getRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	log.Printf("INFO: Using %s=%s from environment", key, value)
	return value, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}
	return intValue, nil
}
