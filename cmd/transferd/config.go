// config.go - Configuration management for the transfer daemon
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the daemon configuration
type Config struct {
	// Endpoint settings
	RPCEndpoint         string `json:"rpc_endpoint"`
	MaxRetries          int    `json:"max_retries"`
	BackoffBaseMs       int    `json:"backoff_base_ms"`
	HealthCheckPeriodMs int    `json:"health_check_period_ms"`

	// Content store
	IPFSAPIURL     string `json:"ipfs_api_url"`
	IPFSGatewayURL string `json:"ipfs_gateway_url"` // host root, e.g. "https://ipfs.io"

	// File paths
	LedgerPath string `json:"ledger_path"`
	KeyDir     string `json:"key_dir"`
	SignerKey  string `json:"signer_key"`

	// HTTP API
	ListenAddr string `json:"listen_addr"`

	// Commitment backend: "mimc" or "groth16"
	ProofBackend string `json:"proof_backend"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Rate limiting
	RateLimitBurst    int `json:"rate_limit_burst"`
	RateLimitPerMin   int `json:"rate_limit_per_min"`
	MaxUploadBytes    int `json:"max_upload_bytes"`
	ShutdownTimeoutMs int `json:"shutdown_timeout_ms"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RPCEndpoint:         "https://rpc.testnet.soo.network/rpc",
		MaxRetries:          3,
		BackoffBaseMs:       1000,
		HealthCheckPeriodMs: 30000,
		IPFSAPIURL:          "http://127.0.0.1:5001",
		IPFSGatewayURL:      "https://ipfs.io",
		LedgerPath:          "transfers.json",
		KeyDir:              "keys",
		SignerKey:           "signer.key",
		ListenAddr:          ":8080",
		ProofBackend:        "mimc",
		LogLevel:            "info",
		LogFile:             "transferd.log",
		RateLimitBurst:      10,
		RateLimitPerMin:     30,
		MaxUploadBytes:      32 << 20,
		ShutdownTimeoutMs:   10000,
	}
}

// LoadConfig loads configuration from file or creates default, then applies
// environment overrides. A .env file next to the working directory is read
// when present.
func LoadConfig(configPath string) (*Config, error) {
	var config *Config

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		config = DefaultConfig()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else {
		config = DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()
	config.applyEnv()

	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// applyEnv overlays TRANSFERD_* environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("TRANSFERD_RPC_ENDPOINT"); v != "" {
		c.RPCEndpoint = v
	}
	if v := os.Getenv("TRANSFERD_IPFS_API_URL"); v != "" {
		c.IPFSAPIURL = v
	}
	if v := os.Getenv("TRANSFERD_IPFS_GATEWAY_URL"); v != "" {
		c.IPFSGatewayURL = v
	}
	if v := os.Getenv("TRANSFERD_LEDGER_PATH"); v != "" {
		c.LedgerPath = v
	}
	if v := os.Getenv("TRANSFERD_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("TRANSFERD_PROOF_BACKEND"); v != "" {
		c.ProofBackend = v
	}
	if v := os.Getenv("TRANSFERD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TRANSFERD_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("TRANSFERD_BACKOFF_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BackoffBaseMs = n
		}
	}
}

// ValidateConfig validates the configuration
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc_endpoint must be set")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}
	if c.BackoffBaseMs <= 0 {
		return fmt.Errorf("backoff_base_ms must be positive")
	}
	if c.HealthCheckPeriodMs <= 0 {
		return fmt.Errorf("health_check_period_ms must be positive")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path must be set")
	}
	if c.ProofBackend != "mimc" && c.ProofBackend != "groth16" {
		return fmt.Errorf("proof_backend must be %q or %q", "mimc", "groth16")
	}
	if c.RateLimitBurst <= 0 || c.RateLimitPerMin <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	return nil
}

// BackoffBase returns the retry backoff base as a duration.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// HealthCheckPeriod returns the periodic recheck interval as a duration.
func (c *Config) HealthCheckPeriod() time.Duration {
	return time.Duration(c.HealthCheckPeriodMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}
