package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"time"
)

// HistorySource selects how transaction history is reconstructed
type HistorySource string

const (
	// HistoryFromBlocks scans recent blocks on the ledger node
	HistoryFromBlocks HistorySource = "blocks"
	// HistoryFromIndexer asks an indexing service for per-account positions
	HistoryFromIndexer HistorySource = "indexer"
)

// Config holds all application configuration
type Config struct {
	// Endpoint settings
	RPCURL      string
	ProviderURL string
	IndexerURL  string
	IndexerKey  string

	// Ledger unit settings
	Decimals uint8
	Symbol   string

	// Provider settings
	AccountPollInterval time.Duration

	// History settings
	HistorySource  HistorySource
	HistoryBlocks  uint64
	HistoryWorkers int

	// Transfer form defaults
	DefaultGasLimit uint64
	DefaultGasPrice string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Decimals:            18,
		Symbol:              "ETH",
		AccountPollInterval: 2 * time.Second,
		HistorySource:       HistoryFromBlocks,
		HistoryBlocks:       256,
		HistoryWorkers:      8,
		DefaultGasLimit:     21000,
		DefaultGasPrice:     "20000000000",
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if rpcURL := os.Getenv("WALLET_RPC_URL"); rpcURL != "" {
		c.RPCURL = rpcURL
	}

	if providerURL := os.Getenv("WALLET_PROVIDER_URL"); providerURL != "" {
		c.ProviderURL = providerURL
	}

	if indexerURL := os.Getenv("WALLET_INDEXER_URL"); indexerURL != "" {
		c.IndexerURL = indexerURL
	}

	if indexerKey := os.Getenv("WALLET_INDEXER_KEY"); indexerKey != "" {
		c.IndexerKey = indexerKey
	}

	if decimals := os.Getenv("WALLET_DECIMALS"); decimals != "" {
		if d, err := strconv.ParseUint(decimals, 10, 8); err == nil {
			c.Decimals = uint8(d)
		}
	}

	if symbol := os.Getenv("WALLET_SYMBOL"); symbol != "" {
		c.Symbol = symbol
	}

	if interval := os.Getenv("WALLET_ACCOUNT_POLL_INTERVAL"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil {
			c.AccountPollInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if source := os.Getenv("WALLET_HISTORY_SOURCE"); source != "" {
		c.HistorySource = HistorySource(source)
	}

	if blocks := os.Getenv("WALLET_HISTORY_BLOCKS"); blocks != "" {
		if b, err := strconv.ParseUint(blocks, 10, 64); err == nil {
			c.HistoryBlocks = b
		}
	}

	if workers := os.Getenv("WALLET_HISTORY_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			c.HistoryWorkers = w
		}
	}

	if gasLimit := os.Getenv("WALLET_GAS_LIMIT"); gasLimit != "" {
		if g, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
			c.DefaultGasLimit = g
		}
	}

	if gasPrice := os.Getenv("WALLET_GAS_PRICE"); gasPrice != "" {
		c.DefaultGasPrice = gasPrice
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("ledger RPC URL cannot be empty")
	}

	if err := checkURL("ledger RPC URL", c.RPCURL); err != nil {
		return err
	}

	if c.ProviderURL != "" {
		if err := checkURL("provider URL", c.ProviderURL); err != nil {
			return err
		}
	}

	if c.Decimals > 77 {
		return fmt.Errorf("decimals must be at most 77, got: %d", c.Decimals)
	}

	if c.AccountPollInterval <= 0 {
		return fmt.Errorf("account poll interval must be positive, got: %s", c.AccountPollInterval)
	}

	switch c.HistorySource {
	case HistoryFromBlocks:
		if c.HistoryBlocks == 0 {
			return fmt.Errorf("history block window must be positive")
		}
	case HistoryFromIndexer:
		if c.IndexerURL == "" {
			return fmt.Errorf("history source %q requires an indexer URL", c.HistorySource)
		}
		if err := checkURL("indexer URL", c.IndexerURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown history source %q, expected %q or %q", c.HistorySource, HistoryFromBlocks, HistoryFromIndexer)
	}

	if c.HistoryWorkers <= 0 {
		return fmt.Errorf("history workers must be positive, got: %d", c.HistoryWorkers)
	}

	if c.DefaultGasLimit == 0 {
		return fmt.Errorf("default gas limit must be positive")
	}

	if p, ok := new(big.Int).SetString(c.DefaultGasPrice, 10); !ok || p.Sign() < 0 {
		return fmt.Errorf("default gas price must be a non-negative integer, got: %q", c.DefaultGasPrice)
	}

	return nil
}

// HasProvider reports whether a signing provider endpoint is configured
func (c *Config) HasProvider() bool {
	return c.ProviderURL != ""
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return nil
	case "":
		// IPC socket path
		return nil
	default:
		return fmt.Errorf("invalid %s %q: unsupported scheme %q", name, raw, u.Scheme)
	}
}
