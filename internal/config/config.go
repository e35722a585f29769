// Package config loads the process configuration of spec §6, modeled on
// kasparov/kasparovd/config/config.go: a jessevdk/go-flags struct parsed
// from command-line flags only (no config file is read), with logging resolved to a
// default app-data directory the way the teacher resolves
// defaultLogDir/logFilename/errLogFilename.
package config

import (
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultHost                = "0.0.0.0:8080"
	defaultCacheScriptHistory   = 10_000
	defaultNetwork              = "mainnet"
	logFilename                 = "chronikd.log"
)

// Config is spec §6's full set of process-level knobs.
type Config struct {
	Host               string `long:"host" description:"address the (out-of-scope) query surface listens on" default:"0.0.0.0:8080"`
	NngPubURL          string `long:"nng-pub-url" description:"node's NNG pub/sub URL for the block/mempool event stream" required:"true"`
	NngRPCURL          string `long:"nng-rpc-url" description:"node's NNG RPC URL for FetchBlockRange/ChainInfo/MempoolSnapshot" required:"true"`
	BitcoindRPC        string `long:"bitcoind-rpc" description:"bitcoind-compatible JSON-RPC URL, used only by the out-of-scope broadcast path"`
	DBPath             string `long:"db-path" description:"primary RocksDB directory" required:"true"`
	TransientDataPath  string `long:"transient-data-path" description:"separate RocksDB directory for first-seen timing data" required:"true"`
	CacheScriptHistory int    `long:"cache-script-history" description:"LRU capacity of the script-txs writer cache" default:"10000"`
	Network            string `long:"network" description:"mainnet, testnet, or regtest" default:"mainnet"`
	DebugLevel         string `long:"debuglevel" description:"logging level, or subsystem=level,..." default:"info"`
	LogDir             string `long:"logdir" description:"directory for the rotating log file"`
	CheckSlpStrict     bool   `long:"check-slp-strict" description:"reject (rather than merely flag) a broadcast whose token burns are unintentional"`
}

var active *Config

// Active returns the last-parsed config. Callers (cmd/chronikd) must call
// Load before using it.
func Active() *Config { return active }

// Load parses command-line flags into a Config, applying defaults the same
// way kasparovd/config.Parse does. It reads no config file and takes no
// positional argument.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		Host:               defaultHost,
		CacheScriptHistory: defaultCacheScriptHistory,
		Network:            defaultNetwork,
		DebugLevel:         "info",
	}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.DBPath, "logs")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	active = cfg
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Network {
	case "mainnet", "testnet", "regtest":
	default:
		return errors.Errorf("unknown network %q", c.Network)
	}
	if c.CacheScriptHistory <= 0 {
		return errors.New("cache-script-history must be positive")
	}
	return nil
}

// LogFilePath is the rotating log file path within LogDir, matching the
// teacher's logFilename convention.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogDir, logFilename)
}
