package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

type CollectionConfig struct {
	Name            string `toml:"name"`
	Symbol          string `toml:"symbol"`
	MaxSupply       uint64 `toml:"max_supply"`
	BaseURI         string `toml:"base_uri"`
	Admin           string `toml:"admin"`
	RetireBurnedIDs bool   `toml:"retire_burned_ids"`
}

type ServerConfig struct {
	ListenAddr       string        `toml:"listen_addr"`
	ReplayProtection bool          `toml:"replay_protection"`
	QueueSize        int           `toml:"queue_size"`
	EnableCORS       bool          `toml:"enable_cors"`
	MonitorInterval  time.Duration `toml:"monitor_interval"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
	DataDir string `toml:"data_dir"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Colored    bool   `toml:"colored"`
	JournalDir string `toml:"journal_dir"`
}

// Config is everything the ledger service needs at construction time.
type Config struct {
	Collection CollectionConfig `toml:"collection"`
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Log        LogConfig        `toml:"log"`
}

func Default() *Config {
	return &Config{
		Collection: CollectionConfig{
			Name:      "NFT Collection",
			Symbol:    "NFT",
			MaxSupply: 10000,
			BaseURI:   "https://api.example.com/metadata/",
		},
		Server: ServerConfig{
			ListenAddr:       ":8090",
			ReplayProtection: true,
			QueueSize:        256,
			EnableCORS:       true,
			MonitorInterval:  15 * time.Second,
		},
		Storage: StorageConfig{
			Backend: storage.BackendBolt,
			DataDir: "./data",
		},
		Log: LogConfig{
			Level:      "info",
			Colored:    true,
			JournalDir: "./logs",
		},
	}
}

// Load reads the config and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a config from defaults, the optional TOML file at path and
// NFT_* environment variables, in that order.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from NFT_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Collection.Name = getEnv("NFT_NAME", c.Collection.Name)
	c.Collection.Symbol = getEnv("NFT_SYMBOL", c.Collection.Symbol)
	c.Collection.BaseURI = getEnv("NFT_BASE_URI", c.Collection.BaseURI)
	c.Collection.Admin = getEnv("NFT_ADMIN", c.Collection.Admin)
	c.Collection.RetireBurnedIDs = getEnvBool("NFT_RETIRE_BURNED", c.Collection.RetireBurnedIDs)

	maxSupply, err := getEnvUint("NFT_MAX_SUPPLY", c.Collection.MaxSupply)
	if err != nil {
		return err
	}
	c.Collection.MaxSupply = maxSupply

	c.Server.ListenAddr = getEnv("NFT_LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.ReplayProtection = getEnvBool("NFT_REPLAY_PROTECTION", c.Server.ReplayProtection)
	c.Server.QueueSize = getEnvInt("NFT_QUEUE_SIZE", c.Server.QueueSize)

	c.Storage.Backend = getEnv("NFT_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.DataDir = getEnv("NFT_DATA_DIR", c.Storage.DataDir)

	c.Log.Level = getEnv("NFT_LOG_LEVEL", c.Log.Level)
	c.Log.Colored = getEnvBool("NFT_COLORED_LOGS", c.Log.Colored)
	c.Log.JournalDir = getEnv("NFT_JOURNAL_DIR", c.Log.JournalDir)
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Collection.Name) == "" {
		errs = append(errs, errors.New("collection.name is required"))
	}
	if strings.TrimSpace(c.Collection.Symbol) == "" {
		errs = append(errs, errors.New("collection.symbol is required"))
	}
	if c.Collection.MaxSupply == 0 {
		errs = append(errs, errors.New("collection.max_supply must be greater than zero"))
	}
	if !common.IsHexAddress(c.Collection.Admin) {
		errs = append(errs, fmt.Errorf("collection.admin %q is not a hex address", c.Collection.Admin))
	} else if c.AdminAddress() == nft.NoIdentity {
		errs = append(errs, errors.New("collection.admin must not be the zero address"))
	}

	switch c.Storage.Backend {
	case storage.BackendBolt, storage.BackendLevelDB:
		if c.Storage.DataDir == "" {
			errs = append(errs, fmt.Errorf("storage.data_dir is required for the %s backend", c.Storage.Backend))
		}
	case storage.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be one of bolt, leveldb, memory", c.Storage.Backend))
	}

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if c.Server.QueueSize <= 0 {
		errs = append(errs, errors.New("server.queue_size must be greater than zero"))
	}
	if c.Server.MonitorInterval <= 0 {
		errs = append(errs, errors.New("server.monitor_interval must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) AdminAddress() common.Address {
	return common.HexToAddress(c.Collection.Admin)
}

// CollectionOptions converts the collection section into ledger options.
func (c *Config) CollectionOptions(journal *zap.Logger) nft.Options {
	return nft.Options{
		Name:            c.Collection.Name,
		Symbol:          c.Collection.Symbol,
		MaxSupply:       c.Collection.MaxSupply,
		BaseURI:         c.Collection.BaseURI,
		Admin:           c.AdminAddress(),
		RetireBurnedIDs: c.Collection.RetireBurnedIDs,
		Logger:          journal,
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvUint reports malformed values instead of ignoring them: a silently
// ignored supply cap would change ledger semantics.
func getEnvUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
