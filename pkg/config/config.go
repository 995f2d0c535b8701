// Package config loads the contract/network document and the service settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/canopy-network/lootboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ErrMissingContract is returned by Validate when the document has no
// usable contract address.
var ErrMissingContract = errors.New("configuration data is missing")

// MsgMissing is the user-facing text for ErrMissingContract.
const MsgMissing = "Configuration data is missing."

const DefaultGasLimit uint64 = 3000000

// Network identifies the chain the contract lives on.
type Network struct {
	Name   string `yaml:"NAME" json:"name"`
	Symbol string `yaml:"SYMBOL" json:"symbol"`
	ID     uint64 `yaml:"ID" json:"id"`
}

// Document is the contract/network configuration. JSON documents are
// accepted since JSON is valid YAML.
type Document struct {
	ContractAddress string  `yaml:"CONTRACT_ADDRESS" json:"contractAddress"`
	ScanLink        string  `yaml:"SCAN_LINK" json:"scanLink"`
	Network         Network `yaml:"NETWORK" json:"network"`
	NFTName         string  `yaml:"NFT_NAME" json:"nftName"`
	Symbol          string  `yaml:"SYMBOL" json:"symbol"`
	ShowBackground  bool    `yaml:"SHOW_BACKGROUND" json:"showBackground"`
	GasLimit        uint64  `yaml:"GAS_LIMIT" json:"gasLimit"`
}

// Service holds process settings read from the environment.
type Service struct {
	HTTPAddr        string
	RPCEndpoints    []string
	RPCTimeout      time.Duration
	RPCRPS          int
	RPCBurst        int
	LogChunk        uint64
	WalletKey       string
	NetworkWatch    time.Duration
	PollInterval    time.Duration
	PollTimeout     time.Duration
	Debounce        time.Duration
	CronSpec        string
	LeaderboardSize int
	RedisEnabled    bool
	SnapshotTTL     time.Duration
	OutcomeStream   string
	OutcomeMaxLen   int64
	AdminUser       string
	AdminPassword   string
	AdminToken      string
	JWTSecret       string
	CORSOrigins     []string
}

// Config is the full runtime configuration.
type Config struct {
	Document
	Service Service
	// Loaded is false when no document could be read.
	Loaded bool
}

// DefaultDocument returns a document with only defaults set.
func DefaultDocument() Document {
	return Document{GasLimit: DefaultGasLimit}
}

// ParseDocument decodes a YAML or JSON document.
func ParseDocument(data []byte) (Document, error) {
	doc := DefaultDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode config document: %w", err)
	}
	doc.ContractAddress = strings.TrimSpace(doc.ContractAddress)
	if doc.GasLimit == 0 {
		doc.GasLimit = DefaultGasLimit
	}
	return doc, nil
}

// LoadDocument reads path. A missing file is not an error: the returned
// document is the default and ok is false.
func LoadDocument(path string) (doc Document, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultDocument(), false, nil
		}
		return Document{}, false, fmt.Errorf("read config document: %w", err)
	}
	doc, err = ParseDocument(data)
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

// LoadService reads the service settings from the environment.
func LoadService() Service {
	return Service{
		HTTPAddr:        utils.Env("ADDR", ":3000"),
		RPCEndpoints:    utils.EnvList("RPC_URLS", []string{"http://localhost:8545"}),
		RPCTimeout:      utils.EnvDuration("RPC_TIMEOUT", 15*time.Second),
		RPCRPS:          utils.EnvInt("RPC_RPS", 20),
		RPCBurst:        utils.EnvInt("RPC_BURST", 40),
		LogChunk:        uint64(utils.EnvInt64("RPC_LOG_CHUNK", 0)),
		WalletKey:       utils.Env("WALLET_PRIVATE_KEY", ""),
		NetworkWatch:    utils.EnvDuration("NETWORK_WATCH_INTERVAL", 15*time.Second),
		PollInterval:    utils.EnvDuration("POLL_INTERVAL", 2*time.Second),
		PollTimeout:     utils.EnvDuration("POLL_TIMEOUT", 60*time.Second),
		Debounce:        utils.EnvDuration("REFRESH_DEBOUNCE", 300*time.Millisecond),
		CronSpec:        utils.Env("CRON_SPEC", "*/30 * * * * *"),
		LeaderboardSize: utils.EnvInt("LEADERBOARD_SIZE", 100),
		RedisEnabled:    utils.EnvBool("REDIS_ENABLED", false),
		SnapshotTTL:     utils.EnvDuration("REDIS_SNAPSHOT_TTL", 10*time.Minute),
		OutcomeStream:   utils.Env("REDIS_OUTCOME_STREAM", "lootboard:outcomes"),
		OutcomeMaxLen:   utils.EnvInt64("REDIS_OUTCOME_MAXLEN", 1000),
		AdminUser:       utils.Env("ADMIN_USER", "admin"),
		AdminPassword:   utils.Env("ADMIN_PASSWORD", "admin"),
		AdminToken:      utils.Env("ADMIN_TOKEN", ""),
		JWTSecret:       utils.Env("SESSION_SECRET", "change-me-please"),
		CORSOrigins:     utils.EnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}

// Load reads the document named by LOOTBOARD_CONFIG (default
// ./config/config.json), applies the environment overlay and the service
// settings.
func Load() (*Config, error) {
	path := utils.Env("LOOTBOARD_CONFIG", "config/config.json")
	doc, ok, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Document: doc, Service: LoadService(), Loaded: ok}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		c.ContractAddress = strings.TrimSpace(v)
		c.Loaded = true
	}
	if v := utils.EnvInt64("NETWORK_ID", 0); v > 0 {
		c.Network.ID = uint64(v)
	}
	if v := os.Getenv("NETWORK_NAME"); v != "" {
		c.Network.Name = v
	}
	if v := utils.EnvInt64("GAS_LIMIT", 0); v > 0 {
		c.GasLimit = uint64(v)
	}
}

// Validate reports ErrMissingContract when the document is absent or its
// contract address is empty or malformed.
func (c *Config) Validate() error {
	if c == nil || !c.Loaded || !common.IsHexAddress(c.ContractAddress) {
		return ErrMissingContract
	}
	return nil
}

// ActionsEnabled reports whether connect and open actions may run.
func (c *Config) ActionsEnabled() bool {
	return c.Validate() == nil
}

// WrongNetworkMessage is shown when the wallet is on another chain.
func (c *Config) WrongNetworkMessage() string {
	return fmt.Sprintf("Please connect to the %s network.", c.Network.Name)
}
