package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"primenumbers/crypto"
)

const (
	EnvRPCAddress  = "PRNT_RPC_ADDR"
	EnvDataDir     = "PRNT_DATA_DIR"
	EnvEnvironment = "PRNT_ENV"

	defaultRPCAddress = ":8545"
	defaultDataDir    = "./prnt-data"
)

type Config struct {
	RPCAddress           string    `toml:"RPCAddress" yaml:"rpc_address"`
	DataDir              string    `toml:"DataDir" yaml:"data_dir"`
	Environment          string    `toml:"Environment" yaml:"environment"`
	OperatorKeystorePath string    `toml:"OperatorKeystorePath" yaml:"operator_keystore_path"`
	RPC                  RPC       `toml:"rpc" yaml:"rpc"`
	Logging              Logging   `toml:"logging" yaml:"logging"`
	Telemetry            Telemetry `toml:"telemetry" yaml:"telemetry"`
	Indexer              Indexer   `toml:"indexer" yaml:"indexer"`
	Genesis              Genesis   `toml:"genesis" yaml:"genesis"`
}

// RPC configures the JSON-RPC listener.
type RPC struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
	MaxRequestBytes   int64   `toml:"MaxRequestBytes" yaml:"max_request_bytes"`
	// JWTSecretEnv names the environment variable holding the HS256 secret
	// that admin bearer tokens are signed with.
	JWTSecretEnv      string `toml:"JWTSecretEnv" yaml:"jwt_secret_env"`
	JWTIssuer         string `toml:"JWTIssuer" yaml:"jwt_issuer"`
	Devnet            bool   `toml:"Devnet" yaml:"devnet"`
	ReadHeaderTimeout uint64 `toml:"ReadHeaderTimeout" yaml:"read_header_timeout"`
	ReadTimeout       uint64 `toml:"ReadTimeout" yaml:"read_timeout"`
	WriteTimeout      uint64 `toml:"WriteTimeout" yaml:"write_timeout"`
	IdleTimeout       uint64 `toml:"IdleTimeout" yaml:"idle_timeout"`
}

// Logging enables an optional rotating log file next to stdout.
type Logging struct {
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
	Compress   bool   `toml:"Compress" yaml:"compress"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Enabled  bool   `toml:"Enabled" yaml:"enabled"`
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`

	// SampleRatio keeps this fraction of root spans; zero keeps all.
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// Indexer configures the SQL event index. An empty DSN disables it; DSNs
// starting with postgres:// select Postgres, anything else is a SQLite path.
type Indexer struct {
	DSN string `toml:"DSN" yaml:"dsn"`
}

type options struct {
	passphrase string
}

// Option tunes Load.
type Option func(*options)

// WithKeystorePassphrase sets the passphrase used when the operator keystore
// has to be created.
func WithKeystorePassphrase(passphrase string) Option {
	return func(o *options) {
		o.passphrase = passphrase
	}
}

// Load loads the configuration from the given path, creating a default file
// when it does not exist. Files ending in .yaml or .yml are decoded as YAML,
// everything else as TOML.
func Load(path string, opts ...Option) (*Config, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := createDefault(path, o)
		if err != nil {
			return nil, err
		}
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}

	cfg := Default()
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}

	if err := ensureKeystore(path, cfg, o); err != nil {
		return nil, err
	}
	cfg.normalize()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the devnet configuration written for a missing file.
func Default() *Config {
	return &Config{
		RPCAddress:  defaultRPCAddress,
		DataDir:     defaultDataDir,
		Environment: "devnet",
		RPC: RPC{
			RequestsPerMinute: 600,
			Burst:             60,
			MaxRequestBytes:   1 << 20,
			JWTSecretEnv:      "PRNT_RPC_JWT_SECRET",
			JWTIssuer:         "prntd",
			Devnet:            true,
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
		},
		Logging: Logging{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Telemetry: Telemetry{
			Endpoint: "localhost:4318",
			Insecure: true,
			Metrics:  true,
			Traces:   true,
		},
		Genesis: DefaultGenesis(),
	}
}

func (cfg *Config) normalize() {
	cfg.RPCAddress = strings.TrimSpace(cfg.RPCAddress)
	if cfg.RPCAddress == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.RPC.MaxRequestBytes <= 0 {
		cfg.RPC.MaxRequestBytes = 1 << 20
	}
	cfg.Genesis.normalize()
}

// applyEnv lets deployments relocate the listener and the data directory
// without editing the file.
func (cfg *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvRPCAddress)); v != "" {
		cfg.RPCAddress = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEnvironment)); v != "" {
		cfg.Environment = v
	}
}

func ensureKeystore(configPath string, cfg *Config, o options) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, o.passphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string, o options) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, o.passphrase); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.OperatorKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
