package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment keys honored by FromEnv and the sample .env.
const (
	EnvHostRPCAddress         = "HOST_RPC_ADDRESS"
	EnvStartBlock             = "START_BLOCK"
	EnvConfirmations          = "CONFIRMATIONS"
	EnvPollInterval           = "POLL_INTERVAL"
	EnvCounterContractAddress = "COUNTER_CONTRACT_ADDRESS"
	EnvL1RPCAddress           = "L1_RPC_ADDRESS"
	EnvStateRootContractAddr  = "STATE_ROOT_CONTRACT_ADDRESS"
	EnvPrefundedSecret        = "PREFUNDED_SECRET"
	EnvDBPath                 = "DB_PATH"
)

const defaultDBPath = "root-relay.db"

// Config is the process-wide configuration, resolved once at startup and
// passed by reference from then on.
type Config struct {
	Version int           `yaml:"version"`
	Host    HostConfig    `yaml:"host"`
	Counter CounterConfig `yaml:"counter"`
	L1      L1Config      `yaml:"l1"`
	Global  GlobalConfig  `yaml:"global"`
}

type GlobalConfig struct {
	DBPath string `yaml:"db_path"`
}

// HostConfig describes the execution node whose notification stream is
// consumed.
type HostConfig struct {
	RPCURL        string `yaml:"rpc_url"`
	StartBlock    string `yaml:"start_block"`
	Confirmations uint64 `yaml:"confirmations"`
	PollInterval  string `yaml:"poll_interval"`
}

// Poll returns the parsed poll interval, defaulting to one second.
func (h HostConfig) Poll() time.Duration {
	if h.PollInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(h.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// CounterConfig names the contract whose events qualify for relaying.
type CounterConfig struct {
	ContractAddress string `yaml:"contract_address"`
}

// Address returns the parsed counter contract address.
func (c CounterConfig) Address() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// L1Config describes the destination chain. Validation is deferred to the
// first notification requiring an L1 call; see Validate.
type L1Config struct {
	RPCURL            string `yaml:"rpc_url"`
	StateRootContract string `yaml:"state_root_contract"`
	PrefundedSecret   string `yaml:"prefunded_secret"`
}

// Validate checks the L1 coordinates and signing credential. Called at the
// point of first use rather than at startup.
func (l L1Config) Validate() error {
	if l.RPCURL == "" {
		return fmt.Errorf("%s is required", EnvL1RPCAddress)
	}
	if l.StateRootContract == "" {
		return fmt.Errorf("%s is required", EnvStateRootContractAddr)
	}
	if !common.IsHexAddress(l.StateRootContract) {
		return fmt.Errorf("%s: %q is not a valid address", EnvStateRootContractAddr, l.StateRootContract)
	}
	if l.PrefundedSecret == "" {
		return fmt.Errorf("%s is required", EnvPrefundedSecret)
	}
	if _, err := l.PrivateKey(); err != nil {
		return err
	}
	return nil
}

// ContractAddress returns the parsed destination contract address.
func (l L1Config) ContractAddress() common.Address {
	return common.HexToAddress(l.StateRootContract)
}

// PrivateKey parses the prefunded signing key.
func (l L1Config) PrivateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(l.PrefundedSecret, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvPrefundedSecret, err)
	}
	return key, nil
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load resolves configuration from a YAML file when one exists at path, and
// from the environment otherwise. The file may reference environment values
// with ${NAME}; a .env next to the file (or in the working directory for the
// env path) is loaded first.
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return loadFile(path)
		}
	}
	return FromEnv()
}

func loadFile(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FromEnv builds the configuration from plain environment variables.
func FromEnv() (*Config, error) {
	if err := loadDotEnv("."); err != nil {
		return nil, err
	}

	cfg := &Config{
		Version: 1,
		Host: HostConfig{
			RPCURL:       os.Getenv(EnvHostRPCAddress),
			StartBlock:   os.Getenv(EnvStartBlock),
			PollInterval: os.Getenv(EnvPollInterval),
		},
		Counter: CounterConfig{
			ContractAddress: os.Getenv(EnvCounterContractAddress),
		},
		L1: L1Config{
			RPCURL:            os.Getenv(EnvL1RPCAddress),
			StateRootContract: os.Getenv(EnvStateRootContractAddr),
			PrefundedSecret:   os.Getenv(EnvPrefundedSecret),
		},
		Global: GlobalConfig{
			DBPath: os.Getenv(EnvDBPath),
		},
	}

	if raw := os.Getenv(EnvConfirmations); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", EnvConfirmations, raw, err)
		}
		cfg.Host.Confirmations = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// Validate enforces what must hold before processing starts. L1 settings are
// deliberately excluded: they are checked at first use so the bridge can run
// against commits that carry no qualifying events.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if c.Host.RPCURL == "" {
		return fmt.Errorf("%s is required", EnvHostRPCAddress)
	}
	if c.Counter.ContractAddress == "" {
		return fmt.Errorf("%s is required", EnvCounterContractAddress)
	}
	if !common.IsHexAddress(c.Counter.ContractAddress) {
		return fmt.Errorf("%s: %q is not a valid address", EnvCounterContractAddress, c.Counter.ContractAddress)
	}
	if c.Global.DBPath == "" {
		c.Global.DBPath = defaultDBPath
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
