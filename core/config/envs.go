package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

type ChainEnv string

const (
	SepoliaEnv     = ChainEnv("sepolia")
	BaseSepoliaEnv = ChainEnv("base-sepolia")

	// EntryPoint v0.6, same address on every supported chain
	DefaultEntrypointAddressHex = "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"
	// MultiOwnerModularAccountFactory
	DefaultFactoryAddressHex = "0x000000e92D78D90000007F0082006FDA09BD5f11"

	defaultPollInterval = 2 * time.Second
	defaultWaitTimeout  = 2 * time.Minute
)

// ChainConfig describes the network a smart account lives on. Every field can be
// overridden from a YAML file.
type ChainConfig struct {
	Name              string        `yaml:"name"`
	ChainID           int64         `yaml:"chain_id"`
	AARpcBaseURL      string        `yaml:"aa_rpc_base_url"`
	EntrypointAddress string        `yaml:"entrypoint_address"`
	FactoryAddress    string        `yaml:"factory_address"`
	ExplorerURL       string        `yaml:"explorer_url"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	WaitTimeout       time.Duration `yaml:"wait_timeout"`
}

var chains = map[ChainEnv]ChainConfig{
	SepoliaEnv: {
		Name:              string(SepoliaEnv),
		ChainID:           11155111,
		AARpcBaseURL:      "https://eth-sepolia.g.alchemy.com/v2/",
		EntrypointAddress: DefaultEntrypointAddressHex,
		FactoryAddress:    DefaultFactoryAddressHex,
		ExplorerURL:       "https://sepolia.etherscan.io",
		PollInterval:      defaultPollInterval,
		WaitTimeout:       defaultWaitTimeout,
	},
	BaseSepoliaEnv: {
		Name:              string(BaseSepoliaEnv),
		ChainID:           84532,
		AARpcBaseURL:      "https://base-sepolia.g.alchemy.com/v2/",
		EntrypointAddress: DefaultEntrypointAddressHex,
		FactoryAddress:    DefaultFactoryAddressHex,
		ExplorerURL:       "https://sepolia.basescan.org",
		PollInterval:      defaultPollInterval,
		WaitTimeout:       defaultWaitTimeout,
	},
}

// LoadChainConfig returns the built-in settings of env (sepolia when empty),
// overridden by the YAML file at path if one is given.
func LoadChainConfig(env ChainEnv, path string) (*ChainConfig, error) {
	if env == "" {
		env = SepoliaEnv
	}

	preset, ok := chains[env]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %q", env)
	}
	chain := preset

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		// fields absent from the file keep their preset value
		if err := yaml.Unmarshal(data, &chain); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := chain.validate(); err != nil {
		return nil, err
	}
	return &chain, nil
}

func (c *ChainConfig) validate() error {
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive, got %d", c.ChainID)
	}
	if !common.IsHexAddress(c.EntrypointAddress) {
		return fmt.Errorf("invalid entrypoint_address %q", c.EntrypointAddress)
	}
	if !common.IsHexAddress(c.FactoryAddress) {
		return fmt.Errorf("invalid factory_address %q", c.FactoryAddress)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = defaultWaitTimeout
	}
	return nil
}

func (c *ChainConfig) Entrypoint() common.Address {
	return common.HexToAddress(c.EntrypointAddress)
}

func (c *ChainConfig) Factory() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// TxURL links a transaction hash on the chain's block explorer.
func (c *ChainConfig) TxURL(hash common.Hash) string {
	if c.ExplorerURL == "" {
		return hash.Hex()
	}
	return c.ExplorerURL + "/tx/" + hash.Hex()
}

// SupportedChains lists the chains that have built-in settings.
func SupportedChains() []ChainEnv {
	return []ChainEnv{SepoliaEnv, BaseSepoliaEnv}
}
