// Package smartaccount builds a client for a multi-owner modular smart account
// that is driven through an account abstraction RPC endpoint.
package smartaccount

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-smartaccount/core/chainio/aa"
	"github.com/AvaProtocol/ap-smartaccount/core/chainio/signer"
	"github.com/AvaProtocol/ap-smartaccount/core/config"
	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/gasmanager"
	"github.com/AvaProtocol/ap-smartaccount/pkg/logger"
)

type ClientConfig struct {
	Signer *signer.Signer
	Chain  *config.ChainConfig
	APIKey string
	// GasManagerPolicyID enables sponsorship of every user operation when set
	GasManagerPolicyID string

	// RPCURL replaces Chain.AARpcBaseURL + APIKey, mostly for local bundlers
	RPCURL string
	Logger logger.Logger
}

func (c ClientConfig) rpcURL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return c.Chain.AARpcBaseURL + c.APIKey
}

// Client is bound to one chain, one signer and optionally one gas policy.
type Client struct {
	eth        *ethclient.Client
	bundler    *bundler.BundlerClient
	gasManager *gasmanager.Client
	nonces     *bundler.NonceManager

	signer  *signer.Signer
	chain   *config.ChainConfig
	chainID *big.Int
	owners  []common.Address
	address common.Address

	logger logger.Logger
}

// NewClient connects to the account abstraction endpoint and resolves the
// counterfactual account address of the signer. Nothing is retried.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("smart account client requires a signer")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("smart account client requires a chain config")
	}
	if cfg.APIKey == "" && cfg.RPCURL == "" {
		return nil, fmt.Errorf("smart account client requires an API key")
	}

	lgr := logger.EnsureLogger(cfg.Logger)
	url := cfg.rpcURL()

	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("cannot dial chain rpc: %w", err)
	}

	bundlerClient, err := bundler.NewBundlerClient(ctx, url, lgr)
	if err != nil {
		eth.Close()
		return nil, err
	}

	c := &Client{
		eth:     eth,
		bundler: bundlerClient,
		nonces:  bundler.NewNonceManager(lgr),
		signer:  cfg.Signer,
		chain:   cfg.Chain,
		owners:  []common.Address{cfg.Signer.Address()},
		logger:  lgr,
	}
	if cfg.GasManagerPolicyID != "" {
		c.gasManager = gasmanager.NewClient(url, cfg.GasManagerPolicyID, lgr)
	}

	if err := c.handshake(ctx); err != nil {
		c.Close()
		return nil, err
	}

	lgr.Info("smart account client ready",
		"chain", cfg.Chain.Name,
		"account", c.address.Hex(),
		"owner", cfg.Signer.Address().Hex(),
		"sponsored", c.Sponsored())
	return c, nil
}

func (c *Client) handshake(ctx context.Context) error {
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("cannot read chain id: %w", err)
	}
	if chainID.Cmp(big.NewInt(c.chain.ChainID)) != 0 {
		return fmt.Errorf("%w: rpc reports %s, %s expects %d", ErrChainMismatch, chainID, c.chain.Name, c.chain.ChainID)
	}
	c.chainID = chainID

	entrypoints, err := c.bundler.SupportedEntryPoints(ctx)
	if err != nil {
		return fmt.Errorf("cannot read supported entrypoints: %w", err)
	}
	if !lo.Contains(entrypoints, c.chain.Entrypoint()) {
		return fmt.Errorf("%w: %s", ErrEntryPointNotSupported, c.chain.Entrypoint().Hex())
	}

	address, err := aa.GetSenderAddress(ctx, c.eth, c.chain.Factory(), c.owners, aa.DefaultSalt)
	if err != nil {
		return fmt.Errorf("cannot resolve account address: %w", err)
	}
	c.address = address
	return nil
}

// Address is the counterfactual account address. It is derived from the
// owners and the factory, the account may not be deployed yet.
func (c *Client) Address() common.Address {
	return c.address
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) Sponsored() bool {
	return c.gasManager != nil
}

// GasPolicyID is empty when the account pays for its own gas.
func (c *Client) GasPolicyID() string {
	if c.gasManager == nil {
		return ""
	}
	return c.gasManager.PolicyID()
}

// Balance returns the account balance in wei at the latest block.
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot read balance of %s: %w", c.address.Hex(), err)
	}
	return balance, nil
}

// Deposit returns the account's prefund held by the EntryPoint.
func (c *Client) Deposit(ctx context.Context) (*big.Int, error) {
	return aa.GetDeposit(ctx, c.eth, c.chain.Entrypoint(), c.address)
}

func (c *Client) IsDeployed(ctx context.Context) (bool, error) {
	return aa.IsDeployed(ctx, c.eth, c.address)
}

func (c *Client) Close() {
	c.bundler.Close()
	c.eth.Close()
}
