// Provide primitive to work with a bundler RPC
// Bundler RPC is stateless
package bundler

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-smartaccount/pkg/logger"
)

// RPCError is a JSON-RPC error returned by the bundler.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    interface{}
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s: JSON-RPC error %d: %s (data: %v)", e.Method, e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("%s: JSON-RPC error %d: %s", e.Method, e.Code, e.Message)
}

// BundlerClient defines a client for interacting with an EIP-4337 bundler RPC endpoint.
type BundlerClient struct {
	client *rpc.Client
	logger logger.Logger
}

// NewBundlerClient creates a new BundlerClient that connects to the given URL.
func NewBundlerClient(ctx context.Context, url string, lgr logger.Logger) (*BundlerClient, error) {
	// DialContext picks the transport from the URL scheme, bundlers are usually plain HTTP
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error creating bundler client: %w", err)
	}
	return &BundlerClient{client: c, logger: logger.EnsureLogger(lgr)}, nil
}

// Close closes the underlying RPC client connection.
func (bc *BundlerClient) Close() {
	bc.client.Close()
}

func (bc *BundlerClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	bc.logger.Debug("bundler request", "method", method)

	err := bc.client.CallContext(ctx, result, method, args...)
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		out := &RPCError{Method: method, Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			out.Data = dataErr.ErrorData()
		}
		return out
	}
	return fmt.Errorf("%s: %w", method, err)
}

// ChainID returns the chain the bundler is serving.
func (bc *BundlerClient) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := bc.call(ctx, &result, "eth_chainId"); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

// SupportedEntryPoints lists the EntryPoint contracts accepted by the bundler.
func (bc *BundlerClient) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var result []common.Address
	if err := bc.call(ctx, &result, "eth_supportedEntryPoints"); err != nil {
		return nil, err
	}
	return result, nil
}

// SendUserOperation sends a UserOperation to the bundler and returns its hash.
func (bc *BundlerClient) SendUserOperation(
	ctx context.Context,
	userOp *userop.UserOperation,
	entrypoint common.Address,
) (common.Hash, error) {
	var hash common.Hash

	bc.logger.Debug("sending user operation",
		"sender", userOp.Sender.Hex(),
		"nonce", userOp.Nonce,
		"entrypoint", entrypoint.Hex(),
		"paymasterAndData", hexutil.Encode(userOp.PaymasterAndData))

	// Some bundlers require EIP-55 checksummed addresses for EntryPoint
	if err := bc.call(ctx, &hash, "eth_sendUserOperation", userOp, entrypoint.Hex()); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// EstimateUserOperationGas estimates the gas required for a UserOperation.
// https://eips.ethereum.org/EIPS/eip-4337#rpc-methods-eth-namespace
// The signature field is ignored by the wallet, so that the operation will not require user's approval.
// Still, it might require putting a "semi-valid" signature (e.g. a signature in the right length)
func (bc *BundlerClient) EstimateUserOperationGas(
	ctx context.Context,
	userOp *userop.UserOperation,
	entrypoint common.Address,
) (*GasEstimation, error) {
	var result GasEstimation
	if err := bc.call(ctx, &result, "eth_estimateUserOperationGas", userOp, entrypoint.Hex()); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUserOperationByHash fetches a UserOperation by its hash. It returns nil
// when the bundler does not know the operation.
func (bc *BundlerClient) GetUserOperationByHash(ctx context.Context, hash common.Hash) (*UserOperationByHash, error) {
	var result *UserOperationByHash
	if err := bc.call(ctx, &result, "eth_getUserOperationByHash", hash); err != nil {
		return nil, err
	}
	return result, nil
}

// GetUserOperationReceipt fetches the receipt of a UserOperation. It returns
// nil while the operation is not yet included in a block.
func (bc *BundlerClient) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	var result *UserOperationReceipt
	if err := bc.call(ctx, &result, "eth_getUserOperationReceipt", hash); err != nil {
		return nil, err
	}
	return result, nil
}

// MaxPriorityFeePerGas asks a rundler based bundler for the priority fee it
// requires to include an operation.
func (bc *BundlerClient) MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := bc.call(ctx, &result, "rundler_maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}
