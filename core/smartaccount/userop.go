package smartaccount

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/AvaProtocol/ap-smartaccount/core/chainio/aa"
	"github.com/AvaProtocol/ap-smartaccount/pkg/eip1559"
	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/userop"
)

// UserOperationCallData is the single call the account executes.
type UserOperationCallData struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// UserOperationResult is what the bundler accepted.
type UserOperationResult struct {
	Hash    common.Hash
	Request *userop.UserOperation
}

// SendUserOperation builds, prices, signs and submits a user operation for
// call. It does not wait for inclusion.
func (c *Client) SendUserOperation(ctx context.Context, call UserOperationCallData) (*UserOperationResult, error) {
	op, err := c.buildUserOperation(ctx, call)
	if err != nil {
		return nil, err
	}

	if err := c.applyGas(ctx, op); err != nil {
		return nil, err
	}

	userOpHash := op.GetUserOpHash(c.chain.Entrypoint(), c.chainID)
	op.Signature, err = c.signer.SignUserOpHash(userOpHash)
	if err != nil {
		return nil, fmt.Errorf("cannot sign user operation: %w", err)
	}

	hash, err := c.bundler.SendUserOperation(ctx, op, c.chain.Entrypoint())
	if err != nil {
		c.nonces.ResetNonce(op.Sender)
		return nil, fmt.Errorf("cannot send user operation: %w", err)
	}
	c.nonces.IncrementNonce(op.Sender, op.Nonce)

	if hash != userOpHash {
		c.logger.Warn("bundler returned a different user operation hash", "local", userOpHash.Hex(), "bundler", hash.Hex())
	}

	c.logger.Info("user operation sent",
		"hash", hash.Hex(),
		"sender", op.Sender.Hex(),
		"nonce", op.Nonce.String(),
		"sponsored", len(op.PaymasterAndData) > 0)

	return &UserOperationResult{Hash: hash, Request: op.Copy()}, nil
}

func (c *Client) buildUserOperation(ctx context.Context, call UserOperationCallData) (*userop.UserOperation, error) {
	calldata, err := aa.PackExecute(call.Target, call.Value, call.Data)
	if err != nil {
		return nil, fmt.Errorf("cannot pack execute calldata: %w", err)
	}

	nonce, err := c.nonces.GetNextNonce(c.address, func() (*big.Int, error) {
		return aa.GetNonce(ctx, c.eth, c.chain.Entrypoint(), c.address, nil)
	})
	if err != nil {
		return nil, err
	}

	deployed, err := c.IsDeployed(ctx)
	if err != nil {
		return nil, err
	}

	var initCode []byte
	if !deployed {
		initCode, err = aa.GetInitCode(c.chain.Factory(), c.owners, aa.DefaultSalt)
		if err != nil {
			return nil, fmt.Errorf("cannot build init code: %w", err)
		}
		c.logger.Debug("account not deployed, attaching init code", "account", c.address.Hex())
	}

	return &userop.UserOperation{
		Sender:               c.address,
		Nonce:                nonce,
		InitCode:             initCode,
		CallData:             calldata,
		CallGasLimit:         big.NewInt(0),
		VerificationGasLimit: big.NewInt(0),
		PreVerificationGas:   big.NewInt(0),
		MaxFeePerGas:         big.NewInt(0),
		MaxPriorityFeePerGas: big.NewInt(0),
		PaymasterAndData:     []byte{},
		Signature:            aa.DummySignature,
	}, nil
}

// applyGas fills fees and gas limits: from the gas manager when the client is
// sponsored, from the bundler estimate otherwise.
func (c *Client) applyGas(ctx context.Context, op *userop.UserOperation) error {
	if c.gasManager != nil {
		sponsorship, err := c.gasManager.RequestGasAndPaymasterAndData(ctx, op, c.chain.Entrypoint(), aa.DummySignature, nil)
		if err != nil {
			return fmt.Errorf("gas sponsorship rejected: %w", err)
		}
		sponsorship.Apply(op)
		c.logger.Debug("gas sponsored",
			"policy", c.gasManager.PolicyID(),
			"paymasterAndData", hexutil.Encode(op.PaymasterAndData))
		return nil
	}

	maxFee, tip, err := c.suggestFees(ctx)
	if err != nil {
		return err
	}
	op.MaxFeePerGas = maxFee
	op.MaxPriorityFeePerGas = tip

	estimate, err := c.bundler.EstimateUserOperationGas(ctx, op, c.chain.Entrypoint())
	if err != nil {
		return fmt.Errorf("cannot estimate user operation gas: %w", err)
	}
	op.CallGasLimit = estimate.CallGasLimit
	op.VerificationGasLimit = estimate.VerificationGasLimit
	op.PreVerificationGas = estimate.PreVerificationGas

	c.logger.Debug("gas estimated",
		"callGasLimit", op.CallGasLimit.String(),
		"verificationGasLimit", op.VerificationGasLimit.String(),
		"preVerificationGas", op.PreVerificationGas.String(),
		"maxFeePerGas", maxFee.String(),
		"maxPriorityFeePerGas", tip.String())
	return nil
}

// suggestFees prefers the priority fee the bundler asks for and falls back to
// the node suggestion when the bundler does not support it.
func (c *Client) suggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := c.bundler.MaxPriorityFeePerGas(ctx)
	if err != nil {
		c.logger.Debug("rundler_maxPriorityFeePerGas unavailable, using node fee suggestion", "error", err)
		maxFee, tip, err := eip1559.SuggestFee(ctx, c.eth)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot suggest fees: %w", err)
		}
		return maxFee, tip, nil
	}

	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read latest header: %w", err)
	}
	return eip1559.MaxFeeForBaseFee(header.BaseFee, tip), tip, nil
}

// GetUserOperationReceipt returns nil while the operation is pending.
func (c *Client) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error) {
	return c.bundler.GetUserOperationReceipt(ctx, hash)
}
