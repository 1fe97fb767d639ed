package smartaccount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	maxPollInterval = 5 * time.Second
	backoffFactor   = 1.5
)

// poll calls fn with exponential backoff until it reports done, fails, the
// parent context ends or the chain wait timeout elapses. timeoutErr is
// returned in the last case.
func (c *Client) poll(ctx context.Context, timeoutErr error, fn func(ctx context.Context) (bool, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.chain.WaitTimeout)
	defer cancel()

	interval := c.chain.PollInterval
	maxInterval := maxPollInterval
	if interval > maxInterval {
		maxInterval = interval
	}

	for {
		done, err := fn(waitCtx)
		if done {
			return nil
		}
		if err != nil && waitCtx.Err() == nil {
			return err
		}

		timer := time.NewTimer(interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", timeoutErr, c.chain.WaitTimeout)
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * backoffFactor)
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}

// WaitForUserOperationTransaction blocks until the operation is included and
// returns the hash of the bundle transaction that carried it.
func (c *Client) WaitForUserOperationTransaction(ctx context.Context, result *UserOperationResult) (common.Hash, error) {
	var txHash common.Hash
	attempts := 0

	err := c.poll(ctx, ErrUserOperationTimeout, func(ctx context.Context) (bool, error) {
		attempts++
		receipt, err := c.bundler.GetUserOperationReceipt(ctx, result.Hash)
		if err != nil {
			return false, err
		}
		if receipt == nil {
			c.logger.Debug("user operation pending", "hash", result.Hash.Hex(), "attempt", attempts)
			return false, nil
		}

		txHash = receipt.Receipt.TransactionHash
		if !receipt.Success {
			c.logger.Warn("user operation included but reverted", "hash", result.Hash.Hex(), "reason", receipt.Reason)
		}
		return true, nil
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("user operation %s: %w", result.Hash.Hex(), err)
	}

	c.logger.Info("user operation included", "hash", result.Hash.Hex(), "tx", txHash.Hex(), "attempts", attempts)
	return txHash, nil
}

// WaitForTransactionReceipt polls the chain until txHash is mined.
func (c *Client) WaitForTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt

	err := c.poll(ctx, ErrTransactionTimeout, func(ctx context.Context) (bool, error) {
		r, err := c.eth.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		receipt = r
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txHash.Hex(), err)
	}
	return receipt, nil
}
