package eip1559

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// MinPriorityFee keeps operations attractive for bundlers on quiet testnets
	MinPriorityFee = big.NewInt(1_000_000_000) // 1 gwei
)

// FeeSource is the part of ethclient.Client needed to suggest fees.
type FeeSource interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// SuggestFee returns (maxFeePerGas, maxPriorityFeePerGas).
func SuggestFee(ctx context.Context, client FeeSource) (*big.Int, *big.Int, error) {
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	// 13% buffer on the tip
	maxPriorityFeePerGas := AddPercent(tipCap, 13)
	if maxPriorityFeePerGas.Cmp(MinPriorityFee) < 0 {
		maxPriorityFeePerGas = new(big.Int).Set(MinPriorityFee)
	}

	return MaxFeeForBaseFee(header.BaseFee, maxPriorityFeePerGas), maxPriorityFeePerGas, nil
}

// MaxFeeForBaseFee returns 2 * baseFee + tip, so the fee survives the base fee
// doubling before inclusion. Pre EIP-1559 chains (nil base fee) pay the tip.
func MaxFeeForBaseFee(baseFee, tip *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tip)
	}
	return new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
}

// AddPercent returns v * (100 + pct) / 100
func AddPercent(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(100+pct))
	return out.Div(out, big.NewInt(100))
}
