package eip1559

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeeSource struct {
	tip     *big.Int
	baseFee *big.Int
	err     error
}

func (f *fakeFeeSource) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return f.tip, f.err
}

func (f *fakeFeeSource) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func TestSuggestFee(t *testing.T) {
	src := &fakeFeeSource{tip: big.NewInt(2_000_000_000), baseFee: big.NewInt(10_000_000_000)}

	maxFee, tip, err := SuggestFee(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "2260000000", tip.String())
	assert.Equal(t, "22260000000", maxFee.String())
}

func TestSuggestFeeAppliesMinimumTip(t *testing.T) {
	src := &fakeFeeSource{tip: big.NewInt(1), baseFee: big.NewInt(100)}

	maxFee, tip, err := SuggestFee(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, MinPriorityFee.String(), tip.String())
	assert.Equal(t, new(big.Int).Add(big.NewInt(200), MinPriorityFee).String(), maxFee.String())
}

func TestSuggestFeeLegacyChain(t *testing.T) {
	src := &fakeFeeSource{tip: big.NewInt(3_000_000_000)}

	maxFee, tip, err := SuggestFee(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, tip.String(), maxFee.String())
}

func TestSuggestFeeError(t *testing.T) {
	_, _, err := SuggestFee(context.Background(), &fakeFeeSource{err: errors.New("boom")})
	assert.Error(t, err)
}
