package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-smartaccount/core/chainio/signer"
	"github.com/AvaProtocol/ap-smartaccount/core/testutil"
)

var testRecipient = common.HexToAddress("0x7E3D0a5b5e6e1b0a0a0F7d1D6C7B2b2F6E0F0A11")

func newFakeChain(t *testing.T) *testutil.RPCServer {
	chain := testutil.NewRPCServer(t)
	chain.Result("eth_chainId", "0xaa36a7")
	chain.Result("eth_getTransactionCount", "0x4")
	chain.Result("eth_maxPriorityFeePerGas", "0x3b9aca00")
	chain.Result("eth_getBlockByNumber", testutil.Header(big.NewInt(10_000_000_000)))
	chain.Result("eth_estimateGas", "0xc350")
	chain.Result("eth_sendRawTransaction", common.Hash{}.Hex())
	chain.Result("eth_getBalance", "0x2386f26fc10000")
	return chain
}

func newTestWallet(t *testing.T, url string) *Wallet {
	t.Helper()
	s, err := signer.FromPrivateKeyHex(testutil.TestPrivateKey)
	require.NoError(t, err)

	w, err := New(context.Background(), url, s, nil)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func sentTx(t *testing.T, chain *testutil.RPCServer) *types.Transaction {
	t.Helper()
	calls := chain.Calls("eth_sendRawTransaction")
	require.Len(t, calls, 1)

	var raw hexutil.Bytes
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &raw))
	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(raw))
	return tx
}

func TestSendTransaction(t *testing.T) {
	chain := newFakeChain(t)
	w := newTestWallet(t, chain.URL)
	assert.Equal(t, testutil.SepoliaChainID, w.ChainID().Int64())
	assert.Equal(t, testutil.TestOwner, w.Address())

	value := big.NewInt(100_000_000_000_000_000)
	hash, err := w.SendTransaction(context.Background(), testRecipient, value)
	require.NoError(t, err)

	tx := sentTx(t, chain)
	assert.Equal(t, tx.Hash(), hash)
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(4), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, testRecipient, *tx.To())
	assert.Equal(t, value.String(), tx.Value().String())
	// 1 gwei tip + 13%, 2 * 10 gwei base fee on top
	assert.Equal(t, int64(1_130_000_000), tx.GasTipCap().Int64())
	assert.Equal(t, int64(21_130_000_000), tx.GasFeeCap().Int64())

	sender, err := types.Sender(types.LatestSignerForChainID(w.ChainID()), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), sender)

	assert.Empty(t, chain.Calls("eth_estimateGas"), "plain transfers use the intrinsic gas")
}

func TestSendTransactionWithDataEstimatesGas(t *testing.T) {
	chain := newFakeChain(t)
	w := newTestWallet(t, chain.URL)

	_, err := w.SendTransactionWithData(context.Background(), testRecipient, nil, []byte{0x01, 0x02})
	require.NoError(t, err)

	assert.Len(t, chain.Calls("eth_estimateGas"), 1)
	assert.Equal(t, uint64(50000), sentTx(t, chain).Gas())
}

func TestSendTransactionRejected(t *testing.T) {
	chain := newFakeChain(t)
	chain.Fail("eth_sendRawTransaction", -32000, "insufficient funds for gas * price + value")
	w := newTestWallet(t, chain.URL)

	_, err := w.SendTransaction(context.Background(), testRecipient, big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestNewFailsWithoutChainID(t *testing.T) {
	chain := testutil.NewRPCServer(t)
	s, err := signer.FromPrivateKeyHex(testutil.TestPrivateKey)
	require.NoError(t, err)

	_, err = New(context.Background(), chain.URL, s, nil)
	assert.Error(t, err)
}

func TestBalance(t *testing.T) {
	chain := newFakeChain(t)
	w := newTestWallet(t, chain.URL)

	balance, err := w.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000", balance.String())
}
