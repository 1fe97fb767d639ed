package smartaccount

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/AvaProtocol/ap-smartaccount/core/config"
	"github.com/AvaProtocol/ap-smartaccount/core/testutil"
)

var (
	testOwner   = testutil.TestOwner
	testAccount = common.HexToAddress("0x7E3D0a5b5e6e1b0a0a0F7d1D6C7B2b2F6E0F0A11")
	testTxHash  = common.HexToHash("0xabababababababababababababababababababababababababababababababab")

	getAddressSelector = crypto.Keccak256([]byte("getAddress(uint256,address[])"))[:4]
	getNonceSelector   = crypto.Keccak256([]byte("getNonce(address,uint192)"))[:4]
)

// newFakeNode serves the chain, bundler and gas manager methods of an
// account abstraction endpoint from one URL.
func newFakeNode(t *testing.T) (*testutil.RPCServer, string) {
	t.Helper()

	n := testutil.NewRPCServer(t)
	n.Result("eth_chainId", "0xaa36a7")
	n.Result("eth_supportedEntryPoints", []string{config.DefaultEntrypointAddressHex})
	n.Result("eth_getCode", "0x")
	n.Result("eth_getBalance", "0xde0b6b3a7640000")
	n.Result("rundler_maxPriorityFeePerGas", "0x3b9aca00")
	n.Result("eth_maxPriorityFeePerGas", "0x77359400")
	n.Result("eth_getBlockByNumber", testutil.Header(big.NewInt(10_000_000_000)))
	n.Result("eth_estimateUserOperationGas", map[string]string{
		"preVerificationGas":   "0xc350",
		"verificationGasLimit": "0x30d40",
		"callGasLimit":         "0x5208",
	})
	n.Result("eth_getUserOperationReceipt", nil)
	n.Result("eth_getTransactionReceipt", nil)

	n.Handle("eth_call", func(params []json.RawMessage) (interface{}, *testutil.RPCError) {
		input := testutil.CallInput(params)
		switch {
		case len(input) >= 4 && bytes.Equal(input[:4], getAddressSelector):
			return testutil.Word(testAccount.Bytes()), nil
		case len(input) >= 4 && bytes.Equal(input[:4], getNonceSelector):
			return testutil.Word(big.NewInt(5).Bytes()), nil
		}
		return nil, &testutil.RPCError{Code: 3, Message: "execution reverted"}
	})

	n.Handle("eth_sendUserOperation", func(params []json.RawMessage) (interface{}, *testutil.RPCError) {
		return testUserOpHash(params), nil
	})

	return n, n.URL
}

func testTxReceipt() *types.Receipt {
	return &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 120_000,
		Logs:              []*types.Log{},
		TxHash:            testTxHash,
		GasUsed:           120_000,
		EffectiveGasPrice: big.NewInt(11_000_000_000),
		BlockHash:         common.HexToHash("0x01"),
		BlockNumber:       big.NewInt(101),
	}
}

func testUserOpReceipt(hash string) map[string]interface{} {
	return map[string]interface{}{
		"userOpHash":    hash,
		"sender":        testAccount.Hex(),
		"nonce":         "0x5",
		"actualGasCost": "0x1c6bf52634000",
		"actualGasUsed": "0x1d4c0",
		"success":       true,
		"logs":          []interface{}{},
		"receipt": map[string]interface{}{
			"transactionHash": testTxHash.Hex(),
			"blockHash":       common.HexToHash("0x01").Hex(),
			"blockNumber":     "0x65",
			"gasUsed":         "0x1d4c0",
			"status":          "0x1",
		},
	}
}

func testChain() *config.ChainConfig {
	chain, err := config.LoadChainConfig(config.SepoliaEnv, "")
	if err != nil {
		panic(err)
	}
	chain.PollInterval = 5 * time.Millisecond
	chain.WaitTimeout = 200 * time.Millisecond
	return chain
}
