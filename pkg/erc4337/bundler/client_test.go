package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/userop"
)

var testEntrypoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeBundler answers JSON-RPC calls with canned results keyed by method
type fakeBundler struct {
	mu       sync.Mutex
	results  map[string]string
	errors   map[string]string
	requests []rpcRequest
}

func newFakeBundler(t *testing.T) (*fakeBundler, *BundlerClient) {
	f := &fakeBundler{results: map[string]string{}, errors: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("invalid request: %v", err)
			return
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		result, hasResult := f.results[req.Method]
		rpcErr, hasErr := f.errors[req.Method]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case hasErr:
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":` + rpcErr + `}`))
		case hasResult:
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
		default:
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewBundlerClient(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return f, client
}

func (f *fakeBundler) lastRequest() rpcRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func testUserOp() *userop.UserOperation {
	return &userop.UserOperation{
		Sender:   common.HexToAddress("0x7c3a76086588230c7B3f4839A4c1F5BBafcd57C6"),
		Nonce:    big.NewInt(1),
		CallData: []byte{0xb6, 0x1d, 0x27, 0xf6},
	}
}

func TestSendUserOperation(t *testing.T) {
	f, client := newFakeBundler(t)
	f.results["eth_sendUserOperation"] = `"0x1111111111111111111111111111111111111111111111111111111111111111"`

	hash, err := client.SendUserOperation(context.Background(), testUserOp(), testEntrypoint)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"), hash)

	req := f.lastRequest()
	require.Len(t, req.Params, 2)
	assert.Equal(t, `"0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"`, string(req.Params[1]))

	var sent map[string]string
	require.NoError(t, json.Unmarshal(req.Params[0], &sent))
	assert.Equal(t, "0x1", sent["nonce"])
	assert.Equal(t, "0xb61d27f6", sent["callData"])
}

func TestSendUserOperationRPCError(t *testing.T) {
	f, client := newFakeBundler(t)
	f.errors["eth_sendUserOperation"] = `{"code":-32602,"message":"invalid UserOperation signature"}`

	_, err := client.SendUserOperation(context.Background(), testUserOp(), testEntrypoint)
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, "eth_sendUserOperation", rpcErr.Method)
	assert.Contains(t, rpcErr.Message, "signature")
}

func TestEstimateUserOperationGasAcceptsHexAndNumbers(t *testing.T) {
	f, client := newFakeBundler(t)
	f.results["eth_estimateUserOperationGas"] = `{"preVerificationGas":"0xc350","verificationGasLimit":100000,"callGasLimit":"21000"}`

	gas, err := client.EstimateUserOperationGas(context.Background(), testUserOp(), testEntrypoint)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), gas.PreVerificationGas.Int64())
	assert.Equal(t, int64(100000), gas.VerificationGasLimit.Int64())
	assert.Equal(t, int64(21000), gas.CallGasLimit.Int64())
}

func TestGetUserOperationReceiptPending(t *testing.T) {
	f, client := newFakeBundler(t)
	f.results["eth_getUserOperationReceipt"] = `null`

	receipt, err := client.GetUserOperationReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestGetUserOperationReceiptMined(t *testing.T) {
	f, client := newFakeBundler(t)
	f.results["eth_getUserOperationReceipt"] = `{
		"userOpHash":"0x0000000000000000000000000000000000000000000000000000000000000001",
		"sender":"0x7c3a76086588230c7B3f4839A4c1F5BBafcd57C6",
		"nonce":"0x1",
		"paymaster":null,
		"actualGasCost":"0x2386f26fc10000",
		"actualGasUsed":"0x1d4c0",
		"success":true,
		"logs":[],
		"receipt":{
			"transactionHash":"0x00000000000000000000000000000000000000000000000000000000000000aa",
			"blockHash":"0x00000000000000000000000000000000000000000000000000000000000000bb",
			"blockNumber":"0x10",
			"gasUsed":"0x1d4c0",
			"status":"0x1"
		}
	}`

	receipt, err := client.GetUserOperationReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Success)
	assert.Nil(t, receipt.Paymaster)
	assert.Equal(t, common.HexToHash("0xaa"), receipt.Receipt.TransactionHash)
	assert.Equal(t, "10000000000000000", receipt.GasCost().String())
}

func TestSupportedEntryPointsAndPriorityFee(t *testing.T) {
	f, client := newFakeBundler(t)
	f.results["eth_supportedEntryPoints"] = `["0x5ff137d4b0fdcd49dca30c7cf57e578a026d2789"]`
	f.results["rundler_maxPriorityFeePerGas"] = `"0x3b9aca00"`
	f.results["eth_chainId"] = `"0xaa36a7"`

	eps, err := client.SupportedEntryPoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{testEntrypoint}, eps)

	fee, err := client.MaxPriorityFeePerGas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), fee.Int64())

	chainID, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), chainID.Int64())
}

func TestNonceManager(t *testing.T) {
	nm := NewNonceManager(nil)
	sender := common.HexToAddress("0x01")
	onChain := big.NewInt(5)
	fetch := func() (*big.Int, error) { return onChain, nil }

	n, err := nm.GetNextNonce(sender, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.Int64())

	nm.IncrementNonce(sender, n)
	n, err = nm.GetNextNonce(sender, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n.Int64(), "pending operation should advance the nonce")

	onChain = big.NewInt(9)
	n, err = nm.GetNextNonce(sender, fetch)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n.Int64(), "chain state wins when it is ahead")

	nm.ResetNonce(sender)
	_, cached := nm.GetCachedNonce(sender)
	assert.False(t, cached)

	_, err = nm.GetNextNonce(sender, func() (*big.Int, error) { return nil, errors.New("rpc down") })
	assert.Error(t, err)
}
