package gasmanager

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/userop"
)

var (
	testEntrypoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	testSender     = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type capturedRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newServer(t *testing.T, reply string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOp() *userop.UserOperation {
	return &userop.UserOperation{
		Sender:   testSender,
		Nonce:    big.NewInt(3),
		CallData: []byte{0xb6, 0x1d, 0x27, 0xf6},
	}
}

func TestRequestSendsPolicyAndPartialOp(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, `{"jsonrpc":"2.0","id":1,"result":{
		"paymasterAndData":"0xabcdef",
		"callGasLimit":"0x5208",
		"verificationGasLimit":"0x186a0",
		"preVerificationGas":"0xc350",
		"maxFeePerGas":"0x3b9aca00",
		"maxPriorityFeePerGas":"0x5f5e100"}}`, &captured)

	client := NewClient(srv.URL, "policy-123", nil)
	sponsorship, err := client.RequestGasAndPaymasterAndData(context.Background(), testOp(), testEntrypoint, []byte{0x01}, nil)
	require.NoError(t, err)

	assert.Equal(t, requestMethod, captured.Method)
	require.Len(t, captured.Params, 1)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(captured.Params[0], &params))
	assert.Equal(t, "policy-123", params["policyId"])
	assert.Equal(t, testEntrypoint.Hex(), params["entryPoint"])
	assert.Equal(t, "0x01", params["dummySignature"])
	assert.NotContains(t, params, "overrides")

	op := params["userOperation"].(map[string]interface{})
	assert.Equal(t, "0x3", op["nonce"])
	assert.Equal(t, "0x", op["initCode"])
	assert.Equal(t, "0xb61d27f6", op["callData"])
	assert.NotContains(t, op, "signature")

	assert.Equal(t, []byte{0xab, 0xcd, 0xef}, sponsorship.PaymasterAndData)
	assert.Equal(t, int64(21000), sponsorship.CallGasLimit.Int64())
	assert.Equal(t, int64(100000), sponsorship.VerificationGasLimit.Int64())
	assert.Equal(t, int64(50000), sponsorship.PreVerificationGas.Int64())
	assert.Equal(t, int64(1_000_000_000), sponsorship.MaxFeePerGas.Int64())
	assert.Equal(t, int64(100_000_000), sponsorship.MaxPriorityFeePerGas.Int64())
}

func TestRequestWithFeeOverride(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, `{"jsonrpc":"2.0","id":1,"result":{"paymasterAndData":"0x01"}}`, &captured)

	client := NewClient(srv.URL, "policy-123", nil)
	_, err := client.RequestGasAndPaymasterAndData(context.Background(), testOp(), testEntrypoint, nil, &FeeOverride{
		MaxFeePerGas:         big.NewInt(2000),
		MaxPriorityFeePerGas: big.NewInt(100),
	})
	require.NoError(t, err)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(captured.Params[0], &params))
	overrides := params["overrides"].(map[string]interface{})
	assert.Equal(t, "0x7d0", overrides["maxFeePerGas"])
	assert.Equal(t, "0x64", overrides["maxPriorityFeePerGas"])
}

func TestRequestRejectedByPolicy(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"policy not found"}}`, &captured)

	client := NewClient(srv.URL, "missing", nil)
	_, err := client.RequestGasAndPaymasterAndData(context.Background(), testOp(), testEntrypoint, nil, nil)
	require.Error(t, err)

	var rpcErr *bundler.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, "policy not found", rpcErr.Message)
	assert.Equal(t, requestMethod, rpcErr.Method)
}

func TestRequestEmptyPaymasterData(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, `{"jsonrpc":"2.0","id":1,"result":{"paymasterAndData":"0x"}}`, &captured)

	client := NewClient(srv.URL, "policy-123", nil)
	_, err := client.RequestGasAndPaymasterAndData(context.Background(), testOp(), testEntrypoint, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyPaymasterData)
}

func TestSponsorshipApply(t *testing.T) {
	s := &Sponsorship{
		PaymasterAndData:     []byte{0x01, 0x02},
		CallGasLimit:         big.NewInt(1),
		VerificationGasLimit: big.NewInt(2),
		PreVerificationGas:   big.NewInt(3),
		MaxFeePerGas:         big.NewInt(4),
		MaxPriorityFeePerGas: big.NewInt(5),
	}
	op := testOp()
	s.Apply(op)

	assert.Equal(t, []byte{0x01, 0x02}, op.PaymasterAndData)
	assert.Equal(t, int64(1), op.CallGasLimit.Int64())
	assert.Equal(t, int64(2), op.VerificationGasLimit.Int64())
	assert.Equal(t, int64(3), op.PreVerificationGas.Int64())
	assert.Equal(t, int64(4), op.MaxFeePerGas.Int64())
	assert.Equal(t, int64(5), op.MaxPriorityFeePerGas.Int64())
}
