// Package gasmanager requests gas sponsorship for user operations from an
// Alchemy Gas Manager policy.
package gasmanager

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"

	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-smartaccount/pkg/logger"
)

const requestMethod = "alchemy_requestGasAndPaymasterAndData"

var ErrEmptyPaymasterData = errors.New("gas manager returned empty paymasterAndData")

type Client struct {
	http     *resty.Client
	url      string
	policyID string
	logger   logger.Logger
}

// FeeOverride pins the fees instead of letting the gas manager pick them.
type FeeOverride struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Sponsorship holds the paymaster data and the gas values it was signed for.
// The operation must be sent with exactly these values.
type Sponsorship struct {
	PaymasterAndData     []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Apply copies the sponsored values onto op.
func (s *Sponsorship) Apply(op *userop.UserOperation) {
	op.PaymasterAndData = common.CopyBytes(s.PaymasterAndData)
	op.CallGasLimit = s.CallGasLimit
	op.VerificationGasLimit = s.VerificationGasLimit
	op.PreVerificationGas = s.PreVerificationGas
	op.MaxFeePerGas = s.MaxFeePerGas
	op.MaxPriorityFeePerGas = s.MaxPriorityFeePerGas
}

func NewClient(url string, policyID string, lgr logger.Logger) *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		http:     client,
		url:      url,
		policyID: policyID,
		logger:   logger.EnsureLogger(lgr),
	}
}

func (c *Client) PolicyID() string {
	return c.policyID
}

type partialUserOp struct {
	Sender   common.Address `json:"sender"`
	Nonce    *hexutil.Big   `json:"nonce"`
	InitCode hexutil.Bytes  `json:"initCode"`
	CallData hexutil.Bytes  `json:"callData"`
}

type feeOverrideJSON struct {
	MaxFeePerGas         *hexutil.Big `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big `json:"maxPriorityFeePerGas,omitempty"`
}

type requestParams struct {
	PolicyID       string           `json:"policyId"`
	EntryPoint     string           `json:"entryPoint"`
	DummySignature hexutil.Bytes    `json:"dummySignature"`
	UserOperation  partialUserOp    `json:"userOperation"`
	FeeOverride    *feeOverrideJSON `json:"overrides,omitempty"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type sponsorshipJSON struct {
	PaymasterAndData     hexutil.Bytes    `json:"paymasterAndData"`
	CallGasLimit         bundler.Quantity `json:"callGasLimit"`
	VerificationGasLimit bundler.Quantity `json:"verificationGasLimit"`
	PreVerificationGas   bundler.Quantity `json:"preVerificationGas"`
	MaxFeePerGas         bundler.Quantity `json:"maxFeePerGas"`
	MaxPriorityFeePerGas bundler.Quantity `json:"maxPriorityFeePerGas"`
}

type rpcResponse struct {
	Result *sponsorshipJSON `json:"result"`
	Error  *struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	} `json:"error"`
}

// RequestGasAndPaymasterAndData asks the policy to sponsor op. Only sender,
// nonce, initCode and callData of op are sent; gas values come back in the
// Sponsorship.
func (c *Client) RequestGasAndPaymasterAndData(
	ctx context.Context,
	op *userop.UserOperation,
	entrypoint common.Address,
	dummySignature []byte,
	override *FeeOverride,
) (*Sponsorship, error) {
	params := requestParams{
		PolicyID:       c.policyID,
		EntryPoint:     entrypoint.Hex(),
		DummySignature: dummySignature,
		UserOperation: partialUserOp{
			Sender:   op.Sender,
			Nonce:    (*hexutil.Big)(nonceOrZero(op.Nonce)),
			InitCode: orEmpty(op.InitCode),
			CallData: orEmpty(op.CallData),
		},
	}
	if override != nil {
		params.FeeOverride = &feeOverrideJSON{
			MaxFeePerGas:         (*hexutil.Big)(override.MaxFeePerGas),
			MaxPriorityFeePerGas: (*hexutil.Big)(override.MaxPriorityFeePerGas),
		}
	}

	c.logger.Debug("requesting gas sponsorship", "policy", c.policyID, "sender", op.Sender.Hex())

	var out rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: requestMethod, Params: []interface{}{params}}).
		SetResult(&out).
		SetError(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", requestMethod, err)
	}

	if out.Error != nil {
		return nil, &bundler.RPCError{Method: requestMethod, Code: out.Error.Code, Message: out.Error.Message, Data: out.Error.Data}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: %d %s", requestMethod, resp.StatusCode(), resp.String())
	}
	if out.Result == nil {
		return nil, fmt.Errorf("%s: missing result in JSON-RPC response", requestMethod)
	}
	if len(out.Result.PaymasterAndData) == 0 {
		return nil, ErrEmptyPaymasterData
	}

	return &Sponsorship{
		PaymasterAndData:     out.Result.PaymasterAndData,
		CallGasLimit:         out.Result.CallGasLimit.BigInt(),
		VerificationGasLimit: out.Result.VerificationGasLimit.BigInt(),
		PreVerificationGas:   out.Result.PreVerificationGas.BigInt(),
		MaxFeePerGas:         out.Result.MaxFeePerGas.BigInt(),
		MaxPriorityFeePerGas: out.Result.MaxPriorityFeePerGas.BigInt(),
	}, nil
}

func nonceOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func orEmpty(b []byte) hexutil.Bytes {
	if b == nil {
		return hexutil.Bytes{}
	}
	return b
}
