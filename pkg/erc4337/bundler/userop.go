package bundler

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/userop"
)

// UserOperationReceipt is returned by eth_getUserOperationReceipt once the
// operation is included in a mined transaction.
type UserOperationReceipt struct {
	UserOpHash    common.Hash     `json:"userOpHash"`
	EntryPoint    *common.Address `json:"entryPoint,omitempty"`
	Sender        common.Address  `json:"sender"`
	Nonce         *hexutil.Big    `json:"nonce"`
	Paymaster     *common.Address `json:"paymaster,omitempty"`
	ActualGasCost *hexutil.Big    `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big    `json:"actualGasUsed"`
	Success       bool            `json:"success"`
	Reason        string          `json:"reason,omitempty"`
	Logs          json.RawMessage `json:"logs,omitempty"`
	Receipt       TxReceipt       `json:"receipt"`
}

// TxReceipt is the subset of the bundle transaction receipt embedded in a
// UserOperationReceipt.
type TxReceipt struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       *hexutil.Big    `json:"blockNumber"`
	From              *common.Address `json:"from,omitempty"`
	To                *common.Address `json:"to,omitempty"`
	GasUsed           *hexutil.Big    `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice,omitempty"`
	Status            *hexutil.Big    `json:"status"`
}

// GasCost returns actualGasCost in wei
func (r *UserOperationReceipt) GasCost() *big.Int {
	if r.ActualGasCost == nil {
		return new(big.Int)
	}
	return r.ActualGasCost.ToInt()
}

// UserOperationByHash is returned by eth_getUserOperationByHash
type UserOperationByHash struct {
	UserOperation   userop.UserOperation `json:"userOperation"`
	EntryPoint      common.Address       `json:"entryPoint"`
	TransactionHash *common.Hash         `json:"transactionHash,omitempty"`
	BlockHash       *common.Hash         `json:"blockHash,omitempty"`
	BlockNumber     *hexutil.Big         `json:"blockNumber,omitempty"`
}
