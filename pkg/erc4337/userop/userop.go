// Package userop defines the EntryPoint v0.6 UserOperation and its hash.
package userop

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	address, _ = abi.NewType("address", "", nil)
	uint256, _ = abi.NewType("uint256", "", nil)
	bytes32, _ = abi.NewType("bytes32", "", nil)

	// abi.encode layout of the user operation with dynamic fields replaced by their hash
	packedArgs = abi.Arguments{
		{Name: "sender", Type: address},
		{Name: "nonce", Type: uint256},
		{Name: "hashInitCode", Type: bytes32},
		{Name: "hashCallData", Type: bytes32},
		{Name: "callGasLimit", Type: uint256},
		{Name: "verificationGasLimit", Type: uint256},
		{Name: "preVerificationGas", Type: uint256},
		{Name: "maxFeePerGas", Type: uint256},
		{Name: "maxPriorityFeePerGas", Type: uint256},
		{Name: "hashPaymasterAndData", Type: bytes32},
	}

	hashArgs = abi.Arguments{
		{Name: "userOpHash", Type: bytes32},
		{Name: "entryPoint", Type: address},
		{Name: "chainId", Type: uint256},
	}
)

// UserOperation is an ERC-4337 intent submitted to a bundler instead of a transaction.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// Pack returns the abi encoding used as the pre-image of the hash. The signature is not part of it.
func (op *UserOperation) Pack() []byte {
	packed, err := packedArgs.Pack(
		op.Sender,
		orZero(op.Nonce),
		crypto.Keccak256Hash(op.InitCode),
		crypto.Keccak256Hash(op.CallData),
		orZero(op.CallGasLimit),
		orZero(op.VerificationGasLimit),
		orZero(op.PreVerificationGas),
		orZero(op.MaxFeePerGas),
		orZero(op.MaxPriorityFeePerGas),
		crypto.Keccak256Hash(op.PaymasterAndData),
	)
	if err != nil {
		// every argument has a fixed, valid type so packing cannot fail
		panic(err)
	}
	return packed
}

// GetUserOpHash returns the hash the account signs, bound to the EntryPoint and chain.
func (op *UserOperation) GetUserOpHash(entrypoint common.Address, chainID *big.Int) common.Hash {
	encoded, err := hashArgs.Pack(crypto.Keccak256Hash(op.Pack()), entrypoint, chainID)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(encoded)
}

// Copy returns a deep copy so a signed operation is never mutated by later steps.
func (op *UserOperation) Copy() *UserOperation {
	return &UserOperation{
		Sender:               op.Sender,
		Nonce:                copyInt(op.Nonce),
		InitCode:             common.CopyBytes(op.InitCode),
		CallData:             common.CopyBytes(op.CallData),
		CallGasLimit:         copyInt(op.CallGasLimit),
		VerificationGasLimit: copyInt(op.VerificationGasLimit),
		PreVerificationGas:   copyInt(op.PreVerificationGas),
		MaxFeePerGas:         copyInt(op.MaxFeePerGas),
		MaxPriorityFeePerGas: copyInt(op.MaxPriorityFeePerGas),
		PaymasterAndData:     common.CopyBytes(op.PaymasterAndData),
		Signature:            common.CopyBytes(op.Signature),
	}
}

// wire is the JSON-RPC representation: quantities and bytes as 0x prefixed hex
type wire struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

func (op UserOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(orZero(op.Nonce)),
		InitCode:             orEmpty(op.InitCode),
		CallData:             orEmpty(op.CallData),
		CallGasLimit:         (*hexutil.Big)(orZero(op.CallGasLimit)),
		VerificationGasLimit: (*hexutil.Big)(orZero(op.VerificationGasLimit)),
		PreVerificationGas:   (*hexutil.Big)(orZero(op.PreVerificationGas)),
		MaxFeePerGas:         (*hexutil.Big)(orZero(op.MaxFeePerGas)),
		MaxPriorityFeePerGas: (*hexutil.Big)(orZero(op.MaxPriorityFeePerGas)),
		PaymasterAndData:     orEmpty(op.PaymasterAndData),
		Signature:            orEmpty(op.Signature),
	})
}

func (op *UserOperation) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*op = UserOperation{
		Sender:               w.Sender,
		Nonce:                (*big.Int)(w.Nonce),
		InitCode:             w.InitCode,
		CallData:             w.CallData,
		CallGasLimit:         (*big.Int)(w.CallGasLimit),
		VerificationGasLimit: (*big.Int)(w.VerificationGasLimit),
		PreVerificationGas:   (*big.Int)(w.PreVerificationGas),
		MaxFeePerGas:         (*big.Int)(w.MaxFeePerGas),
		MaxPriorityFeePerGas: (*big.Int)(w.MaxPriorityFeePerGas),
		PaymasterAndData:     w.PaymasterAndData,
		Signature:            w.Signature,
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
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

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
