package aa

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

var (
	entrypointABI = mustParseABI(entrypointABIJSON)
	factoryABI    = mustParseABI(factoryABIJSON)
	accountABI    = mustParseABI(accountABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Errorf("invalid ABI: %w", err))
	}
	return parsed
}

// Call is one entry of an executeBatch call
type Call struct {
	Target common.Address `abi:"target"`
	Value  *big.Int       `abi:"value"`
	Data   []byte         `abi:"data"`
}

// GetInitCode returns the initCode deploying the account for the given owners:
// factory address followed by createAccount(salt, owners) calldata.
func GetInitCode(factory common.Address, owners []common.Address, salt *big.Int) ([]byte, error) {
	if salt == nil {
		salt = DefaultSalt
	}

	calldata, err := factoryABI.Pack("createAccount", salt, owners)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, common.AddressLength+len(calldata))
	data = append(data, factory.Bytes()...)
	return append(data, calldata...), nil
}

// GetSenderAddress resolves the counterfactual account address from the factory.
func GetSenderAddress(ctx context.Context, conn bind.ContractCaller, factory common.Address, owners []common.Address, salt *big.Int) (common.Address, error) {
	if salt == nil {
		salt = DefaultSalt
	}

	contract := bind.NewBoundContract(factory, factoryABI, conn, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAddress", salt, owners); err != nil {
		return common.Address{}, fmt.Errorf("factory getAddress: %w", err)
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// GetNonce reads the EntryPoint nonce of sender for the given key.
func GetNonce(ctx context.Context, conn bind.ContractCaller, entrypoint common.Address, sender common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = big.NewInt(0)
	}

	contract := bind.NewBoundContract(entrypoint, entrypointABI, conn, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getNonce", sender, key); err != nil {
		return nil, fmt.Errorf("entrypoint getNonce: %w", err)
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetDeposit returns the EntryPoint deposit held for account.
func GetDeposit(ctx context.Context, conn bind.ContractCaller, entrypoint common.Address, account common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(entrypoint, entrypointABI, conn, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("entrypoint balanceOf: %w", err)
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// IsDeployed reports whether there is contract code at address.
func IsDeployed(ctx context.Context, conn bind.ContractCaller, address common.Address) (bool, error) {
	code, err := conn.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("get code at %s: %w", address.Hex(), err)
	}
	return len(code) > 0, nil
}

// Generate calldata for UserOps
func PackExecute(targetAddress common.Address, ethValue *big.Int, calldata []byte) ([]byte, error) {
	if ethValue == nil {
		ethValue = big.NewInt(0)
	}
	if calldata == nil {
		calldata = []byte{}
	}
	return accountABI.Pack("execute", targetAddress, ethValue, calldata)
}

// PackExecuteBatch encodes several calls into a single executeBatch call.
func PackExecuteBatch(calls []Call) ([]byte, error) {
	return accountABI.Pack("executeBatch", lo.Map(calls, func(c Call, _ int) Call {
		if c.Value == nil {
			c.Value = big.NewInt(0)
		}
		if c.Data == nil {
			c.Data = []byte{}
		}
		return c
	}))
}
