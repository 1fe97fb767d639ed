package bundler

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GasEstimation is the result of eth_estimateUserOperationGas
type GasEstimation struct {
	PreVerificationGas   *big.Int
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
}

type gasEstimationJSON struct {
	PreVerificationGas   Quantity `json:"preVerificationGas"`
	VerificationGasLimit Quantity `json:"verificationGasLimit"`
	CallGasLimit         Quantity `json:"callGasLimit"`
}

func (g *GasEstimation) UnmarshalJSON(data []byte) error {
	var raw gasEstimationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.PreVerificationGas = raw.PreVerificationGas.BigInt()
	g.VerificationGasLimit = raw.VerificationGasLimit.BigInt()
	g.CallGasLimit = raw.CallGasLimit.BigInt()
	return nil
}

// Quantity decodes a numeric value that bundlers return either as a 0x hex
// string, a decimal string or a plain JSON number.
type Quantity big.Int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)

	var (
		v  *big.Int
		ok bool
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		decoded, err := hexutil.DecodeBig(s)
		if err != nil {
			return fmt.Errorf("invalid hex quantity %q: %w", s, err)
		}
		v, ok = decoded, true
	} else {
		v, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return fmt.Errorf("invalid quantity %q", s)
	}

	(*big.Int)(q).Set(v)
	return nil
}

func (q *Quantity) BigInt() *big.Int {
	if q == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(q))
}
