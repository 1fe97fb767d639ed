package workflow

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

var (
	FundingThreshold = MustParseEther("0.05")
	TopUpAmount      = MustParseEther("0.1")
	TransferAmount   = MustParseEther("0.001")
)

// ParseEther converts a decimal ether amount such as "0.001" to wei.
func ParseEther(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return d.Shift(etherDecimals).BigInt(), nil
}

func MustParseEther(amount string) *big.Int {
	wei, err := ParseEther(amount)
	if err != nil {
		panic(err)
	}
	return wei
}

// FormatEther renders wei as ether without trailing zeros
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
