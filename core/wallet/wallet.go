// Package wallet sends plain transactions from the signer's own account.
package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/AvaProtocol/ap-smartaccount/core/chainio/signer"
	"github.com/AvaProtocol/ap-smartaccount/pkg/eip1559"
	"github.com/AvaProtocol/ap-smartaccount/pkg/logger"
)

// transferGas is the intrinsic gas of a value transfer without data
const transferGas = uint64(21000)

type Wallet struct {
	eth     *ethclient.Client
	signer  *signer.Signer
	chainID *big.Int
	logger  logger.Logger
}

// New dials rpcURL and reads its chain id.
func New(ctx context.Context, rpcURL string, s *signer.Signer, lgr logger.Logger) (*Wallet, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("cannot dial wallet rpc: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("cannot read wallet chain id: %w", err)
	}

	return &Wallet{eth: eth, signer: s, chainID: chainID, logger: logger.EnsureLogger(lgr)}, nil
}

func (w *Wallet) Address() common.Address {
	return w.signer.Address()
}

func (w *Wallet) ChainID() *big.Int {
	return new(big.Int).Set(w.chainID)
}

// SendTransaction transfers value wei to `to`. It returns once the node
// accepted the transaction, without waiting for it to be mined.
func (w *Wallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	return w.send(ctx, to, value, nil)
}

// SendTransactionWithData is SendTransaction for a contract call.
func (w *Wallet) SendTransactionWithData(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	return w.send(ctx, to, value, data)
}

func (w *Wallet) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	from := w.signer.Address()

	nonce, err := w.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot read nonce of %s: %w", from.Hex(), err)
	}

	maxFee, tip, err := eip1559.SuggestFee(ctx, w.eth)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot suggest fees: %w", err)
	}

	gas := transferGas
	if len(data) > 0 {
		gas, err = w.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
		if err != nil {
			return common.Hash{}, fmt.Errorf("cannot estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := w.signer.SignTx(tx, w.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot sign transaction: %w", err)
	}

	if err := w.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("cannot send transaction: %w", err)
	}

	w.logger.Info("transaction sent",
		"hash", signed.Hash().Hex(),
		"from", from.Hex(),
		"to", to.Hex(),
		"value", value.String(),
		"nonce", nonce)
	return signed.Hash(), nil
}

// Balance of the signer's own account in wei
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	return w.eth.BalanceAt(ctx, w.signer.Address(), nil)
}

func (w *Wallet) Close() {
	w.eth.Close()
}
