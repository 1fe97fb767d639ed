// Package workflow holds the two smart account runs: a funding-aware transfer
// and a gas sponsored transfer.
package workflow

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/k0kubun/pp/v3"
	"github.com/oklog/ulid/v2"

	"github.com/AvaProtocol/ap-smartaccount/core/smartaccount"
	"github.com/AvaProtocol/ap-smartaccount/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-smartaccount/pkg/logger"
)

// SmartAccountClient is what a workflow needs from an account abstraction client.
type SmartAccountClient interface {
	Address() common.Address
	Balance(ctx context.Context) (*big.Int, error)
	SendUserOperation(ctx context.Context, call smartaccount.UserOperationCallData) (*smartaccount.UserOperationResult, error)
	WaitForUserOperationTransaction(ctx context.Context, result *smartaccount.UserOperationResult) (common.Hash, error)
	GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error)
	WaitForTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SponsoredClient is a SmartAccountClient bound to a gas policy.
type SponsoredClient interface {
	SmartAccountClient
	GasPolicyID() string
}

// Wallet is the externally owned account that funds the smart account.
type Wallet interface {
	Address() common.Address
	SendTransaction(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error)
}

// Recorder receives run events, metrics.RunMetrics implements it.
type Recorder interface {
	IncUserOpSubmitted(workflow string)
	IncUserOpIncluded(workflow string)
	IncFundingSent()
	IncFailure(workflow, stage string)
	SetLastSuccess()
}

type State string

const (
	StateStart          State = "START"
	StateBalanceChecked State = "BALANCE_CHECKED"
	StateFundingSent    State = "FUNDING_SENT"
	StateOpSubmitted    State = "OP_SUBMITTED"
	StateOpIncluded     State = "OP_INCLUDED"
	StateReceiptFetched State = "RECEIPT_FETCHED"
)

const (
	FundedWorkflow    = "funded"
	SponsoredWorkflow = "sponsored"
)

// Outcome is the last state a run reached and what it produced on the way.
type Outcome struct {
	RunID string
	State State

	Balance       *big.Int
	FundingTxHash common.Hash
	UserOpHash    common.Hash
	TxHash        common.Hash

	UserOpReceipt *bundler.UserOperationReceipt
	TxReceipt     *types.Receipt
}

type Runner struct {
	logger   logger.Logger
	recorder Recorder
	printer  *pp.PrettyPrinter
}

type Option func(*Runner)

func WithRecorder(r Recorder) Option {
	return func(runner *Runner) {
		runner.recorder = r
	}
}

// WithOutput sets where receipts are pretty printed, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(runner *Runner) {
		runner.printer.SetOutput(w)
		if w != os.Stdout {
			runner.printer.SetColoringEnabled(false)
		}
	}
}

func NewRunner(lgr logger.Logger, opts ...Option) *Runner {
	printer := pp.New()
	printer.SetOutput(os.Stdout)

	runner := &Runner{
		logger:   logger.EnsureLogger(lgr),
		recorder: noopRecorder{},
		printer:  printer,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

func newOutcome() *Outcome {
	return &Outcome{RunID: ulid.Make().String(), State: StateStart}
}

// fail records the aborted stage. The outcome is returned alongside the error
// so the caller can report how far the run got.
func (r *Runner) fail(workflow string, out *Outcome, err error) (*Outcome, error) {
	r.recorder.IncFailure(workflow, string(out.State))
	return out, fmt.Errorf("%s workflow stopped at %s: %w", workflow, out.State, err)
}

// RunFunded tops up the smart account when its balance is below
// FundingThreshold and stops there; the top-up is not awaited, a later run
// does the transfer. With enough balance it sends TransferAmount back to the
// wallet through a user operation and follows it to the transaction receipt.
func (r *Runner) RunFunded(ctx context.Context, client SmartAccountClient, wallet Wallet) (*Outcome, error) {
	out := newOutcome()
	lgr := r.logger.With("run_id", out.RunID, "workflow", FundedWorkflow)
	account := client.Address()

	balance, err := client.Balance(ctx)
	if err != nil {
		return r.fail(FundedWorkflow, out, err)
	}
	out.Balance = balance
	out.State = StateBalanceChecked
	lgr.Info("smart account balance",
		"account", account.Hex(),
		"wei", balance.String(),
		"eth", FormatEther(balance))

	if balance.Cmp(FundingThreshold) < 0 {
		lgr.Info("balance below threshold, funding smart account",
			"threshold_eth", FormatEther(FundingThreshold),
			"amount_eth", FormatEther(TopUpAmount),
			"from", wallet.Address().Hex())

		txHash, err := wallet.SendTransaction(ctx, account, TopUpAmount)
		if err != nil {
			return r.fail(FundedWorkflow, out, err)
		}
		out.FundingTxHash = txHash
		out.State = StateFundingSent
		r.recorder.IncFundingSent()
		r.recorder.SetLastSuccess()

		lgr.Info("funding transaction sent, run again once it is mined", "tx", txHash.Hex())
		return out, nil
	}

	result, err := client.SendUserOperation(ctx, smartaccount.UserOperationCallData{
		Target: wallet.Address(),
		Value:  TransferAmount,
		Data:   []byte{},
	})
	if err != nil {
		return r.fail(FundedWorkflow, out, err)
	}
	out.UserOpHash = result.Hash
	out.State = StateOpSubmitted
	r.recorder.IncUserOpSubmitted(FundedWorkflow)
	lgr.Info("user operation submitted",
		"userop", result.Hash.Hex(),
		"to", wallet.Address().Hex(),
		"amount_eth", FormatEther(TransferAmount))

	txHash, err := client.WaitForUserOperationTransaction(ctx, result)
	if err != nil {
		return r.fail(FundedWorkflow, out, err)
	}
	out.TxHash = txHash
	out.State = StateOpIncluded
	r.recorder.IncUserOpIncluded(FundedWorkflow)
	lgr.Info("user operation included", "tx", txHash.Hex())

	opReceipt, err := client.GetUserOperationReceipt(ctx, result.Hash)
	if err != nil {
		return r.fail(FundedWorkflow, out, err)
	}
	out.UserOpReceipt = opReceipt
	if opReceipt != nil {
		lgr.Info("user operation receipt",
			"success", opReceipt.Success,
			"gas_cost_eth", FormatEther(opReceipt.GasCost()))
		r.print(opReceipt)
	}

	txReceipt, err := client.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return r.fail(FundedWorkflow, out, err)
	}
	out.TxReceipt = txReceipt
	out.State = StateReceiptFetched
	lgr.Info("transaction receipt",
		"tx", txHash.Hex(),
		"block", txReceipt.BlockNumber,
		"status", txReceipt.Status,
		"gas_used", txReceipt.GasUsed)
	r.print(txReceipt)

	r.recorder.SetLastSuccess()
	return out, nil
}

// RunSponsored sends TransferAmount to recipient with gas paid by the client's
// policy and waits for inclusion. Receipts are not fetched.
func (r *Runner) RunSponsored(ctx context.Context, client SponsoredClient, recipient common.Address) (*Outcome, error) {
	out := newOutcome()
	lgr := r.logger.With("run_id", out.RunID, "workflow", SponsoredWorkflow)

	policyID := client.GasPolicyID()
	if policyID == "" {
		return r.fail(SponsoredWorkflow, out, fmt.Errorf("client has no gas policy"))
	}

	result, err := client.SendUserOperation(ctx, smartaccount.UserOperationCallData{
		Target: recipient,
		Value:  TransferAmount,
		Data:   []byte{},
	})
	if err != nil {
		return r.fail(SponsoredWorkflow, out, err)
	}
	out.UserOpHash = result.Hash
	out.State = StateOpSubmitted
	r.recorder.IncUserOpSubmitted(SponsoredWorkflow)
	lgr.Info("sponsored user operation submitted",
		"userop", result.Hash.Hex(),
		"policy", policyID,
		"account", client.Address().Hex(),
		"to", recipient.Hex(),
		"amount_eth", FormatEther(TransferAmount))

	txHash, err := client.WaitForUserOperationTransaction(ctx, result)
	if err != nil {
		return r.fail(SponsoredWorkflow, out, err)
	}
	out.TxHash = txHash
	out.State = StateOpIncluded
	r.recorder.IncUserOpIncluded(SponsoredWorkflow)
	r.recorder.SetLastSuccess()
	lgr.Info("sponsored user operation included", "tx", txHash.Hex())

	return out, nil
}

func (r *Runner) print(v interface{}) {
	_, _ = r.printer.Println(v)
}

type noopRecorder struct{}

func (noopRecorder) IncUserOpSubmitted(string) {}
func (noopRecorder) IncUserOpIncluded(string)  {}
func (noopRecorder) IncFundingSent()           {}
func (noopRecorder) IncFailure(string, string) {}
func (noopRecorder) SetLastSuccess()           {}
