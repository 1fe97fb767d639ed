package smartaccount

import "errors"

var (
	ErrUserOperationTimeout   = errors.New("timed out waiting for user operation")
	ErrTransactionTimeout     = errors.New("timed out waiting for transaction receipt")
	ErrEntryPointNotSupported = errors.New("entrypoint not supported by bundler")
	ErrChainMismatch          = errors.New("rpc chain id does not match chain config")
)
