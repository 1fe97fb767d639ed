package bundler

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-smartaccount/pkg/logger"
)

// NonceManager tracks the next nonce per sender so that operations submitted
// back to back do not collide while earlier ones are still in the bundler
// mempool.
type NonceManager struct {
	// Key: sender address (checksummed hex), Value: next nonce to use
	pendingNonces map[string]*big.Int
	mu            sync.Mutex
	logger        logger.Logger
}

func NewNonceManager(lgr logger.Logger) *NonceManager {
	return &NonceManager{
		pendingNonces: make(map[string]*big.Int),
		logger:        logger.EnsureLogger(lgr),
	}
}

// GetNextNonce returns max(on-chain nonce, cached pending nonce).
func (nm *NonceManager) GetNextNonce(
	sender common.Address,
	onChainNonceFetcher func() (*big.Int, error),
) (*big.Int, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	onChainNonce, err := onChainNonceFetcher()
	if err != nil {
		return nil, err
	}

	cachedNonce, hasCached := nm.pendingNonces[sender.Hex()]
	if !hasCached || onChainNonce.Cmp(cachedNonce) > 0 {
		// first operation for this sender, or earlier operations were mined or dropped
		nm.logger.Debug("nonce manager: using on-chain nonce", "sender", sender.Hex(), "nonce", onChainNonce.String())
		return new(big.Int).Set(onChainNonce), nil
	}

	nm.logger.Debug("nonce manager: using cached nonce",
		"sender", sender.Hex(), "nonce", cachedNonce.String(), "onchain", onChainNonce.String())
	return new(big.Int).Set(cachedNonce), nil
}

// IncrementNonce records that currentNonce was accepted by the bundler.
func (nm *NonceManager) IncrementNonce(sender common.Address, currentNonce *big.Int) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.pendingNonces[sender.Hex()] = new(big.Int).Add(currentNonce, big.NewInt(1))
}

// ResetNonce forgets the cached nonce, the next call reads fresh chain state.
func (nm *NonceManager) ResetNonce(sender common.Address) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	delete(nm.pendingNonces, sender.Hex())
}

// GetCachedNonce returns (nonce, true) if a nonce is cached for sender.
func (nm *NonceManager) GetCachedNonce(sender common.Address) (*big.Int, bool) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nonce, exists := nm.pendingNonces[sender.Hex()]
	if !exists {
		return nil, false
	}
	return new(big.Int).Set(nonce), true
}
