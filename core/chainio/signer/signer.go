package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	eip191Prefix = "\x19Ethereum Signed Message:\n"
)

var ErrInvalidPrivateKey = errors.New("invalid private key")

// Signer holds a secp256k1 key and signs on its behalf. The key never leaves the struct.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromPrivateKeyHex derives a signer from a hex encoded private key. The 0x
// prefix is optional.
func FromPrivateKeyHex(privateKeyHex string) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	return &Signer{
		key:     privateKey,
		address: crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address of the externally owned account controlled by this key
func (s *Signer) Address() common.Address {
	return s.address
}

// SignMessage produces an EIP-191 personal signature over data
func (s *Signer) SignMessage(data []byte) ([]byte, error) {
	return SignMessage(s.key, data)
}

// SignUserOpHash signs a user operation hash. The modular account owner plugin
// checks an EIP-191 signature over the raw 32 bytes of the hash.
func (s *Signer) SignUserOpHash(hash common.Hash) ([]byte, error) {
	return SignMessage(s.key, hash.Bytes())
}

// SignTx signs a plain transaction for chainID
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// TransactOpts returns a keyed transactor usable with contract bindings.
func (s *Signer) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}

// String never prints the key
func (s *Signer) String() string {
	return "Signer{" + s.address.Hex() + "}"
}

// Generate EIP191 signature
func SignMessage(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	prefix := []byte(eip191Prefix + fmt.Sprint(len(data)))
	prefixedData := append(prefix, data...)
	hash := crypto.Keccak256Hash(prefixedData)
	sig, e := crypto.Sign(hash.Bytes(), key)
	if e != nil {
		return nil, e
	}
	// https://stackoverflow.com/questions/69762108/implementing-ethereum-personal-sign-eip-191-from-go-ethereum-gives-different-s
	sig[64] += 27

	return sig, nil
}

func SignMessageAsHex(key *ecdsa.PrivateKey, data []byte) (string, error) {
	signature, e := SignMessage(key, data)
	if e == nil {
		return common.Bytes2Hex(signature), nil
	}

	return "", e
}

// RecoverMessageSigner returns the address that produced an EIP-191 signature over data.
func RecoverMessageSigner(data []byte, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	prefix := []byte(eip191Prefix + fmt.Sprint(len(data)))
	hash := crypto.Keccak256Hash(append(prefix, data...))
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
