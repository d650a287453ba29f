// Package tx builds, signs and verifies oracle transactions.
package tx

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"price-oracle/internal/runtime"
)

var (
	// ErrInvalidParameter indicates that an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Signer produces recoverable secp256k1 signatures over 32-byte hashes.
type Signer interface {
	SignHash(account common.Address, hash []byte) ([]byte, error)
}

// Transaction is a call proposed for inclusion, optionally signed.
type Transaction struct {
	KeyType   KeyType
	Height    uint64
	Call      []byte
	Signer    common.Address
	Signature []byte
}

type unsignedPayload struct {
	KeyType KeyType
	Height  uint64
	Call    []byte
	Signer  common.Address
}

// New builds an unsigned transaction carrying call. Height is the block
// height the offchain worker observed when building it.
func New(keyType KeyType, height uint64, call runtime.Call, signer common.Address) (*Transaction, error) {
	encoded, err := runtime.EncodeCall(call)
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}
	return &Transaction{
		KeyType: keyType,
		Height:  height,
		Call:    encoded,
		Signer:  signer,
	}, nil
}

// SigningHash is the keccak256 digest of the unsigned payload.
func (t *Transaction) SigningHash() common.Hash {
	enc, _ := rlp.EncodeToBytes(&unsignedPayload{
		KeyType: t.KeyType,
		Height:  t.Height,
		Call:    t.Call,
		Signer:  t.Signer,
	})
	return crypto.Keccak256Hash(enc)
}

// Hash identifies the transaction including its signature.
func (t *Transaction) Hash() common.Hash {
	enc, _ := rlp.EncodeToBytes(t)
	return crypto.Keccak256Hash(enc)
}

// Sign signs the transaction with the key for t.Signer.
func (t *Transaction) Sign(s Signer) error {
	if s == nil {
		return fmt.Errorf("%w: nil signer", ErrInvalidParameter)
	}
	hash := t.SigningHash()
	sig, err := s.SignHash(t.Signer, hash.Bytes())
	if err != nil {
		return fmt.Errorf("sign with %s: %w", t.Signer.Hex(), err)
	}
	t.Signature = sig
	return nil
}

// Encode returns the RLP wire form.
func (t *Transaction) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(t)
}

// Decode parses the RLP wire form.
func Decode(data []byte) (*Transaction, error) {
	var t Transaction
	if err := rlp.DecodeBytes(data, &t); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &t, nil
}
