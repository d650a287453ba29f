// Package keystore exposes the locally authorised signing accounts.
package keystore

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	ethks "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"price-oracle/internal/tx"
)

// ErrAccountNotFound indicates no unlocked key exists for an address.
var ErrAccountNotFound = errors.New("keystore: account not found")

// Options parameterise the on-disk keystore.
type Options struct {
	Dir        string
	KeyType    tx.KeyType
	Passphrase string
	// LightScrypt trades key file hardness for speed; for tests and devnets.
	LightScrypt bool
}

// Keystore holds encrypted keys for a single key type under
// <Dir>/<hex(key type)>. Only keys unlocked with the configured passphrase
// are offered for signing.
type Keystore struct {
	ks         *ethks.KeyStore
	keyType    tx.KeyType
	passphrase string
	logger     zerolog.Logger

	mu       sync.RWMutex
	unlocked map[common.Address]struct{}
}

// Open loads the key directory and unlocks every key it can.
func Open(opts Options, logger zerolog.Logger) (*Keystore, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("keystore dir is required")
	}

	scryptN, scryptP := ethks.StandardScryptN, ethks.StandardScryptP
	if opts.LightScrypt {
		scryptN, scryptP = ethks.LightScryptN, ethks.LightScryptP
	}

	k := &Keystore{
		ks:         ethks.NewKeyStore(filepath.Join(opts.Dir, opts.KeyType.Hex()), scryptN, scryptP),
		keyType:    opts.KeyType,
		passphrase: opts.Passphrase,
		logger:     logger.With().Str("component", "keystore").Str("key_type", opts.KeyType.String()).Logger(),
		unlocked:   make(map[common.Address]struct{}),
	}

	for _, acc := range k.ks.Accounts() {
		if err := k.ks.Unlock(acc, k.passphrase); err != nil {
			k.logger.Warn().Err(err).Str("account", acc.Address.Hex()).Msg("unable to unlock key; skipping")
			continue
		}
		k.unlocked[acc.Address] = struct{}{}
	}

	k.logger.Info().Int("accounts", len(k.unlocked)).Msg("keystore opened")
	return k, nil
}

// KeyType reports which key type this keystore serves.
func (k *Keystore) KeyType() tx.KeyType {
	return k.keyType
}

// Accounts lists the unlocked accounts in key file order.
func (k *Keystore) Accounts() []common.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]common.Address, 0, len(k.unlocked))
	for _, acc := range k.ks.Accounts() {
		if _, ok := k.unlocked[acc.Address]; ok {
			out = append(out, acc.Address)
		}
	}
	return out
}

// SignHash signs hash with the key for account.
func (k *Keystore) SignHash(account common.Address, hash []byte) ([]byte, error) {
	k.mu.RLock()
	_, ok := k.unlocked[account]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account.Hex())
	}
	return k.ks.SignHash(accounts.Account{Address: account}, hash)
}

// NewAccount generates, stores and unlocks a fresh key.
func (k *Keystore) NewAccount() (common.Address, error) {
	acc, err := k.ks.NewAccount(k.passphrase)
	if err != nil {
		return common.Address{}, fmt.Errorf("create account: %w", err)
	}
	if err := k.ks.Unlock(acc, k.passphrase); err != nil {
		return common.Address{}, fmt.Errorf("unlock new account: %w", err)
	}

	k.mu.Lock()
	k.unlocked[acc.Address] = struct{}{}
	k.mu.Unlock()

	k.logger.Info().Str("account", acc.Address.Hex()).Msg("generated key")
	return acc.Address, nil
}

var _ tx.Signer = (*Keystore)(nil)
