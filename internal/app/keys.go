package app

import (
	"github.com/ethereum/go-ethereum/common"
)

// NewKey creates a signing key of the configured key type.
func (a *App) NewKey() (common.Address, error) {
	keys, err := a.openKeystore()
	if err != nil {
		return common.Address{}, err
	}
	return keys.NewAccount()
}

// ListKeys returns the accounts that can sign submissions.
func (a *App) ListKeys() ([]common.Address, error) {
	keys, err := a.openKeystore()
	if err != nil {
		return nil, err
	}
	return keys.Accounts(), nil
}
