package keystore

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"price-oracle/internal/runtime"
	"price-oracle/internal/tx"
)

func openTest(t *testing.T, dir, pass string) *Keystore {
	t.Helper()
	ks, err := Open(Options{Dir: dir, KeyType: tx.DefaultKeyType, Passphrase: pass, LightScrypt: true}, zerolog.Nop())
	require.NoError(t, err)
	return ks
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestEmptyKeystoreHasNoAccounts(t *testing.T) {
	ks := openTest(t, t.TempDir(), "secret")
	require.Empty(t, ks.Accounts())
}

func TestNewAccountSignsVerifiableTransactions(t *testing.T) {
	ks := openTest(t, t.TempDir(), "secret")
	addr, err := ks.NewAccount()
	require.NoError(t, err)
	require.Equal(t, []common.Address{addr}, ks.Accounts())

	txn, err := tx.New(ks.KeyType(), 1, runtime.SubmitPrice{Price: 100}, addr)
	require.NoError(t, err)
	require.NoError(t, txn.Sign(ks))

	origin, _, err := tx.NewVerifier(tx.DefaultKeyType).Verify(txn)
	require.NoError(t, err)
	who, ok := origin.Account()
	require.True(t, ok)
	require.Equal(t, addr, who)
}

func TestReopenWithWrongPassphraseSkipsKeys(t *testing.T) {
	dir := t.TempDir()
	_, err := openTest(t, dir, "secret").NewAccount()
	require.NoError(t, err)

	require.Len(t, openTest(t, dir, "secret").Accounts(), 1)
	require.Empty(t, openTest(t, dir, "wrong").Accounts())
}

func TestSignHashUnknownAccount(t *testing.T) {
	ks := openTest(t, t.TempDir(), "secret")
	_, err := ks.SignHash(common.HexToAddress("0x01"), make([]byte, 32))
	require.True(t, errors.Is(err, ErrAccountNotFound))
}
