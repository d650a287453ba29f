package tx

import (
	"github.com/ethereum/go-ethereum/crypto"

	"price-oracle/internal/runtime"
)

// Verifier authenticates transactions before dispatch.
type Verifier struct {
	keyType KeyType
}

// NewVerifier accepts only signatures made with keys of keyType.
func NewVerifier(keyType KeyType) *Verifier {
	return &Verifier{keyType: keyType}
}

// Verify decodes the call and resolves its origin. An unsigned transaction
// yields the none origin; a signature that does not match the claimed signer
// or key type is rejected outright.
func (v *Verifier) Verify(t *Transaction) (runtime.Origin, runtime.Call, error) {
	call, err := runtime.DecodeCall(t.Call)
	if err != nil {
		return runtime.Origin{}, nil, err
	}

	if len(t.Signature) == 0 {
		return runtime.NoneOrigin(), call, nil
	}

	if t.KeyType != v.keyType {
		return runtime.Origin{}, nil, runtime.ErrDispatchRejected.Wrapf("key type %q not accepted", t.KeyType.String())
	}
	if len(t.Signature) != crypto.SignatureLength {
		return runtime.Origin{}, nil, runtime.ErrDispatchRejected.Wrapf("signature length %d", len(t.Signature))
	}

	pub, err := crypto.SigToPub(t.SigningHash().Bytes(), t.Signature)
	if err != nil {
		return runtime.Origin{}, nil, runtime.ErrDispatchRejected.Wrap(err.Error())
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != t.Signer {
		return runtime.Origin{}, nil, runtime.ErrDispatchRejected.Wrapf("signature by %s, claimed %s", recovered.Hex(), t.Signer.Hex())
	}

	return runtime.SignedOrigin(t.Signer), call, nil
}
