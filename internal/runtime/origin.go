package runtime

import (
	"github.com/ethereum/go-ethereum/common"
)

// Origin identifies who a dispatched call runs on behalf of.
type Origin struct {
	account common.Address
	signed  bool
}

// NoneOrigin is the origin of an unsigned call.
func NoneOrigin() Origin {
	return Origin{}
}

// SignedOrigin is the origin of a call whose signature was verified for account.
func SignedOrigin(account common.Address) Origin {
	return Origin{account: account, signed: true}
}

// Account returns the signing account, if any.
func (o Origin) Account() (common.Address, bool) {
	return o.account, o.signed
}

func (o Origin) String() string {
	if !o.signed {
		return "none"
	}
	return "signed(" + o.account.Hex() + ")"
}

func ensureSigned(o Origin) (common.Address, error) {
	who, ok := o.Account()
	if !ok {
		return common.Address{}, ErrDispatchRejected.Wrap("origin is not signed")
	}
	return who, nil
}
