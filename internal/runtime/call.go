package runtime

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// CallKind enumerates the dispatchable calls of the oracle module.
type CallKind uint8

const (
	// CallSubmitPrice records a price sample.
	CallSubmitPrice CallKind = iota + 1
)

func (k CallKind) String() string {
	switch k {
	case CallSubmitPrice:
		return "submit_price"
	default:
		return "unknown"
	}
}

// Call is a dispatchable command.
type Call interface {
	Kind() CallKind
}

// SubmitPrice adds Price to the sample store on behalf of the signed origin.
type SubmitPrice struct {
	Price Sample
}

// Kind implements Call.
func (SubmitPrice) Kind() CallKind { return CallSubmitPrice }

type callEnvelope struct {
	Kind uint8
	Args []byte
}

// EncodeCall serialises call into its canonical RLP form.
func EncodeCall(call Call) ([]byte, error) {
	var (
		args []byte
		err  error
	)
	switch c := call.(type) {
	case SubmitPrice:
		args, err = rlp.EncodeToBytes(&c)
	case *SubmitPrice:
		args, err = rlp.EncodeToBytes(c)
	default:
		return nil, ErrUnknownCall.Wrapf("%T", call)
	}
	if err != nil {
		return nil, ErrMalformedCall.Wrap(err.Error())
	}
	return rlp.EncodeToBytes(&callEnvelope{Kind: uint8(call.Kind()), Args: args})
}

// DecodeCall parses the output of EncodeCall.
func DecodeCall(data []byte) (Call, error) {
	var env callEnvelope
	if err := rlp.DecodeBytes(data, &env); err != nil {
		return nil, ErrMalformedCall.Wrap(err.Error())
	}

	switch CallKind(env.Kind) {
	case CallSubmitPrice:
		var c SubmitPrice
		if err := rlp.DecodeBytes(env.Args, &c); err != nil {
			return nil, ErrMalformedCall.Wrap(err.Error())
		}
		return c, nil
	default:
		return nil, ErrUnknownCall.Wrapf("kind %d", env.Kind)
	}
}
