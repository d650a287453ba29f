package runtime

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type unknownCall struct{}

func (unknownCall) Kind() CallKind { return CallKind(200) }

func TestDispatchSignedRecordsAndEmits(t *testing.T) {
	m := NewModule(NewSampleStore(), zerolog.Nop())
	who := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	var buf EventBuffer

	err := m.Dispatch(SignedOrigin(who), SubmitPrice{Price: 10450}, &buf)
	require.NoError(t, err)
	require.Equal(t, []Sample{10450}, m.Prices())

	avg, ok := m.Average()
	require.True(t, ok)
	require.Equal(t, Sample(10450), avg)

	require.Equal(t, []Event{EventNewPrice{Price: 10450, Who: who}}, buf.Events())
}

func TestDispatchUnsignedIsRejected(t *testing.T) {
	m := NewModule(NewSampleStore(), zerolog.Nop())
	var buf EventBuffer
	signer := common.HexToAddress("0x01")
	require.NoError(t, m.Dispatch(SignedOrigin(signer), SubmitPrice{Price: 100}, &buf))

	err := m.Dispatch(NoneOrigin(), SubmitPrice{Price: 7}, &buf)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDispatchRejected))

	require.Equal(t, []Sample{100}, m.Prices())
	avg, _ := m.Average()
	require.Equal(t, Sample(100), avg)
	require.Len(t, buf.Events(), 1)
}

func TestDispatchUnknownCall(t *testing.T) {
	m := NewModule(nil, zerolog.Nop())
	var buf EventBuffer
	err := m.Dispatch(SignedOrigin(common.Address{}), unknownCall{}, &buf)
	require.True(t, errors.Is(err, ErrUnknownCall))
	require.Empty(t, buf.Events())
}

func TestCallRoundTrip(t *testing.T) {
	data, err := EncodeCall(SubmitPrice{Price: 42})
	require.NoError(t, err)

	call, err := DecodeCall(data)
	require.NoError(t, err)
	require.Equal(t, SubmitPrice{Price: 42}, call)
	require.Equal(t, "submit_price", call.Kind().String())

	_, err = DecodeCall([]byte{0xff})
	require.True(t, errors.Is(err, ErrMalformedCall))

	_, err = EncodeCall(unknownCall{})
	require.True(t, errors.Is(err, ErrUnknownCall))
}
