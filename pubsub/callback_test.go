package pubsub

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallback_TypedDispatch(t *testing.T) {
	calls := 0
	var got string
	d := NewCallback(func(msg *Message, payload string) {
		calls++
		got = payload
	})

	require.True(t, d.Call(NewMessage(0, "hello")))
	require.Equal(t, 1, calls)
	require.Equal(t, "hello", got)
}

func TestCallback_WrongTypeSkips(t *testing.T) {
	calls := 0
	d := NewCallback(func(msg *Message, payload string) { calls++ })

	require.False(t, d.Call(NewMessage(0, 42)), "foreign payload type must be skipped")
	require.Zero(t, calls)
}

func TestCallback_NilMessage(t *testing.T) {
	d := NewCallback(func(msg *Message, payload int) {})
	require.False(t, d.Call(nil))
}

func TestCallback_PanicContained(t *testing.T) {
	d := NewCallback(func(msg *Message, payload int) {
		panic("subscriber bug")
	})

	require.NotPanics(t, func() {
		require.False(t, d.Call(NewMessage(0, 1)))
	})
}

func TestCallback_NilFunc(t *testing.T) {
	require.Nil(t, NewCallback[string](nil))
}

func TestCallback_PayloadType(t *testing.T) {
	d := NewCallback(func(msg *Message, payload int) {})
	require.Equal(t, reflect.TypeOf(0), d.PayloadType())
}

func TestChain_InvokesInOrder(t *testing.T) {
	var order []int
	chain := &Chain{}
	chain.Add(NewCallback(func(msg *Message, payload string) { order = append(order, 1) }))
	chain.Add(NewCallback(func(msg *Message, payload string) { order = append(order, 2) }))
	chain.Add(NewCallback(func(msg *Message, payload string) { order = append(order, 3) }))

	require.Equal(t, 3, chain.Call(NewMessage(0, "x")))
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestChain_FailureDoesNotBlockRest(t *testing.T) {
	var order []int
	chain := &Chain{}
	chain.Add(NewCallback(func(msg *Message, payload string) { order = append(order, 1) }))
	chain.Add(NewCallback(func(msg *Message, payload string) { panic("boom") }))
	chain.Add(NewCallback(func(msg *Message, payload string) { order = append(order, 3) }))

	require.Equal(t, 2, chain.Call(NewMessage(0, "x")))
	require.Equal(t, []int{1, 3}, order)
}

func TestChain_MixedTypes(t *testing.T) {
	intCalls := 0
	strCalls := 0
	chain := &Chain{}
	chain.Add(NewCallback(func(msg *Message, payload int) { intCalls++ }))
	chain.Add(NewCallback(func(msg *Message, payload string) { strCalls++ }))

	require.Equal(t, 1, chain.Call(NewMessage(0, 7)))
	require.Equal(t, 1, intCalls)
	require.Zero(t, strCalls)
}

func TestChain_LenAndClear(t *testing.T) {
	chain := &Chain{}
	require.Zero(t, chain.Len())

	chain.Add(NewCallback(func(msg *Message, payload int) {}))
	chain.Add(nil)
	require.Equal(t, 1, chain.Len(), "nil dispatchers are ignored")

	chain.Clear()
	require.Zero(t, chain.Len())
}
