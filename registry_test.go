package cmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_FanOut(t *testing.T) {
	var calls []int
	reg := NewRegistry([]RegistryEntry{
		{ID: 0x1, Handler: func(Message) { calls = append(calls, 1) }},
		{ID: 0x1, Handler: func(Message) { calls = append(calls, 2) }},
		{ID: 0x2, Handler: func(Message) { calls = append(calls, 3) }},
	})

	reg.Dispatch(NewMessage(0x1))
	assert.Equal(t, []int{1, 2}, calls)
}

func TestRegistry_DynamicAddRemove(t *testing.T) {
	reg := NewRegistry(nil)
	var calls int
	handle := reg.AddHandler(0x5, func(Message) { calls++ })

	reg.Dispatch(NewMessage(0x5))
	assert.Equal(t, 1, calls)

	reg.RemoveHandler(0x5, handle)
	reg.Dispatch(NewMessage(0x5))
	assert.Equal(t, 1, calls)
}

func TestRegistry_NoHandlersIsNoOp(t *testing.T) {
	reg := NewRegistry(nil)
	assert.NotPanics(t, func() { reg.Dispatch(NewMessage(0x99)) })
}
