package cmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Constructors(t *testing.T) {
	m := NewMessage(0x10)
	assert.Equal(t, PriorityNormal, m.Priority)
	_, pinned := m.PinnedHandler()
	assert.False(t, pinned)
	assert.Zero(t, m.Sequence)
	assert.Zero(t, m.PostTimeMs)

	called := false
	h := NewMessageWithHandler(0x20, PriorityHigh, func(Message) { called = true })
	fn, pinned := h.PinnedHandler()
	assert.True(t, pinned)
	fn(h)
	assert.True(t, called)
}

func TestMessage_ClearHandlerDispatchesThroughRegistry(t *testing.T) {
	var pinnedCalled, tableCalled bool
	m := NewMessageWithHandler(0x30, PriorityNormal, func(Message) { pinnedCalled = true })

	cleared := m.ClearHandler()
	_, pinned := cleared.PinnedHandler()
	assert.False(t, pinned)

	reg := NewRegistry([]RegistryEntry{{ID: 0x30, Handler: func(Message) { tableCalled = true }}})
	reg.Dispatch(cleared)

	assert.False(t, pinnedCalled)
	assert.True(t, tableCalled)
}

func TestMessageID_Namespace(t *testing.T) {
	assert.Equal(t, NamespaceCommon, MessageID(0x00AB).Namespace())
	assert.Equal(t, NamespaceHostOS, MessageID(0x0105).Namespace())
	assert.Equal(t, NamespaceControlUI, MessageID(0x02FF).Namespace())
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "HIGH", PriorityHigh.String())
	assert.Equal(t, "NORMAL", PriorityNormal.String())
	assert.Equal(t, "LOW", PriorityLow.String())
}
